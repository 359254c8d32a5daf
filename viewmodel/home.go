package viewmodel

import (
	"context"
	"time"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
	"taskquest/usecase"
)

// HomeState is what the home screen renders: the profile header, the
// filtered task list and the dashboard counters.
type HomeState struct {
	Loading bool               `json:"loading"`
	User    *model.User        `json:"user,omitempty"`
	Stats   *model.UserStats   `json:"stats,omitempty"`
	Tasks   []model.Task       `json:"tasks"`
	Summary model.TaskStats    `json:"summary"`
	Filter  usecase.TaskFilter `json:"filter"`
	Error   string             `json:"error,omitempty"`
}

type Home struct {
	base[HomeState]
	repos  *repository.Repositories
	tasks  *usecase.TaskService
	userID string
	now    func() time.Time

	all []model.Task // last unfiltered list, guarded by state.mu
}

func NewHome(repos *repository.Repositories, tasks *usecase.TaskService, userID string, now func() time.Time) *Home {
	if now == nil {
		now = time.Now
	}
	h := &Home{repos: repos, tasks: tasks, userID: userID, now: now}
	h.setup(HomeState{Loading: true, Tasks: []model.Task{}})
	return h
}

// Start subscribes to the user's profile, tasks and stats.
func (h *Home) Start(ctx context.Context) {
	ctx = h.start(ctx)
	consume(&h.base, h.repos.Users.WatchUser(ctx, h.userID), h.applyUser)
	consume(&h.base, h.repos.Tasks.WatchTasks(ctx, h.userID), h.applyTasks)
	consume(&h.base, h.repos.Stats.WatchStats(ctx, h.userID), h.applyStats)
}

func (h *Home) applyUser(r result.Result[model.User]) {
	h.state.update(func(s *HomeState) {
		switch {
		case r.IsSuccess():
			u, _ := r.Value()
			s.User = &u
		case r.IsError():
			s.Error = r.Message()
		}
	})
}

func (h *Home) applyStats(r result.Result[model.UserStats]) {
	h.state.update(func(s *HomeState) {
		switch {
		case r.IsSuccess():
			st, _ := r.Value()
			s.Stats = &st
		case r.IsError():
			s.Error = r.Message()
		}
	})
}

func (h *Home) applyTasks(r result.Result[[]model.Task]) {
	now := h.now()
	h.state.update(func(s *HomeState) {
		switch {
		case r.IsLoading():
			s.Loading = true
		case r.IsSuccess():
			h.all, _ = r.Value()
			s.Loading = false
			s.Tasks = usecase.FilterTasks(h.all, s.Filter, now)
			s.Summary = usecase.Summarize(h.all, now)
		case r.IsError():
			s.Loading = false
			s.Error = r.Message()
		}
	})
}

// SetFilter narrows the visible list without reloading.
func (h *Home) SetFilter(f usecase.TaskFilter) {
	now := h.now()
	h.state.update(func(s *HomeState) {
		s.Filter = f
		s.Tasks = usecase.FilterTasks(h.all, f, now)
	})
}

// SelectTask asks the client to open the task's detail screen.
func (h *Home) SelectTask(taskID string) {
	h.events.push(Event{Kind: EventNavigateToTask, TaskID: taskID})
}

func (h *Home) CompleteTask(ctx context.Context, taskID string) result.Result[repository.Completion] {
	res := h.tasks.CompleteTask(ctx, h.userID, taskID)
	if c, ok := res.Value(); ok {
		h.events.push(completionEvents(c)...)
	} else {
		h.fail(res.Message())
	}
	return res
}

func (h *Home) CreateTask(ctx context.Context, t model.Task) result.Result[model.Task] {
	res := h.tasks.CreateTask(ctx, h.userID, t)
	if res.IsError() {
		h.fail(res.Message())
	}
	return res
}

func (h *Home) DeleteTask(ctx context.Context, taskID string) result.Result[struct{}] {
	res := h.tasks.DeleteTask(ctx, h.userID, taskID)
	if res.IsError() {
		h.fail(res.Message())
	}
	return res
}

// Refresh flags overdue tasks; the subscriptions pick up the change.
func (h *Home) Refresh(ctx context.Context) {
	if res := h.tasks.MarkOverdue(ctx, h.userID); res.IsError() {
		h.fail(res.Message())
	}
}

func (h *Home) DismissError() {
	h.state.update(func(s *HomeState) { s.Error = "" })
}

func (h *Home) fail(message string) {
	h.state.update(func(s *HomeState) { s.Error = message })
	h.events.push(errorEvent(message))
}

package usecase

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleLength = 100
	maxTags        = 5
	maxTagLength   = 20
	upcomingDays   = 7
)

const (
	MsgTitleRequired      = "El título es obligatorio"
	MsgTitleTooLong       = "El título no puede superar 100 caracteres"
	MsgInvalidPriority    = "Prioridad no válida"
	MsgInvalidRecurrence  = "Recurrencia no válida"
	MsgRecurrenceNeedsDue = "Las tareas recurrentes necesitan fecha límite"
	MsgDueDateInPast      = "La fecha límite no puede estar en el pasado"
	MsgTooManyTags        = "No puedes usar más de 5 etiquetas"
	MsgTagTooLong         = "Las etiquetas no pueden superar 20 caracteres"
	MsgNegativePoints     = "Los puntos no pueden ser negativos"
	MsgInvalidDays        = "El número de días debe ser positivo"
)

// TaskService applies validation, ownership and list shaping on top of the
// task repository.
type TaskService struct {
	tasks *repository.TaskRepository
	now   func() time.Time
}

func NewTaskService(tasks *repository.TaskRepository, now func() time.Time) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{tasks: tasks, now: now}
}

// TaskPatch carries the fields of an edit. Nil fields are left unchanged;
// ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *model.Priority
	Category     *string
	Tags         []string
	Points       *int
	DueDate      *time.Time
	ClearDueDate bool
	Recurrence   *model.RecurrenceType
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Status   model.TaskStatus `json:"status,omitempty"`
	Priority model.Priority   `json:"priority,omitempty"`
	Category string           `json:"category,omitempty"`
	Tag      string           `json:"tag,omitempty"`
	Query    string           `json:"query,omitempty"`
}

func invalid[T any](msg string) result.Result[T] {
	return result.Error[T](msg, fmt.Errorf("%w: %s", repository.ErrValidation, msg))
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, t model.Task) result.Result[model.Task] {
	t.UserID = userID
	t.Title = strings.TrimSpace(t.Title)
	if t.Priority != "" {
		p, ok := model.ParsePriority(string(t.Priority))
		if !ok {
			return invalid[model.Task](MsgInvalidPriority)
		}
		t.Priority = p
	}
	tags, msg := normalizeTags(t.Tags)
	if msg != "" {
		return invalid[model.Task](msg)
	}
	t.Tags = tags
	if msg := s.validate(t, true); msg != "" {
		return invalid[model.Task](msg)
	}

	t.ID, t.Status = "", ""
	return s.tasks.CreateTask(ctx, t)
}

// validate checks a task about to be stored. Due dates in the past are only
// rejected when the date is being set.
func (s *TaskService) validate(t model.Task, checkDue bool) string {
	switch {
	case t.Title == "":
		return MsgTitleRequired
	case utf8.RuneCountInString(t.Title) > maxTitleLength:
		return MsgTitleTooLong
	case t.Points < 0:
		return MsgNegativePoints
	case t.Recurrence != "" && !t.Recurrence.Valid():
		return MsgInvalidRecurrence
	case t.Recurrence != "" && t.Recurrence != model.RecurrenceNone && t.DueDate == nil:
		return MsgRecurrenceNeedsDue
	case checkDue && t.DueDate != nil && t.DueDate.Before(s.now()):
		return MsgDueDateInPast
	}
	return ""
}

// normalizeTags trims, drops empties and duplicates (case-insensitive) and
// enforces the per-task limits.
func normalizeTags(tags []string) ([]string, string) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		if utf8.RuneCountInString(tag) > maxTagLength {
			return nil, MsgTagTooLong
		}
		seen[key] = true
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, MsgTooManyTags
	}
	return out, ""
}

// GetTask returns the task only when userID owns it.
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) result.Result[model.Task] {
	res := s.tasks.GetTask(ctx, taskID)
	if t, ok := res.Value(); ok && t.UserID != userID {
		return result.Error[model.Task](repository.MsgTaskNotFound, repository.ErrNotFound)
	}
	return res
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, p TaskPatch) result.Result[model.Task] {
	res := s.GetTask(ctx, userID, taskID)
	t, ok := res.Value()
	if !ok {
		return res
	}
	if t.Status.IsTerminal() {
		return result.Error[model.Task](repository.MsgInvalidTransition,
			fmt.Errorf("%w: task %s is %s", repository.ErrInvalidTransition, t.ID, t.Status))
	}

	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		prio, ok := model.ParsePriority(string(*p.Priority))
		if !ok {
			return invalid[model.Task](MsgInvalidPriority)
		}
		t.Priority = prio
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Tags != nil {
		tags, msg := normalizeTags(p.Tags)
		if msg != "" {
			return invalid[model.Task](msg)
		}
		t.Tags = tags
	}
	if p.Points != nil {
		t.Points = *p.Points
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := p.DueDate.UTC()
		t.DueDate = &due
	}

	if msg := s.validate(t, p.DueDate != nil && !p.ClearDueDate); msg != "" {
		return invalid[model.Task](msg)
	}
	return s.tasks.UpdateTask(ctx, t)
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) result.Result[struct{}] {
	if res := s.GetTask(ctx, userID, taskID); res.IsError() {
		return result.Error[struct{}](res.Message(), res.Cause())
	}
	return s.tasks.DeleteTask(ctx, taskID)
}

func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID string) result.Result[repository.Completion] {
	if res := s.GetTask(ctx, userID, taskID); res.IsError() {
		return result.Error[repository.Completion](res.Message(), res.Cause())
	}
	return s.tasks.CompleteTask(ctx, taskID)
}

func (s *TaskService) UpdateStatus(ctx context.Context, userID, taskID string, to model.TaskStatus) result.Result[model.Task] {
	if res := s.GetTask(ctx, userID, taskID); res.IsError() {
		return res
	}
	return s.tasks.UpdateStatus(ctx, taskID, model.TaskStatus(strings.ToUpper(string(to))))
}

// ListTasks returns the user's tasks matching f in display order.
func (s *TaskService) ListTasks(ctx context.Context, userID string, f TaskFilter) result.Result[[]model.Task] {
	return result.Map(s.tasks.GetTasks(ctx, userID), func(list []model.Task) []model.Task {
		return FilterTasks(list, f, s.now())
	})
}

// FilterTasks returns the tasks of list matching f, sorted for display. list
// is not modified.
func FilterTasks(list []model.Task, f TaskFilter, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(list))
	query := fold(strings.TrimSpace(f.Query))
	for _, t := range list {
		if f.matches(t, query) {
			out = append(out, t)
		}
	}
	SortTasks(out, now)
	return out
}

func (f TaskFilter) matches(t model.Task, foldedQuery string) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.Tag != "" && !slices.ContainsFunc(t.Tags, func(tag string) bool { return strings.EqualFold(tag, f.Tag) }) {
		return false
	}
	if foldedQuery != "" &&
		!strings.Contains(fold(t.Title), foldedQuery) &&
		!strings.Contains(fold(t.Description), foldedQuery) {
		return false
	}
	return true
}

// SearchTasks matches title and description ignoring case and accents, so
// "cancion" finds "Canción". An empty query returns nothing.
func (s *TaskService) SearchTasks(ctx context.Context, userID, query string) result.Result[[]model.Task] {
	if strings.TrimSpace(query) == "" {
		return result.Success([]model.Task{})
	}
	return s.ListTasks(ctx, userID, TaskFilter{Query: query})
}

// fold lower-cases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tags lists the distinct tags in use, sorted.
func (s *TaskService) Tags(ctx context.Context, userID string) result.Result[[]string] {
	return result.Map(s.tasks.GetTasks(ctx, userID), func(list []model.Task) []string {
		seen := map[string]bool{}
		out := []string{}
		for _, t := range list {
			for _, tag := range t.Tags {
				if key := strings.ToLower(tag); !seen[key] {
					seen[key] = true
					out = append(out, tag)
				}
			}
		}
		sort.Strings(out)
		return out
	})
}

// Upcoming returns open tasks due within the next days days.
func (s *TaskService) Upcoming(ctx context.Context, userID string, days int) result.Result[[]model.Task] {
	if days <= 0 {
		return invalid[[]model.Task](MsgInvalidDays)
	}
	now := s.now()
	deadline := now.AddDate(0, 0, days)
	return s.filtered(ctx, userID, func(t model.Task) bool {
		return t.Status.IsOpen() && t.DueDate != nil && !t.DueDate.Before(now) && !t.DueDate.After(deadline)
	})
}

// Overdue returns open tasks whose due date has passed, flagged or not.
func (s *TaskService) Overdue(ctx context.Context, userID string) result.Result[[]model.Task] {
	now := s.now()
	return s.filtered(ctx, userID, func(t model.Task) bool { return t.IsOverdue(now) })
}

func (s *TaskService) filtered(ctx context.Context, userID string, keep func(model.Task) bool) result.Result[[]model.Task] {
	now := s.now()
	return result.Map(s.tasks.GetTasks(ctx, userID), func(list []model.Task) []model.Task {
		out := slices.DeleteFunc(list, func(t model.Task) bool { return !keep(t) })
		SortTasks(out, now)
		return out
	})
}

// Summary counts the task list for the dashboard.
func (s *TaskService) Summary(ctx context.Context, userID string) result.Result[model.TaskStats] {
	now := s.now().UTC()
	return result.Map(s.tasks.GetTasks(ctx, userID), func(list []model.Task) model.TaskStats {
		return Summarize(list, now)
	})
}

func Summarize(list []model.Task, now time.Time) model.TaskStats {
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	week := now.AddDate(0, 0, upcomingDays)

	stats := model.TaskStats{Total: len(list)}
	for _, t := range list {
		switch {
		case t.Status == model.StatusCompleted:
			stats.Completed++
		case t.Status == model.StatusCancelled:
			stats.Cancelled++
		default:
			stats.Pending++
		}

		switch t.Priority {
		case model.PriorityHigh:
			stats.HighPriority++
		case model.PriorityMedium:
			stats.MediumPriority++
		case model.PriorityLow:
			stats.LowPriority++
		}

		if !t.Status.IsOpen() || t.DueDate == nil {
			continue
		}
		switch due := *t.DueDate; {
		case t.IsOverdue(now) || t.Status == model.StatusOverdue:
			stats.Overdue++
		case due.Before(endOfDay):
			stats.DueToday++
		case !due.After(week):
			stats.Upcoming++
		}
	}
	return stats
}

// MarkOverdue flags the user's past-due open tasks.
func (s *TaskService) MarkOverdue(ctx context.Context, userID string) result.Result[int] {
	return s.tasks.MarkOverdue(ctx, userID)
}

// SortTasks orders open tasks first, overdue ones leading, then by priority,
// due date (undated last) and creation time.
func SortTasks(list []model.Task, now time.Time) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Status.IsOpen() != b.Status.IsOpen() {
			return a.Status.IsOpen()
		}
		if ao, bo := a.IsOverdue(now), b.IsOverdue(now); ao != bo {
			return ao
		}
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

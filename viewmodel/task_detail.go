package viewmodel

import (
	"context"
	"errors"
	"io"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
	"taskquest/usecase"
)

type TaskDetailState struct {
	Loading     bool               `json:"loading"`
	Task        *model.Task        `json:"task,omitempty"`
	Attachments []model.Attachment `json:"attachments"`
	Deleted     bool               `json:"deleted"`
	Error       string             `json:"error,omitempty"`
}

type TaskDetail struct {
	base[TaskDetailState]
	repos  *repository.Repositories
	tasks  *usecase.TaskService
	userID string
	taskID string
}

func NewTaskDetail(repos *repository.Repositories, tasks *usecase.TaskService, userID, taskID string) *TaskDetail {
	d := &TaskDetail{repos: repos, tasks: tasks, userID: userID, taskID: taskID}
	d.setup(TaskDetailState{Loading: true, Attachments: []model.Attachment{}})
	return d
}

// Start subscribes to the task and its attachments.
func (d *TaskDetail) Start(ctx context.Context) {
	ctx = d.start(ctx)
	consume(&d.base, d.repos.Tasks.WatchTask(ctx, d.userID, d.taskID), d.applyTask)
	consume(&d.base, d.repos.Attachments.WatchAttachments(ctx, d.userID, d.taskID), d.applyAttachments)
}

func (d *TaskDetail) applyTask(r result.Result[model.Task]) {
	d.state.update(func(s *TaskDetailState) {
		switch {
		case r.IsLoading():
			s.Loading = true
		case r.IsSuccess():
			t, _ := r.Value()
			s.Loading = false
			if t.UserID != d.userID {
				s.Task, s.Error = nil, repository.MsgTaskNotFound
				return
			}
			s.Task = &t
		case r.IsError():
			s.Loading = false
			// The reload that follows our own delete is expected to miss.
			if s.Deleted && errors.Is(r.Err(), repository.ErrNotFound) {
				return
			}
			s.Task, s.Error = nil, r.Message()
		}
	})
}

func (d *TaskDetail) applyAttachments(r result.Result[[]model.Attachment]) {
	d.state.update(func(s *TaskDetailState) {
		switch {
		case r.IsSuccess():
			list, _ := r.Value()
			s.Attachments = make([]model.Attachment, 0, len(list))
			for _, a := range list {
				if a.UserID == d.userID {
					s.Attachments = append(s.Attachments, a)
				}
			}
		case r.IsError():
			s.Error = r.Message()
		}
	})
}

func (d *TaskDetail) Complete(ctx context.Context) result.Result[repository.Completion] {
	res := d.tasks.CompleteTask(ctx, d.userID, d.taskID)
	if c, ok := res.Value(); ok {
		d.events.push(completionEvents(c)...)
	} else {
		d.fail(res.Message())
	}
	return res
}

func (d *TaskDetail) SetStatus(ctx context.Context, status model.TaskStatus) result.Result[model.Task] {
	if status == model.StatusCompleted {
		return result.Map(d.Complete(ctx), func(c repository.Completion) model.Task { return c.Task })
	}
	res := d.tasks.UpdateStatus(ctx, d.userID, d.taskID, status)
	if res.IsError() {
		d.fail(res.Message())
	}
	return res
}

func (d *TaskDetail) Edit(ctx context.Context, p usecase.TaskPatch) result.Result[model.Task] {
	res := d.tasks.UpdateTask(ctx, d.userID, d.taskID, p)
	if res.IsError() {
		d.fail(res.Message())
	}
	return res
}

// Delete removes the task and sends the client back.
func (d *TaskDetail) Delete(ctx context.Context) result.Result[struct{}] {
	d.state.update(func(s *TaskDetailState) { s.Deleted = true })
	res := d.tasks.DeleteTask(ctx, d.userID, d.taskID)
	if res.IsError() {
		d.state.update(func(s *TaskDetailState) { s.Deleted = false })
		d.fail(res.Message())
		return res
	}
	d.state.update(func(s *TaskDetailState) { s.Task = nil })
	d.events.push(Event{Kind: EventNavigateBack, TaskID: d.taskID})
	return res
}

func (d *TaskDetail) AddAttachment(ctx context.Context, fileName, mimeType string, body io.Reader) result.Result[model.Attachment] {
	if res := d.tasks.GetTask(ctx, d.userID, d.taskID); res.IsError() {
		d.fail(res.Message())
		return result.Error[model.Attachment](res.Message(), res.Cause())
	}
	res := d.repos.Attachments.AddAttachment(ctx, d.taskID, fileName, mimeType, body)
	if res.IsError() {
		d.fail(res.Message())
	}
	return res
}

func (d *TaskDetail) RemoveAttachment(ctx context.Context, attachmentID string) result.Result[struct{}] {
	a, ok := d.repos.Attachments.GetAttachment(ctx, attachmentID).Value()
	if !ok || a.TaskID != d.taskID || a.UserID != d.userID {
		d.fail(repository.MsgAttachmentNotFound)
		return result.Error[struct{}](repository.MsgAttachmentNotFound, repository.ErrNotFound)
	}
	res := d.repos.Attachments.DeleteAttachment(ctx, attachmentID)
	if res.IsError() {
		d.fail(res.Message())
	}
	return res
}

// UploadPending drains the user's upload queue and reports the outcome.
func (d *TaskDetail) UploadPending(ctx context.Context) result.Result[repository.UploadReport] {
	res := d.repos.Attachments.UploadPending(ctx, d.userID)
	report, ok := res.Value()
	switch {
	case !ok:
		d.fail(res.Message())
	case report.Failed > 0:
		d.events.push(errorEvent("Algunos archivos no se pudieron subir"))
	}
	return res
}

func (d *TaskDetail) fail(message string) {
	d.state.update(func(s *TaskDetailState) { s.Error = message })
	d.events.push(errorEvent(message))
}

package dto

import (
	"time"

	"taskquest/model"
	"taskquest/usecase"
)

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" binding:"priority"`
	Points      int        `json:"points" binding:"gte=0"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"due_date"`
	Recurrence  string     `json:"recurrence" binding:"recurrence"`
}

func (r CreateTaskRequest) ToTask() model.Task {
	return model.Task{
		Title:       r.Title,
		Description: r.Description,
		Priority:    model.Priority(r.Priority),
		Points:      r.Points,
		Category:    r.Category,
		Tags:        r.Tags,
		DueDate:     r.DueDate,
		Recurrence:  model.RecurrenceType(r.Recurrence),
	}
}

// UpdateTaskRequest is a partial edit; absent fields stay as they are.
type UpdateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority" binding:"omitempty,priority"`
	Points       *int       `json:"points" binding:"omitempty,gte=0"`
	Category     *string    `json:"category"`
	Tags         []string   `json:"tags"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Recurrence   *string    `json:"recurrence" binding:"omitempty,recurrence"`
}

func (r UpdateTaskRequest) ToPatch() usecase.TaskPatch {
	p := usecase.TaskPatch{
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Tags:         r.Tags,
		Points:       r.Points,
		DueDate:      r.DueDate,
		ClearDueDate: r.ClearDueDate,
	}
	if r.Priority != nil {
		prio := model.Priority(*r.Priority)
		p.Priority = &prio
	}
	if r.Recurrence != nil {
		rec := model.RecurrenceType(*r.Recurrence)
		p.Recurrence = &rec
	}
	return p
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// TaskFilterQuery binds the list filters from the query string.
type TaskFilterQuery struct {
	Status   string `form:"status"`
	Priority string `form:"priority" binding:"priority"`
	Category string `form:"category"`
	Tag      string `form:"tag"`
	Query    string `form:"q"`
}

func (q TaskFilterQuery) ToFilter() usecase.TaskFilter {
	f := usecase.TaskFilter{
		Status:   model.TaskStatus(q.Status),
		Category: q.Category,
		Tag:      q.Tag,
		Query:    q.Query,
	}
	if p, ok := model.ParsePriority(q.Priority); ok {
		f.Priority = p
	}
	return f
}

// TaskResponse carries the derived fields clients render directly.
type TaskResponse struct {
	model.Task
	PriorityColor    string `json:"priority_color"`
	FormattedDueDate string `json:"formatted_due_date"`
	EffectivePoints  int    `json:"effective_points"`
	Overdue          bool   `json:"overdue"`
}

func ToTaskResponse(t model.Task, now time.Time) TaskResponse {
	return TaskResponse{
		Task:             t,
		PriorityColor:    t.PriorityColor(),
		FormattedDueDate: t.FormattedDueDate(),
		EffectivePoints:  t.EffectivePoints(),
		Overdue:          t.IsOverdue(now),
	}
}

func ToTaskResponses(tasks []model.Task, now time.Time) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		responses[i] = ToTaskResponse(t, now)
	}
	return responses
}

// AttachmentResponse adds the human-readable size.
type AttachmentResponse struct {
	model.Attachment
	FormattedSize string `json:"formatted_size"`
	IsImage       bool   `json:"is_image"`
}

func ToAttachmentResponses(list []model.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, len(list))
	for i, a := range list {
		out[i] = ToAttachmentResponse(a)
	}
	return out
}

func ToAttachmentResponse(a model.Attachment) AttachmentResponse {
	return AttachmentResponse{Attachment: a, FormattedSize: a.FormattedSize(), IsImage: a.IsImage()}
}

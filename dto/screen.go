package dto

import "taskquest/usecase"

// Intent is one user action sent to a live screen. Action picks the intent;
// the other fields are read only by the actions that need them.
type Intent struct {
	Action       string             `json:"action" binding:"required"`
	TaskID       string             `json:"task_id"`
	AttachmentID string             `json:"attachment_id"`
	Status       string             `json:"status"`
	Tab          string             `json:"tab"`
	Filter       usecase.TaskFilter `json:"filter"`
	Task         *CreateTaskRequest `json:"task"`
	Patch        *UpdateTaskRequest `json:"patch"`
}

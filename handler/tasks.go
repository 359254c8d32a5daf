package handler

import (
	"strconv"

	"taskquest/dto"
	"taskquest/middleware"
	"taskquest/model"
	"taskquest/repository"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) taskList(list []model.Task) any {
	return dto.ToTaskResponses(list, h.now())
}

func (h *Handler) task(t model.Task) any {
	return dto.ToTaskResponse(t, h.now())
}

func (h *Handler) ListTasks(c *gin.Context) {
	var q dto.TaskFilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.BadRequest(c, repository.MsgValidation)
		return
	}
	res := h.tasks.ListTasks(c.Request.Context(), middleware.UserID(c), q.ToFilter())
	respondWith(c, res, h.taskList)
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if !bind(c, &req) {
		return
	}
	res := h.tasks.CreateTask(c.Request.Context(), middleware.UserID(c), req.ToTask())
	t, ok := res.Value()
	if !ok {
		fail(c, res)
		return
	}
	utils.Created(c, h.task(t))
}

func (h *Handler) GetTask(c *gin.Context) {
	respondWith(c, h.tasks.GetTask(c.Request.Context(), middleware.UserID(c), c.Param("id")), h.task)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if !bind(c, &req) {
		return
	}
	res := h.tasks.UpdateTask(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.ToPatch())
	respondWith(c, res, h.task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	respondMessage(c, h.tasks.DeleteTask(c.Request.Context(), middleware.UserID(c), c.Param("id")), "Tarea eliminada")
}

// CompleteTask answers with the award so the client can celebrate; a repeat
// call returns awarded=false.
func (h *Handler) CompleteTask(c *gin.Context) {
	respond(c, h.tasks.CompleteTask(c.Request.Context(), middleware.UserID(c), c.Param("id")))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !bind(c, &req) {
		return
	}
	res := h.tasks.UpdateStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"), model.TaskStatus(req.Status))
	respondWith(c, res, h.task)
}

func (h *Handler) SearchTasks(c *gin.Context) {
	respondWith(c, h.tasks.SearchTasks(c.Request.Context(), middleware.UserID(c), c.Query("q")), h.taskList)
}

func (h *Handler) ListTags(c *gin.Context) {
	respond(c, h.tasks.Tags(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) UpcomingTasks(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		utils.BadRequest(c, repository.MsgValidation)
		return
	}
	respondWith(c, h.tasks.Upcoming(c.Request.Context(), middleware.UserID(c), days), h.taskList)
}

func (h *Handler) OverdueTasks(c *gin.Context) {
	respondWith(c, h.tasks.Overdue(c.Request.Context(), middleware.UserID(c)), h.taskList)
}

func (h *Handler) MarkOverdue(c *gin.Context) {
	res := h.tasks.MarkOverdue(c.Request.Context(), middleware.UserID(c))
	respondWith(c, res, func(n int) any { return gin.H{"marked": n} })
}

func (h *Handler) TaskSummary(c *gin.Context) {
	respond(c, h.tasks.Summary(c.Request.Context(), middleware.UserID(c)))
}

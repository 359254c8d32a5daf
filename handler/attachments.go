package handler

import (
	"bytes"
	"mime"
	"net/http"

	"taskquest/dto"
	"taskquest/middleware"
	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListAttachments(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("id")
	if res := h.tasks.GetTask(ctx, middleware.UserID(c), taskID); res.IsError() {
		fail(c, res)
		return
	}
	respondWith(c, h.repos.Attachments.GetAttachments(ctx, middleware.UserID(c), taskID), func(list []model.Attachment) any {
		return dto.ToAttachmentResponses(list)
	})
}

// AddAttachment stores the uploaded file locally and queues it for the next
// upload drain.
func (h *Handler) AddAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("id")
	if res := h.tasks.GetTask(ctx, middleware.UserID(c), taskID); res.IsError() {
		fail(c, res)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Falta el archivo")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res := h.repos.Attachments.AddAttachment(ctx, taskID, header.Filename, contentType, file)
	a, ok := res.Value()
	if !ok {
		fail(c, res)
		return
	}
	utils.Created(c, dto.ToAttachmentResponse(a))
}

// ownedAttachment loads the attachment and hides it from other users.
func (h *Handler) ownedAttachment(c *gin.Context) (model.Attachment, bool) {
	res := h.repos.Attachments.GetAttachment(c.Request.Context(), c.Param("id"))
	a, ok := res.Value()
	if ok && a.UserID != middleware.UserID(c) {
		res = result.Error[model.Attachment](repository.MsgAttachmentNotFound, repository.ErrNotFound)
		ok = false
	}
	if !ok {
		fail(c, res)
	}
	return a, ok
}

func (h *Handler) DownloadAttachment(c *gin.Context) {
	a, ok := h.ownedAttachment(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	res := h.repos.Attachments.Download(c.Request.Context(), a.ID, &buf)
	if res.IsError() {
		fail(c, res)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	c.Data(http.StatusOK, a.MimeType, buf.Bytes())
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	a, ok := h.ownedAttachment(c)
	if !ok {
		return
	}
	respondMessage(c, h.repos.Attachments.DeleteAttachment(c.Request.Context(), a.ID), "Archivo eliminado")
}

func (h *Handler) PendingUploads(c *gin.Context) {
	res := h.repos.Attachments.GetPendingUploads(c.Request.Context(), middleware.UserID(c))
	respondWith(c, res, func(list []model.Attachment) any { return dto.ToAttachmentResponses(list) })
}

// UploadPending drains the queue. Per-file failures are reported in the
// body; the request itself only fails when blob storage is unavailable.
func (h *Handler) UploadPending(c *gin.Context) {
	respond(c, h.repos.Attachments.UploadPending(c.Request.Context(), middleware.UserID(c)))
}

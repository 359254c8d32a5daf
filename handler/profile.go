package handler

import (
	"bytes"
	"net/http"

	"taskquest/dto"
	"taskquest/middleware"
	"taskquest/model"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

func profile(u model.User) any { return dto.ToUserProfileResponse(u) }

func (h *Handler) GetProfile(c *gin.Context) {
	respondWith(c, h.repos.Users.GetUser(c.Request.Context(), middleware.UserID(c)), profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bind(c, &req) {
		return
	}
	res := h.repos.Users.UpdateProfile(c.Request.Context(), middleware.UserID(c), req.DisplayName, req.AvatarURL)
	respondWith(c, res, profile)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.ChangePassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	respondMessage(c, res, "Contraseña actualizada")
}

func (h *Handler) ChangeEmail(c *gin.Context) {
	var req dto.ChangeEmailRequest
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.ChangeEmail(c.Request.Context(), middleware.UserID(c), req.Password, req.Email)
	respondWith(c, res, profile)
}

func (h *Handler) Reauthenticate(c *gin.Context) {
	var req dto.PasswordRequest
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.Reauthenticate(c.Request.Context(), middleware.UserID(c), req.Password)
	respondMessage(c, res, "Identidad confirmada")
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	var req dto.PasswordRequest
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.DeleteAccount(c.Request.Context(), middleware.UserID(c), req.Password)
	respondMessage(c, res, "Cuenta eliminada")
}

func (h *Handler) UploadAvatar(c *gin.Context) {
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		utils.BadRequest(c, "Falta la imagen")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if model.AttachmentTypeFromMIME(contentType) != model.AttachmentImage {
		utils.BadRequest(c, "El avatar debe ser una imagen")
		return
	}

	res := h.repos.Users.UploadAvatar(c.Request.Context(), middleware.UserID(c), header.Filename, contentType, file)
	respondWith(c, res, profile)
}

// DownloadAvatar buffers the image so a failed read still yields a JSON
// error instead of a truncated body.
func (h *Handler) DownloadAvatar(c *gin.Context) {
	var buf bytes.Buffer
	res := h.repos.Users.DownloadAvatar(c.Request.Context(), middleware.UserID(c), &buf)
	if res.IsError() {
		fail(c, res)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(buf.Bytes()), buf.Bytes())
}

func (h *Handler) IncrementStreak(c *gin.Context) {
	respondWith(c, h.repos.Users.IncrementStreak(c.Request.Context(), middleware.UserID(c)), profile)
}

func (h *Handler) ResetStreak(c *gin.Context) {
	respondWith(c, h.repos.Users.ResetStreak(c.Request.Context(), middleware.UserID(c)), profile)
}

// AddPoints credits a manual bonus. It moves total points and XP but stays
// out of the weekly and monthly buckets.
func (h *Handler) AddPoints(c *gin.Context) {
	var req dto.AddPointsRequest
	if !bind(c, &req) {
		return
	}
	respond(c, h.repos.Users.AddPoints(c.Request.Context(), middleware.UserID(c), req.Points))
}

func (h *Handler) GetStats(c *gin.Context) {
	respond(c, h.repos.Stats.GetStats(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) RecalculateStats(c *gin.Context) {
	respond(c, h.repos.Stats.RecalculateStats(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) GetAchievements(c *gin.Context) {
	respond(c, h.repos.Achievements.GetAchievements(c.Request.Context(), middleware.UserID(c)))
}

// CheckAchievements re-evaluates progress and returns what was newly unlocked.
func (h *Handler) CheckAchievements(c *gin.Context) {
	respond(c, h.repos.Achievements.CheckAchievements(c.Request.Context(), middleware.UserID(c)))
}

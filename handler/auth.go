package handler

import (
	"errors"
	"net/http"

	"taskquest/dto"
	"taskquest/middleware"
	"taskquest/model"
	"taskquest/repository"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bind(c, &req) {
		return
	}

	res := h.repos.Auth.SignUp(c.Request.Context(), repository.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	u, ok := res.Value()
	if !ok {
		fail(c, res)
		return
	}
	utils.Created(c, dto.ToUserProfileResponse(u))
}

func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bind(c, &req) {
		return
	}

	res := h.repos.Auth.SignIn(c.Request.Context(), repository.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		Code:      req.Code,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if errors.Is(res.Err(), repository.ErrTwoFactorRequired) {
		c.JSON(http.StatusUnauthorized, &utils.Response{
			Error: res.Message(),
			Data:  gin.H{"requires_2fa": true},
		})
		return
	}
	respond(c, res)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bind(c, &req) {
		return
	}
	respond(c, h.repos.Auth.Refresh(c.Request.Context(), req.RefreshToken))
}

func (h *Handler) Logout(c *gin.Context) {
	respondMessage(c, h.repos.Auth.SignOut(c.Request.Context(), middleware.Claims(c)), "Sesión cerrada")
}

// RequestPasswordReset always answers the same way so the endpoint cannot be
// used to probe which emails have accounts.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	res := h.repos.Auth.RequestPasswordReset(ctx, req.Email)
	token, ok := res.Value()
	if !ok {
		fail(c, res)
		return
	}
	if token != "" {
		h.onReset(ctx, req.Email, token)
	}
	c.JSON(http.StatusAccepted, &utils.Response{
		Message: "Si el correo está registrado, recibirás un enlace de recuperación",
	})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.PasswordResetConfirm
	if !bind(c, &req) {
		return
	}
	respondMessage(c, h.repos.Auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword),
		"Contraseña actualizada")
}

func (h *Handler) ListSessions(c *gin.Context) {
	current := ""
	if claims := middleware.Claims(c); claims != nil {
		current = claims.SessionID
	}
	res := h.repos.Auth.ListSessions(c.Request.Context(), middleware.UserID(c))
	respondWith(c, res, func(list []model.Session) any {
		return dto.ToSessionResponses(list, current, h.now())
	})
}

func (h *Handler) EndSession(c *gin.Context) {
	res := h.repos.Auth.EndSession(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	respondMessage(c, res, "Sesión cerrada")
}

func (h *Handler) SetupTwoFactor(c *gin.Context) {
	respond(c, h.repos.Auth.SetupTwoFactor(c.Request.Context(), middleware.UserID(c)))
}

func (h *Handler) EnableTwoFactor(c *gin.Context) {
	var req dto.TwoFactorCode
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.EnableTwoFactor(c.Request.Context(), middleware.UserID(c), req.Code)
	respondMessage(c, res, "Verificación en dos pasos activada")
}

func (h *Handler) DisableTwoFactor(c *gin.Context) {
	var req dto.TwoFactorCode
	if !bind(c, &req) {
		return
	}
	res := h.repos.Auth.DisableTwoFactor(c.Request.Context(), middleware.UserID(c), req.Code)
	respondMessage(c, res, "Verificación en dos pasos desactivada")
}

// Package handler exposes the repositories, the task service and the view
// models over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskquest/repository"
	"taskquest/result"
	"taskquest/services"
	"taskquest/usecase"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

const defaultMaxUpload = 10 << 20

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier func(ctx context.Context, email, token string)

type Options struct {
	Logger          *slog.Logger
	Clock           func() time.Time
	LeaderboardSize int
	MaxUploadSize   int64
	OnPasswordReset ResetNotifier
	// KeepAlive is the ping interval of the event streams.
	KeepAlive       time.Duration
	// HealthChecks are probed by /health, keyed by dependency name.
	HealthChecks    map[string]func(context.Context) error
}

type Handler struct {
	repos   *repository.Repositories
	tasks   *usecase.TaskService
	logger  *slog.Logger
	now     func() time.Time
	opts    Options
	onReset ResetNotifier
	screens *screenRegistry
}

func New(repos *repository.Repositories, tasks *usecase.TaskService, opts Options) *Handler {
	h := &Handler{
		repos:   repos,
		tasks:   tasks,
		logger:  opts.Logger,
		now:     opts.Clock,
		opts:    opts,
		onReset: opts.OnPasswordReset,
		screens: newScreenRegistry(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.opts.LeaderboardSize <= 0 {
		h.opts.LeaderboardSize = 50
	}
	if h.opts.MaxUploadSize <= 0 {
		h.opts.MaxUploadSize = defaultMaxUpload
	}
	if h.onReset == nil {
		h.onReset = func(ctx context.Context, email, token string) {
			h.logger.InfoContext(ctx, "password reset token issued", "email", email, "token", token)
		}
	}
	return h
}

// statusFor maps a failure cause to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrValidation), errors.Is(err, repository.ErrInvalidResetToken):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrInvalidTransition), errors.Is(err, repository.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidCredentials),
		errors.Is(err, repository.ErrTwoFactorRequired),
		errors.Is(err, repository.ErrInvalidTwoFactor),
		errors.Is(err, repository.ErrSessionExpired),
		errors.Is(err, repository.ErrTokenRevoked),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenExpired),
		errors.Is(err, services.ErrWrongTokenType):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrRemoteNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fail[T any](c *gin.Context, res result.Result[T]) {
	utils.Abort(c, statusFor(res.Err()), res.Message())
}

// respond writes the value of a successful result or the error envelope.
func respond[T any](c *gin.Context, res result.Result[T]) {
	respondWith(c, res, func(v T) any { return v })
}

func respondWith[T any](c *gin.Context, res result.Result[T], shape func(T) any) {
	v, ok := res.Value()
	if !ok {
		fail(c, res)
		return
	}
	utils.Success(c, shape(v))
}

// respondMessage answers a result with no payload.
func respondMessage[T any](c *gin.Context, res result.Result[T], message string) {
	if res.IsError() {
		fail(c, res)
		return
	}
	utils.Message(c, message)
}

// bind decodes the JSON body into req and answers 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.TrackError("validation", "invalid_request")
		utils.BadRequest(c, repository.MsgValidation)
		return false
	}
	return true
}

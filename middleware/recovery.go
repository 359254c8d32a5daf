package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"taskquest/repository"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a 500 envelope and logs the stack.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				utils.TrackError("http", "panic")
				logger.Error("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ContextRequestID),
					"stack", string(debug.Stack()))
				utils.Abort(c, http.StatusInternalServerError, repository.MsgUnexpected)
			}
		}()
		c.Next()
	}
}

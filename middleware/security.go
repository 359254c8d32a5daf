package middleware

import (
	"net/http"

	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimiter rejects bodies larger than maxSize. Bodies without a
// declared length are cut off by MaxBytesReader while being read.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.Abort(c, http.StatusRequestEntityTooLarge, "El archivo es demasiado grande")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

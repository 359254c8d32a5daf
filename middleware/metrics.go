package middleware

import (
	"strconv"
	"time"

	"taskquest/utils"

	"github.com/gin-gonic/gin"
)

// Metrics records request count, duration and response size per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		utils.ActiveRequests.Inc()
		defer utils.ActiveRequests.Dec()

		c.Next()

		// Label by route template so ids do not explode cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		utils.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		utils.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			utils.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

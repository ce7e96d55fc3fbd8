package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware returns middleware that instruments API requests.
// The route template is used as the path label, not the raw URL, so
// /api/v1/assets/:ticker stays one series regardless of ticker.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			// Requests that matched no route share one label value
			path = "unmatched"
		}

		duration := float64(time.Since(start).Milliseconds())
		statusCode := strconv.Itoa(c.Writer.Status())

		RecordAPIRequest(c.Request.Method, path, statusCode, duration)
	}
}

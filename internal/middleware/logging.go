package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
)

// RequestLogger пишет одну строку на запрос.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"took", time.Since(start).Truncate(time.Microsecond),
		}
		if id, ok := c.Get(CtxUserID); ok {
			args = append(args, "user_id", id)
		}
		switch {
		case status >= 500:
			log.Error(c.Request.Context(), "[http][request]", args...)
		case status >= 400:
			log.Warn(c.Request.Context(), "[http][request]", args...)
		default:
			log.Debug(c.Request.Context(), "[http][request]", args...)
		}
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/babyshield/crownsafe-backend/internal/platform/ctxutil"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// RequestLog emits one structured line per request after it completes.
func RequestLog(baseLog *logger.Logger) gin.HandlerFunc {
	log := baseLog.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"trace_id", ctxutil.TraceID(c.Request.Context()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			log.Error("Request failed", fields...)
			return
		}
		log.Info("Request completed", fields...)
	}
}

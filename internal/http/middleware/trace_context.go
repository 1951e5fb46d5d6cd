package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/babyshield/crownsafe-backend/internal/platform/ctxutil"
)

const headerRequestID = "X-Request-ID"

// TraceContext stamps every request with trace and request ids. An inbound
// X-Request-ID is honored so upstream proxies can correlate.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		td := &ctxutil.TraceData{
			TraceID:   uuid.NewString(),
			RequestID: requestID,
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), td)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerRequestID, requestID)
		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	KeyRequestID  = "X-Request-ID"
	HeaderTraceID = "X-Trace-ID"
)

// RequestID 透传或生成请求 ID；有 span 时一并返回 trace id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(KeyRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			c.Writer.Header().Set(HeaderTraceID, sc.TraceID().String())
		}
		c.Next()
	}
}

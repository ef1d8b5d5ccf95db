package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/transport/http/response"
)

// Timeout 为下游查询设置截止时间；处理器未写响应时补 504
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Error(c, context.DeadlineExceeded)
		}
	}
}

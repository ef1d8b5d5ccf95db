package response

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/apperr"
)

var exposeStack atomic.Bool

// ExposeStack 非生产环境在 500 响应中附带错误链
func ExposeStack(on bool) { exposeStack.Store(on) }

// Error 唯一的错误序列化点
func Error(c *gin.Context, err error) {
	ErrorWithStack(c, err, "")
}

// ErrorWithStack stack 为空时使用错误链
func ErrorWithStack(c *gin.Context, err error, stack string) {
	ae := apperr.From(err)
	_ = c.Error(err)
	env := Fail(string(ae.Code), ae.Error(), ae.Details)
	if exposeStack.Load() && ae.Code == apperr.CodeInternal {
		if stack == "" && ae.Err != nil {
			stack = ae.Err.Error()
		}
		env.Error.Stack = stack
	}
	if ae.Code == apperr.CodeInternal && !exposeStack.Load() {
		env.Error.Message = "Internal server error"
	}
	c.AbortWithStatusJSON(ae.Status, env)
}

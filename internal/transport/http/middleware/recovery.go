package middleware

import (
	"fmt"
	"runtime/debug"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/transport/http/response"
)

// Recovery panic 记录堆栈并以 500 信封返回
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, rec any) {
		response.ErrorWithStack(c,
			apperr.Internal("internal server error", fmt.Errorf("panic: %v", rec)),
			string(debug.Stack()))
	})
}

package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/domain"
	mdw "shelf-taught/internal/transport/http/middleware"
)

// NewAdminEngine 内网管理端：只挂健康检查、指标与 /api/admin
func NewAdminEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry, o Options) *gin.Engine {
	o = o.withDefaults()
	r := base(l, o)
	if o.RateLimit.RPS > 0 {
		// 内网入口只用一个全局桶
		r.Use(mdw.RateLimit(rate.Limit(o.RateLimit.RPS), o.RateLimit.Burst))
	}
	r.Use(
		mdw.ConcurrencyLimit(o.MaxConcurrent),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Sanitize(),
		mdw.Timeout(o.RequestTimeout),
	)

	r.GET("/metrics", mdw.MetricsHandler())
	reg.MountAllRoot(&r.RouterGroup)

	admin := r.Group("/api/admin", mdw.Authenticate(jwter), mdw.RequireRole(domain.RoleAdmin))
	reg.MountAllAdmin(admin)
	return r
}

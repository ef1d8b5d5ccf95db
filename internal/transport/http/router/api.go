package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/server"
	"shelf-taught/internal/domain"
	mdw "shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/response"
)

type Options struct {
	App            config.App
	RateLimit      config.RateLimit
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MaxConcurrent  int64
	Tracing        bool
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 10 << 20
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 300
	}
	return o
}

// base 两个 engine 共用的中间件链
func base(l *zap.Logger, o Options) *gin.Engine {
	r := server.NewRouter(o.App)
	if o.Tracing {
		r.Use(mdw.Tracing(o.App.Name))
	}
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(l),
		mdw.Metrics(),
		mdw.Recovery(l),
		mdw.SecurityHeaders(),
	)
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperr.NotFound("Route "+c.Request.Method+" "+c.Request.URL.Path+" not found"))
	})
	return r
}

func NewAPIEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry, o Options) *gin.Engine {
	o = o.withDefaults()
	r := base(l, o)

	chain := []gin.HandlerFunc{}
	if o.RateLimit.RPS > 0 {
		chain = append(chain, mdw.RateLimitPerIP(rate.Limit(o.RateLimit.RPS), o.RateLimit.Burst))
	}
	chain = append(chain,
		mdw.ConcurrencyLimit(o.MaxConcurrent),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Sanitize(),
		mdw.Timeout(o.RequestTimeout),
	)
	r.Use(chain...)

	r.GET("/metrics", mdw.MetricsHandler())
	reg.MountAllRoot(&r.RouterGroup)

	api := r.Group("/api")
	reg.MountAllAPI(api)

	admin := api.Group("/admin", mdw.Authenticate(jwter), mdw.RequireRole(domain.RoleAdmin))
	reg.MountAllAdmin(admin)
	return r
}

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/logger"
)

// NewRouter 基础 engine：运行模式 + CORS；业务中间件由 router 包挂载
func NewRouter(app config.App) *gin.Engine {
	if app.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// 让 c.Done()/c.Deadline() 跟随请求上下文
	r.ContextWithFallback = true
	r.Use(cors.New(corsConfig(app)))
	return r
}

func corsConfig(app config.App) cors.Config {
	origins := append([]string(nil), app.CORSOrigins...)
	if len(origins) == 0 && app.FrontendURL != "" {
		origins = []string{app.FrontendURL}
	}
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func BuildServer(addr string, handler http.Handler, l *zap.Logger, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
		ErrorLog:          logger.ToStdLogger(l.Named("http"), zapcore.ErrorLevel),
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

// Package app 进程级装配：连接池、缓存、对象存储、repo、service 与 HTTP 模块。
// cmd/api、cmd/admin 与 cmd/shelfctl 共用。
package app

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/database"
	"shelf-taught/internal/core/storage"
	"shelf-taught/internal/repo"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/handler"
	mdw "shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/router"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Cache  *cache.Cache
	Images storage.ImageStore
	JWT    *auth.JWTer

	Auth      *service.AuthService
	Curricula *service.CurriculumService
	Search    *service.SearchService
	Saved     *service.SavedService
	Catalog   *service.CatalogService
	Admin     *service.AdminService
	Sitemap   *service.SitemapService

	Registry *router.Registry

	closers []func() error
}

// OpenDB 按配置建立连接池
func OpenDB(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	return database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
}

func NewJWTer(c config.JWT) *auth.JWTer {
	return &auth.JWTer{
		Secret:   []byte(c.Secret),
		Issuer:   c.Issuer,
		Audience: c.Audience,
		TTL:      time.Duration(c.AccessTokenTTLMin) * time.Minute,
		Leeway:   30 * time.Second,
	}
}

// New 在已打开的 db 上装配全部依赖；redis 与对象存储不可用时降级
func New(ctx context.Context, cfg *config.Config, l *zap.Logger, db *gorm.DB) (*App, error) {
	a := &App{Cfg: cfg, Log: l, DB: db, JWT: NewJWTer(cfg.JWT)}

	a.Cache = cache.Disabled()
	if cfg.Redis.Enable {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			l.Warn("redis unavailable, caching disabled", zap.Error(err))
			_ = c.Close()
		} else {
			a.Cache = c
			a.closers = append(a.closers, c.Close)
		}
	}

	a.Images = storage.Unconfigured{}
	gcs, err := storage.NewGCS(ctx, storage.GCSOptions{
		Bucket:          cfg.Storage.Bucket,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		CredentialsFile: cfg.Storage.CredentialsFile,
	})
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		l.Info("image storage not configured, uploads disabled")
	case err != nil:
		l.Warn("image storage init failed, uploads disabled", zap.Error(err))
	default:
		a.Images = gcs
		a.closers = append(a.closers, gcs.Close)
	}

	ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
	filterTTL := time.Duration(cfg.Redis.FilterTTLSec) * time.Second

	users := repo.NewUserRepo(db)
	curricula := repo.NewCurriculumRepo(db)
	taxonomy := repo.NewTaxonomyRepo(db)
	saved := repo.NewSavedRepo(db)
	analytics := repo.NewAnalyticsRepo(db)

	a.Auth = service.NewAuthService(users, a.JWT, l)
	a.Curricula = service.NewCurriculumService(curricula, taxonomy, saved, a.Images, a.Cache, cfg.Storage.MaxUploadMB, l)
	a.Search = service.NewSearchService(curricula, taxonomy, a.Cache, filterTTL, l)
	a.Saved = service.NewSavedService(saved, curricula, a.Cache, l)
	a.Catalog = service.NewCatalogService(taxonomy, a.Cache, ttl, l)
	a.Admin = service.NewAdminService(users, analytics, service.EmptyModerationQueue{}, a.Cache, ttl, l)
	a.Sitemap = service.NewSitemapService(curricula, cfg.App.FrontendURL, a.Cache, ttl)

	var authLimit gin.HandlerFunc
	if cfg.RateLimit.AuthRPS > 0 {
		authLimit = mdw.NewIPLimiter(rate.Limit(cfg.RateLimit.AuthRPS), cfg.RateLimit.AuthBurst).
			Middleware("Too many authentication attempts, please try again later")
	}

	a.Registry = router.NewRegistry(
		handler.NewHealthHandler(db, a.Cache, cfg.App.Env, Version),
		handler.NewSEOHandler(a.Sitemap),
		handler.NewAuthHandler(a.Auth, a.JWT, authLimit),
		handler.NewCurriculumHandler(a.Curricula, a.JWT),
		handler.NewSearchHandler(a.Search),
		handler.NewCategoryHandler(a.Catalog, db),
		handler.NewSavedHandler(a.Saved, a.JWT),
		handler.NewAdminHandler(a.Admin),
	)
	return a, nil
}

// RouterOptions engine 参数
func (a *App) RouterOptions() router.Options {
	return router.Options{
		App:            a.Cfg.App,
		RateLimit:      a.Cfg.RateLimit,
		RequestTimeout: time.Duration(a.Cfg.App.HTTP.RequestTimeoutSec) * time.Second,
		MaxBodyBytes:   int64(a.Cfg.Storage.MaxUploadMB+1) << 20,
		Tracing:        a.Cfg.Telemetry.Enabled,
	}
}

// Close 释放缓存与存储客户端；连接池由调用方关闭
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

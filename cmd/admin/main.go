package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shelf-taught/internal/app"
	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/database"
	"shelf-taught/internal/core/logger"
	"shelf-taught/internal/core/server"
	"shelf-taught/internal/core/telemetry"
	"shelf-taught/internal/transport/http/response"
	"shelf-taught/internal/transport/http/router"
)

// 内网管理端：与 api 共用模块注册表，只暴露 /api/admin、健康检查与指标
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log)()
	log = log.Named("admin")
	response.ExposeStack(!cfg.App.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	shutdownTracing := telemetry.Init(ctx, log, cfg.App, cfg.Telemetry)

	db, err := app.OpenDB(cfg, log)
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	a, err := app.New(ctx, cfg, log, db)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	r := router.NewAdminEngine(log, a.JWT, a.Registry, a.RouterOptions())

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, log, 5*time.Second, 30*time.Second, 60*time.Second)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin", baseURL+"/api/admin"),
	)

	// 异步启动；失败立即标红退出
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	_ = shutdownTracing(sctx)
	log.Info("admin api stopped gracefully")
}

// shelfctl 运维命令行：迁移、初始数据、管理员账号、连通性检查与评分重算。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shelf-taught/internal/app"
	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/database"
	"shelf-taught/internal/core/logger"
)

var (
	configPath string

	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB

	cleanupLog func()
)

var rootCmd = &cobra.Command{
	Use:           "shelfctl",
	Short:         "Operator tooling for the Shelf Taught backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		path := configPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		log, cleanupLog = logger.New(cfg.Log)
		if db, err = app.OpenDB(cfg, log); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = database.Close(db)
		}
		if cleanupLog != nil {
			cleanupLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")
	rootCmd.AddCommand(migrateCmd, seedCmd, createAdminCmd, doctorCmd, recomputeCmd)
}

// withApp 装配服务后执行
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg, log, db)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

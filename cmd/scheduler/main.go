package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricescout/internal/api"
	"pricescout/internal/config"
	"pricescout/internal/pipeline"
	"pricescout/internal/pkg/dedup"
	"pricescout/internal/pkg/logger"
	"pricescout/internal/pkg/notify"
	"pricescout/internal/pkg/queue"
	"pricescout/internal/pkg/ratelimit"
	"pricescout/internal/provider"
	"pricescout/internal/scheduler"
	"pricescout/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// main 是调度器服务的入口函数。
//
// 它负责：
// 1. 加载并校验配置
// 2. 初始化日志、数据库、Redis、抓取管线
// 3. 确认服务商 zone 可用
// 4. 启动周期刷新循环与 HTTP 管理面
// 5. 优雅关闭
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st, err := store.New(db)
	if err != nil {
		appLogger.Error("init store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})

	client := provider.NewClient(&cfg.Provider, appLogger)

	// 启动前确认 unlocker zone 存在，不存在则创建
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.EnsureZone(bootCtx); err != nil {
		bootCancel()
		appLogger.Error("ensure provider zone failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	bootCancel()

	poller := provider.NewPoller(client, appLogger, cfg.Provider.PollInterval, cfg.Provider.PollAttempts)
	pipe := pipeline.New(client, poller, appLogger, cfg.App.MaxSearchResult)

	refreshQueue := queue.New(appLogger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)
	deduper := dedup.New(rdb, time.Duration(cfg.App.DedupWindow)*time.Second)
	limiter := ratelimit.New(rdb, appLogger, "", cfg.App.RateLimit, cfg.App.RateBurst)
	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)

	sched := scheduler.New(st, pipe, refreshQueue, deduper, limiter, notifier, appLogger,
		cfg.App.RefreshInterval, cfg.App.RefreshTimeout)

	schedCtx, stopSched := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx)
	}()

	server := api.NewServer(cfg, db, rdb, st, sched, appLogger)
	go func() {
		if err := server.Start(); err != nil {
			appLogger.Error("http server stopped with error", slog.String("error", err.Error()))
		}
	}()

	// 等待中断信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info("received os signal", slog.String("signal", sig.String()))

	appLogger.Info("shutting down scheduler service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown error", slog.String("error", err.Error()))
	}

	// 停止调度循环并等待在途刷新完成
	stopSched()
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		appLogger.Error("scheduler shutdown timeout")
	}

	if err := rdb.Close(); err != nil {
		appLogger.Error("redis close error", slog.String("error", err.Error()))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("scheduler service stopped gracefully")
}

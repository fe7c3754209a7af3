// KeBiao 排课引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kebiao/kebiao/internal/cache"
	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/internal/handler"
	"github.com/kebiao/kebiao/internal/metrics"
	"github.com/kebiao/kebiao/internal/middleware"
	"github.com/kebiao/kebiao/internal/repository"
	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.App.LogLevel
	if cfg.IsDevelopment() {
		logCfg.Format = "console"
	}
	logger.Init(logCfg)

	fmt.Printf("KeBiao 排课引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ========================================
	// 依赖
	// ========================================

	m := metrics.New()
	checks := map[string]handler.HealthChecker{"database": nil, "redis": nil}

	var runs repository.RunRepositoryInterface
	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		runs = repository.NewRunRepository(db)
		checks["database"] = db
	} else {
		logger.Warn().Msg("未配置数据库，运行记录不会持久化")
	}

	var store cache.Store
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接 Redis 失败")
		}
		redisStore := cache.NewRedisStore(client)
		store = redisStore
		checks["redis"] = redisStore
	}
	runCache := cache.NewRunCache(store, cfg.Redis.TTL)
	defer runCache.Close()

	eng := engine.New(engine.WithObserver(m))

	// ========================================
	// 路由
	// ========================================

	mux := http.NewServeMux()
	handler.NewSystemHandler(cfg.App.Name, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, checks).Register(mux)
	handler.NewTimetableHandler(eng, runs, runCache, m, cfg.Scheduler).Register(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 执行顺序：recovery -> requestID -> logging -> security -> cors -> rateLimit -> maxBody -> handler
	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, time.Minute)
	go limiter.Run(ctx)

	mws := []middleware.Middleware{
		middleware.RecoveryMiddleware,
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(m),
		middleware.SecurityHeadersMiddleware,
	}
	if cfg.API.CORS.Enabled {
		mws = append(mws, middleware.CORSMiddleware(cfg.API.CORS.Origins))
	}
	mws = append(mws,
		middleware.RateLimitMiddleware(limiter, "/health", cfg.Metrics.Path),
		middleware.MaxBodyMiddleware(cfg.API.MaxBodyBytes),
	)

	// 写超时需覆盖最长的排课运行
	writeTimeout := cfg.API.Timeout
	if cfg.Scheduler.MaxTimeout+10*time.Second > writeTimeout {
		writeTimeout = cfg.Scheduler.MaxTimeout + 10*time.Second
	}

	addr := ":" + strconv.Itoa(cfg.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Bool("database", runs != nil).
			Bool("cache", runCache.Enabled()).
			Str("algorithm", cfg.Scheduler.DefaultAlgorithm).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			stop()
		}
	}()

	// 优雅关闭
	<-ctx.Done()
	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}

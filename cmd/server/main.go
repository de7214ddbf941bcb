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

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/api/handler"
	"github.com/YASH5398/dlx-sub003/internal/api/router"
	"github.com/YASH5398/dlx-sub003/internal/api/validator"
	"github.com/YASH5398/dlx-sub003/internal/metrics"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/database"
	"github.com/YASH5398/dlx-sub003/pkg/jwt"
	applogger "github.com/YASH5398/dlx-sub003/pkg/logger"
	"github.com/YASH5398/dlx-sub003/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log, "referral-ledger")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已关闭")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("link_base_url", cfg.Referral.LinkBaseURL),
	)

	if err := validator.Register(); err != nil {
		return fmt.Errorf("注册参数校验规则失败: %w", err)
	}

	// ── PostgreSQL ──
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// ── Redis（可选：失败时降级运行）──
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，黑名单、点击去重与看板缓存将不可用", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ── 依赖注入: Repository → Service → Handler ──
	jwtMgr := jwt.NewManager(&cfg.Auth)
	ledgerMetrics := metrics.NewLedger(prometheus.DefaultRegisterer)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, ledgerMetrics, logger)
	engine := router.Setup(cfg, handler.NewHandler(svc), jwtMgr, rdb, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("收到关闭信号，开始优雅关闭...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器关闭异常: %w", err)
		}
		return nil
	})

	return g.Wait()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/metrics"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/database"
	applogger "github.com/YASH5398/dlx-sub003/pkg/logger"
)

// 命令执行超时
const commandTimeout = 30 * time.Second

var (
	configPath string
	decision   string
	reviewerID string
	commission string
	downSteps  int

	rootCmd = &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the DigiLinex referral ledger from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the referral ledger schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE:  runMigrateUp,
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE:  runMigrateDown,
	}
	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE:  runMigrateStatus,
	}

	affiliateCmd = &cobra.Command{
		Use:   "affiliate",
		Short: "Manage affiliate applications",
	}
	affiliateReviewCmd = &cobra.Command{
		Use:   "review <owner-id>",
		Short: "Approve or reject a pending affiliate application",
		Args:  cobra.ExactArgs(1),
		RunE:  runAffiliateReview,
	}

	referralCmd = &cobra.Command{
		Use:   "referral",
		Short: "Manage referral events",
	}
	referralActivateCmd = &cobra.Command{
		Use:   "activate <event-id>",
		Short: "Mark a referral as active and record its commission",
		Args:  cobra.ExactArgs(1),
		RunE:  runReferralActivate,
	}

	tierCmd = &cobra.Command{
		Use:   "tier <volume>",
		Short: "Show the commission tier for an active referral count",
		Args:  cobra.ExactArgs(1),
		RunE:  runTier,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	affiliateReviewCmd.Flags().StringVar(&decision, "decision", "", "approved or rejected")
	affiliateReviewCmd.Flags().StringVar(&reviewerID, "reviewer", "ledgerctl", "reviewer id recorded on the application")
	_ = affiliateReviewCmd.MarkFlagRequired("decision")

	referralActivateCmd.Flags().StringVar(&commission, "commission", "", "commission amount, e.g. 19.99")
	_ = referralActivateCmd.MarkFlagRequired("commission")

	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of versions to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	affiliateCmd.AddCommand(affiliateReviewCmd)
	referralCmd.AddCommand(referralActivateCmd)
	rootCmd.AddCommand(migrateCmd, affiliateCmd, referralCmd, tierCmd)
}

// runtime 命令执行所需的依赖
type runtime struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log, "ledgerctl")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &runtime{cfg: cfg, db: db, logger: logger}, nil
}

func (rt *runtime) close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = rt.logger.Sync()
}

// referralService 命令行下不接 Redis，点击去重与看板缓存均关闭
func (rt *runtime) referralService() service.ReferralService {
	m := metrics.NewLedger(prometheus.NewRegistry())
	return service.NewReferralService(rt.cfg, repository.NewRepository(rt.db), nil, m, rt.logger)
}

// withMigrator 建立连接后执行迁移操作
func withMigrator(fn func(g *database.Migrator) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sqlDB, err := rt.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	g, err := database.NewMigrator(sqlDB, rt.logger)
	if err != nil {
		return err
	}
	return fn(g)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(g *database.Migrator) error {
		if err := g.Up(); err != nil {
			return err
		}
		return printStatus(cmd, g)
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(g *database.Migrator) error {
		if err := g.Down(downSteps); err != nil {
			return err
		}
		return printStatus(cmd, g)
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(g *database.Migrator) error {
		return printStatus(cmd, g)
	})
}

func printStatus(cmd *cobra.Command, g *database.Migrator) error {
	st, err := g.Status()
	if err != nil {
		return err
	}
	return printJSON(cmd, st)
}

func runAffiliateReview(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	result, err := rt.referralService().Review(ctx, args[0], decision, reviewerID)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runReferralActivate(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(commission)
	if err != nil {
		return fmt.Errorf("invalid --commission %q: %w", commission, err)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	result, err := rt.referralService().ActivateReferral(ctx, args[0], amount)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

// runTier 纯计算，不连接数据库
func runTier(cmd *cobra.Command, args []string) error {
	volume, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("volume must be an integer: %w", err)
	}
	return printJSON(cmd, service.ComputeTier(volume))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

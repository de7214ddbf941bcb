package service

import (
	"go.uber.org/zap"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/metrics"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	"github.com/YASH5398/dlx-sub003/pkg/jwt"
	"github.com/YASH5398/dlx-sub003/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth     AuthService
	Referral ReferralService
	Export   ExportService
}

// NewService 创建 Service 聚合
// rdb 为 nil 时以降级模式运行：无 Token 黑名单、无点击去重、无看板缓存
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	m *metrics.Ledger,
	logger *zap.Logger,
) *Service {
	// 避免把 nil 指针装进非 nil 接口
	var (
		cache     LedgerCache
		blacklist TokenBlacklist
	)
	if rdb != nil {
		cache = rdb
		blacklist = rdb
	}

	referral := NewReferralService(cfg, repo, cache, m, logger)
	return &Service{
		Auth:     NewAuthService(cfg, repo, jwtMgr, blacklist, referral, logger),
		Referral: referral,
		Export:   NewExportService(referral, logger),
	}
}

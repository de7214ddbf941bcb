package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/metrics"
	"github.com/YASH5398/dlx-sub003/internal/model"
	"github.com/YASH5398/dlx-sub003/internal/repository"
	pkgerrors "github.com/YASH5398/dlx-sub003/pkg/errors"
)

// ── 推广模块业务错误 ──

var (
	ErrInvalidFormat         = errors.New("格式不合法")
	ErrSlugTaken             = errors.New("推广短名已被占用")
	ErrNotAuthenticated      = errors.New("未认证")
	ErrStoreUnavailable      = errors.New("存储不可用")
	ErrAffiliateNotFound     = errors.New("尚未申请推广计划")
	ErrAffiliateNotApproved  = errors.New("推广申请尚未通过审核")
	ErrInvalidTransition     = errors.New("审核状态不允许此操作")
	ErrReferralEventNotFound = errors.New("推荐记录不存在")

	ErrSlugEmpty          = fmt.Errorf("%w: 推广短名不能为空", ErrInvalidFormat)
	ErrSlugTooShort       = fmt.Errorf("%w: 推广短名过短", ErrInvalidFormat)
	ErrSlugTooLong        = fmt.Errorf("%w: 推广短名过长", ErrInvalidFormat)
	ErrSlugInvalidChars   = fmt.Errorf("%w: 推广短名含非法字符", ErrInvalidFormat)
	ErrInvalidCommission  = fmt.Errorf("%w: 佣金金额不合法", ErrInvalidFormat)
	ErrInvalidInviteCount = fmt.Errorf("%w: 邀请数量须在 1-100 之间", ErrInvalidFormat)
	ErrInvalidDecision    = fmt.Errorf("%w: 审核结果只能为 approved 或 rejected", ErrInvalidFormat)
)

const maxInvitesPerCall = 100

// storeErr 包装存储层错误，保留原始错误链
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// LedgerCache 推广账本使用的易失状态，由 Redis 实现
type LedgerCache interface {
	MarkClickOnce(ctx context.Context, referrerID, visitorKey string, window time.Duration) (bool, error)
	GetSummary(ctx context.Context, referrerID string) ([]byte, error)
	SetSummary(ctx context.Context, referrerID string, payload []byte, ttl time.Duration) error
	InvalidateSummary(ctx context.Context, referrerID string) error
}

// ReferralService 推广账本业务接口
type ReferralService interface {
	// ── 纯函数 ──
	ResolveReferralLink(customSlug, fallbackCode string) string
	ValidateSlug(candidate string) error
	ComputeTier(volume int) dto.CommissionTier

	// ── 推广员 ──
	Apply(ctx context.Context, userID string) (*dto.AffiliateResponse, error)
	GetAffiliate(ctx context.Context, userID string) (*dto.AffiliateResponse, error)
	ClaimSlug(ctx context.Context, userID, candidate string) (*dto.AffiliateResponse, error)
	RecordInvites(ctx context.Context, userID string, n int) (*dto.AffiliateResponse, error)
	GetHistory(ctx context.Context, referrerID string) ([]dto.ReferralEventResponse, error)
	GetDashboardSummary(ctx context.Context, referrerID string) (*dto.DashboardSummary, error)

	// ── 归属与访问 ──
	AttributeSignup(ctx context.Context, code, newUserID, email, displayName string) (*dto.AttributionResult, error)
	RecordClick(ctx context.Context, ref, visitorKey string) (*dto.RecordClickResponse, error)

	// ── 管理员 ──
	Review(ctx context.Context, ownerID, decision, reviewerID string) (*dto.AffiliateResponse, error)
	ListAffiliates(ctx context.Context, req *dto.AffiliateListRequest) ([]dto.AffiliateResponse, int64, error)
	ActivateReferral(ctx context.Context, eventID string, commission decimal.Decimal) (*dto.ReferralEventResponse, error)
}

type referralService struct {
	cfg     *config.Config
	repo    *repository.Repository
	cache   LedgerCache
	metrics *metrics.Ledger
	logger  *zap.Logger
	nowFn   func() time.Time
}

// NewReferralService 创建 ReferralService 实例
// cache 可为 nil，此时不做点击去重与看板缓存
func NewReferralService(
	cfg *config.Config,
	repo *repository.Repository,
	cache LedgerCache,
	m *metrics.Ledger,
	logger *zap.Logger,
) ReferralService {
	if m == nil {
		m = metrics.NewLedger(prometheus.NewRegistry())
	}
	return &referralService{
		cfg:     cfg,
		repo:    repo,
		cache:   cache,
		metrics: m,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// 纯函数
// ═══════════════════════════════════════════════════════════

func (s *referralService) ResolveReferralLink(customSlug, fallbackCode string) string {
	return BuildReferralLink(s.cfg.Referral.LinkBaseURL, s.cfg.Referral.SignupPath, customSlug, fallbackCode)
}

func (s *referralService) ValidateSlug(candidate string) error {
	return ValidateSlug(candidate)
}

func (s *referralService) ComputeTier(volume int) dto.CommissionTier {
	return ComputeTier(volume)
}

// ═══════════════════════════════════════════════════════════
// 推广员申请与查询
// ═══════════════════════════════════════════════════════════

func (s *referralService) Apply(ctx context.Context, userID string) (*dto.AffiliateResponse, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 已有申请时直接返回，包括被拒绝的申请
	existing, err := s.repo.Affiliate.GetByOwner(ctx, userID)
	if err == nil {
		return s.toAffiliateResponse(existing, user.ReferralCode), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询推广员失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeErr("apply", err)
	}

	now := s.nowFn()
	affiliate := &model.Affiliate{
		OwnerID:        userID,
		ApprovalStatus: model.ApprovalPending,
		Timestamps:     model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.repo.Affiliate.Create(ctx, affiliate); err != nil {
		if pkgerrors.IsDuplicate(err) {
			// 并发重复申请，读取已落库的记录
			existing, getErr := s.repo.Affiliate.GetByOwner(ctx, userID)
			if getErr != nil {
				return nil, storeErr("apply", getErr)
			}
			return s.toAffiliateResponse(existing, user.ReferralCode), nil
		}
		s.logger.Error("创建推广员申请失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeErr("apply", err)
	}

	s.logger.Info("收到推广申请", zap.String("user_id", userID))
	return s.toAffiliateResponse(affiliate, user.ReferralCode), nil
}

func (s *referralService) GetAffiliate(ctx context.Context, userID string) (*dto.AffiliateResponse, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	affiliate, err := s.getAffiliate(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toAffiliateResponse(affiliate, user.ReferralCode), nil
}

// ═══════════════════════════════════════════════════════════
// ClaimSlug 设置推广短名
// ═══════════════════════════════════════════════════════════
//
// slug_claims 以 slug 为主键：
//   - 与他人推荐码同名（不区分大小写）视为已占用
//   - 行锁查询当前占用者，他人占用则 ErrSlugTaken
//   - 本人已占用视为幂等成功
//   - 否则释放本人旧短名并插入新占用，主键冲突同样视为 ErrSlugTaken

func (s *referralService) ClaimSlug(ctx context.Context, userID, candidate string) (*dto.AffiliateResponse, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	slug := strings.TrimSpace(candidate)
	if err := ValidateSlug(slug); err != nil {
		s.metrics.SlugClaims.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	affiliate, err := s.requireApproved(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 推荐码优先于短名解析，与他人推荐码同名的短名会把归属导向对方
		if holder, err := tx.User.FindByReferralCode(ctx, slug); err == nil {
			if holder.UserID != userID {
				return ErrSlugTaken
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		claim, err := tx.SlugClaim.GetBySlugForUpdate(ctx, slug)
		switch {
		case err == nil:
			if claim.OwnerID != userID {
				return ErrSlugTaken
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.SlugClaim.ReleaseOwner(ctx, userID, slug); err != nil {
				return err
			}
			if err := tx.SlugClaim.Create(ctx, &model.SlugClaim{Slug: slug, OwnerID: userID, ClaimedAt: now}); err != nil {
				if pkgerrors.IsDuplicate(err) {
					return ErrSlugTaken
				}
				return err
			}
		default:
			return err
		}
		return tx.Affiliate.MergeSlug(ctx, userID, slug, now)
	})
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			s.metrics.SlugClaims.WithLabelValues(metrics.ResultTaken).Inc()
			return nil, ErrSlugTaken
		}
		s.metrics.SlugClaims.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("设置推广短名失败", zap.String("user_id", userID), zap.String("slug", slug), zap.Error(err))
		return nil, storeErr("claim slug", err)
	}

	s.metrics.SlugClaims.WithLabelValues(metrics.ResultOK).Inc()
	s.invalidateSummary(ctx, userID)

	affiliate.Slug = &slug
	affiliate.UpdatedAt = now
	return s.toAffiliateResponse(affiliate, user.ReferralCode), nil
}

func (s *referralService) RecordInvites(ctx context.Context, userID string, n int) (*dto.AffiliateResponse, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if n < 1 || n > maxInvitesPerCall {
		return nil, ErrInvalidInviteCount
	}

	affiliate, err := s.requireApproved(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Affiliate.Increment(ctx, userID, repository.CounterInvitesSent, int64(n)); err != nil {
		s.logger.Error("记录邀请数失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeErr("record invites", err)
	}
	s.invalidateSummary(ctx, userID)

	affiliate.InvitesSent += int64(n)
	return s.toAffiliateResponse(affiliate, user.ReferralCode), nil
}

// ═══════════════════════════════════════════════════════════
// 推荐记录与看板
// ═══════════════════════════════════════════════════════════

func (s *referralService) GetHistory(ctx context.Context, referrerID string) ([]dto.ReferralEventResponse, error) {
	if referrerID == "" {
		return nil, ErrNotAuthenticated
	}
	if _, err := s.requireApproved(ctx, referrerID); err != nil {
		return nil, err
	}

	events, err := s.repo.ReferralEvent.ListByReferrer(ctx, referrerID)
	if err != nil {
		s.logger.Error("查询推荐记录失败", zap.String("referrer_id", referrerID), zap.Error(err))
		return nil, storeErr("get history", err)
	}
	return toReferralEventResponses(events), nil
}

// GetDashboardSummary 汇总看板数据
// approved 为终态，因此缓存命中即说明调用方已通过审核
func (s *referralService) GetDashboardSummary(ctx context.Context, referrerID string) (*dto.DashboardSummary, error) {
	if referrerID == "" {
		return nil, ErrNotAuthenticated
	}

	if cached := s.cachedSummary(ctx, referrerID); cached != nil {
		return cached, nil
	}

	var (
		affiliate *model.Affiliate
		user      *model.User
		events    []model.ReferralEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		affiliate, err = s.getAffiliate(gctx, referrerID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.getUser(gctx, referrerID)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.repo.ReferralEvent.ListByReferrer(gctx, referrerID)
		if err != nil {
			s.logger.Error("查询推荐记录失败", zap.String("referrer_id", referrerID), zap.Error(err))
			return storeErr("get summary", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !affiliate.IsApproved() {
		return nil, ErrAffiliateNotApproved
	}

	summary := &dto.DashboardSummary{
		Clicks:         affiliate.Clicks,
		InvitesSent:    affiliate.InvitesSent,
		JoinedCount:    len(events),
		TotalEarnings:  decimal.Zero,
		ReferralLink:   s.ResolveReferralLink(affiliate.SlugValue(), user.ReferralCode),
		ApprovalStatus: affiliate.ApprovalStatus,
	}
	for _, e := range events {
		if e.Status == model.ReferralStatusActive {
			summary.ActiveCount++
		}
		summary.TotalEarnings = summary.TotalEarnings.Add(e.CommissionAmount)
	}
	summary.Tier = ComputeTier(summary.ActiveCount)

	s.storeSummary(ctx, referrerID, summary)
	return summary, nil
}

// ═══════════════════════════════════════════════════════════
// AttributeSignup 注册归属
// ═══════════════════════════════════════════════════════════
//
// 以被推荐用户为幂等键：已有记录时直接返回，不再累加计数。
// 计数递增、推荐记录写入与 referrer_code 回填在同一事务中完成。

func (s *referralService) AttributeSignup(ctx context.Context, code, newUserID, email, displayName string) (*dto.AttributionResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &dto.AttributionResult{}, nil
	}
	if newUserID == "" {
		return nil, fmt.Errorf("%w: 新用户 ID 为空", ErrInvalidFormat)
	}

	referrerID, err := s.resolveReferrer(ctx, code)
	if err != nil {
		s.metrics.Attributions.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("解析推荐码失败", zap.String("code", code), zap.Error(err))
		return nil, storeErr("attribute signup", err)
	}
	if referrerID == "" || referrerID == newUserID {
		s.metrics.Attributions.WithLabelValues(metrics.ResultUnmatched).Inc()
		return &dto.AttributionResult{}, nil
	}

	existing, err := s.existingAttribution(ctx, newUserID)
	if err != nil {
		s.metrics.Attributions.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("查询推荐归属失败", zap.String("referred_user_id", newUserID), zap.Error(err))
		return nil, storeErr("attribute signup", err)
	}
	if existing != nil {
		s.metrics.Attributions.WithLabelValues(metrics.ResultDuplicate).Inc()
		return existing, nil
	}

	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	event := &model.ReferralEvent{
		EventID:          uuid.NewString(),
		ReferrerID:       referrerID,
		ReferredUserID:   newUserID,
		Username:         displayName,
		Email:            email,
		Status:           model.ReferralStatusJoined,
		CommissionAmount: decimal.Zero,
		JoinedAt:         s.nowFn(),
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.User.IncrementReferralCounters(ctx, referrerID, 1); err != nil {
			return err
		}
		if err := tx.ReferralEvent.Create(ctx, event); err != nil {
			return err
		}
		return tx.User.SetReferrerCode(ctx, newUserID, code)
	})
	if err != nil {
		if pkgerrors.IsDuplicate(err) {
			// 并发重试已写入归属
			if again, getErr := s.existingAttribution(ctx, newUserID); getErr == nil && again != nil {
				s.metrics.Attributions.WithLabelValues(metrics.ResultDuplicate).Inc()
				return again, nil
			}
		}
		s.metrics.Attributions.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("写入推荐归属失败",
			zap.String("referrer_id", referrerID),
			zap.String("referred_user_id", newUserID),
			zap.Error(err),
		)
		return nil, storeErr("attribute signup", err)
	}

	s.metrics.Attributions.WithLabelValues(metrics.ResultOK).Inc()
	s.invalidateSummary(ctx, referrerID)
	s.logger.Info("推荐归属成功",
		zap.String("referrer_id", referrerID),
		zap.String("referred_user_id", newUserID),
	)

	return &dto.AttributionResult{
		Attributed: true,
		ReferrerID: referrerID,
		EventID:    event.EventID,
	}, nil
}

// existingAttribution 返回已存在的归属，无记录时返回 (nil, nil)
func (s *referralService) existingAttribution(ctx context.Context, newUserID string) (*dto.AttributionResult, error) {
	event, err := s.repo.ReferralEvent.GetByReferredUser(ctx, newUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dto.AttributionResult{
		Attributed:        true,
		AlreadyAttributed: true,
		ReferrerID:        event.ReferrerID,
		EventID:           event.EventID,
	}, nil
}

// ═══════════════════════════════════════════════════════════
// RecordClick 推广链接访问计数
// ═══════════════════════════════════════════════════════════

func (s *referralService) RecordClick(ctx context.Context, ref, visitorKey string) (*dto.RecordClickResponse, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: ref 不能为空", ErrInvalidFormat)
	}

	referrerID, err := s.resolveReferrer(ctx, ref)
	if err != nil {
		s.logger.Error("解析推荐码失败", zap.String("ref", ref), zap.Error(err))
		return nil, storeErr("record click", err)
	}
	if referrerID == "" {
		s.metrics.Clicks.WithLabelValues(metrics.ResultUnmatched).Inc()
		return &dto.RecordClickResponse{Counted: false}, nil
	}

	if s.cache != nil && visitorKey != "" {
		first, err := s.cache.MarkClickOnce(ctx, referrerID, visitorKey, s.cfg.Referral.ClickDedupeWindow)
		if err != nil {
			// 去重失败时仍计数
			s.logger.Warn("点击去重失败", zap.String("referrer_id", referrerID), zap.Error(err))
		} else if !first {
			s.metrics.Clicks.WithLabelValues(metrics.ResultDeduped).Inc()
			return &dto.RecordClickResponse{Counted: false}, nil
		}
	}

	if err := s.repo.Affiliate.Increment(ctx, referrerID, repository.CounterClicks, 1); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 推荐人未加入推广计划，无点击计数
			s.metrics.Clicks.WithLabelValues(metrics.ResultUnmatched).Inc()
			return &dto.RecordClickResponse{Counted: false}, nil
		}
		s.logger.Error("记录点击失败", zap.String("referrer_id", referrerID), zap.Error(err))
		return nil, storeErr("record click", err)
	}

	s.metrics.Clicks.WithLabelValues(metrics.ResultOK).Inc()
	s.invalidateSummary(ctx, referrerID)
	return &dto.RecordClickResponse{Counted: true}, nil
}

// ═══════════════════════════════════════════════════════════
// 管理员操作
// ═══════════════════════════════════════════════════════════

func (s *referralService) Review(ctx context.Context, ownerID, decision, reviewerID string) (*dto.AffiliateResponse, error) {
	if reviewerID == "" {
		return nil, ErrNotAuthenticated
	}
	if decision != model.ApprovalApproved && decision != model.ApprovalRejected {
		return nil, ErrInvalidDecision
	}

	affiliate, err := s.getAffiliate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if affiliate.ApprovalStatus != model.ApprovalPending {
		return nil, ErrInvalidTransition
	}

	now := s.nowFn()
	if err := s.repo.Affiliate.TransitionStatus(ctx, ownerID, model.ApprovalPending, decision, reviewerID, now); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrInvalidTransition
		}
		s.logger.Error("审核推广申请失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, storeErr("review affiliate", err)
	}

	s.logger.Info("推广申请已审核",
		zap.String("owner_id", ownerID),
		zap.String("decision", decision),
		zap.String("reviewer_id", reviewerID),
	)
	s.invalidateSummary(ctx, ownerID)

	user, err := s.getUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	affiliate.ApprovalStatus = decision
	affiliate.ReviewedBy = &reviewerID
	affiliate.ReviewedAt = &now
	affiliate.UpdatedAt = now
	return s.toAffiliateResponse(affiliate, user.ReferralCode), nil
}

func (s *referralService) ListAffiliates(ctx context.Context, req *dto.AffiliateListRequest) ([]dto.AffiliateResponse, int64, error) {
	affiliates, total, err := s.repo.Affiliate.List(ctx, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询推广员列表失败", zap.Error(err))
		return nil, 0, storeErr("list affiliates", err)
	}

	ids := make([]string, 0, len(affiliates))
	for _, a := range affiliates {
		ids = append(ids, a.OwnerID)
	}
	users, err := s.repo.User.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("批量查询用户失败", zap.Error(err))
		return nil, 0, storeErr("list affiliates", err)
	}
	codes := make(map[string]string, len(users))
	for _, u := range users {
		codes[u.UserID] = u.ReferralCode
	}

	list := make([]dto.AffiliateResponse, 0, len(affiliates))
	for i := range affiliates {
		list = append(list, *s.toAffiliateResponse(&affiliates[i], codes[affiliates[i].OwnerID]))
	}
	return list, total, nil
}

// ActivateReferral joined → active 并写入佣金，佣金只增不减
func (s *referralService) ActivateReferral(ctx context.Context, eventID string, commission decimal.Decimal) (*dto.ReferralEventResponse, error) {
	if commission.IsNegative() {
		return nil, ErrInvalidCommission
	}

	event, err := s.repo.ReferralEvent.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralEventNotFound
		}
		s.logger.Error("查询推荐记录失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, storeErr("activate referral", err)
	}
	if commission.LessThan(event.CommissionAmount) {
		return nil, ErrInvalidCommission
	}

	now := s.nowFn()
	if err := s.repo.ReferralEvent.Activate(ctx, eventID, commission, now); err != nil {
		// 并发激活已写入更高佣金
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrInvalidCommission
		}
		s.logger.Error("激活推荐记录失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, storeErr("activate referral", err)
	}
	s.invalidateSummary(ctx, event.ReferrerID)

	event.Status = model.ReferralStatusActive
	event.CommissionAmount = commission
	if event.ActivatedAt == nil {
		event.ActivatedAt = &now
	}
	resp := toReferralEventResponse(event)
	return &resp, nil
}

// ═══════════════════════════════════════════════════════════
// 内部辅助
// ═══════════════════════════════════════════════════════════

// resolveReferrer 先按推荐码、再按推广短名解析推荐人，无匹配时返回空串
func (s *referralService) resolveReferrer(ctx context.Context, ref string) (string, error) {
	user, err := s.repo.User.FindByReferralCode(ctx, ref)
	if err == nil {
		return user.UserID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	affiliate, err := s.repo.Affiliate.FindBySlug(ctx, strings.ToLower(ref))
	if err == nil {
		return affiliate.OwnerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	return "", nil
}

func (s *referralService) getUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeErr("get user", err)
	}
	return user, nil
}

func (s *referralService) getAffiliate(ctx context.Context, ownerID string) (*model.Affiliate, error) {
	affiliate, err := s.repo.Affiliate.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		s.logger.Error("查询推广员失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, storeErr("get affiliate", err)
	}
	return affiliate, nil
}

// requireApproved 看板类操作仅对已通过审核的推广员开放
func (s *referralService) requireApproved(ctx context.Context, userID string) (*model.Affiliate, error) {
	affiliate, err := s.getAffiliate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsApproved() {
		return nil, ErrAffiliateNotApproved
	}
	return affiliate, nil
}

func (s *referralService) cachedSummary(ctx context.Context, referrerID string) *dto.DashboardSummary {
	if s.cache == nil {
		return nil
	}
	payload, err := s.cache.GetSummary(ctx, referrerID)
	if err != nil || len(payload) == 0 {
		return nil
	}
	var summary dto.DashboardSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		s.logger.Warn("看板缓存解析失败", zap.String("referrer_id", referrerID), zap.Error(err))
		return nil
	}
	return &summary
}

func (s *referralService) storeSummary(ctx context.Context, referrerID string, summary *dto.DashboardSummary) {
	if s.cache == nil || s.cfg.Referral.SummaryCacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.SetSummary(ctx, referrerID, payload, s.cfg.Referral.SummaryCacheTTL); err != nil {
		s.logger.Warn("写入看板缓存失败", zap.String("referrer_id", referrerID), zap.Error(err))
	}
}

func (s *referralService) invalidateSummary(ctx context.Context, referrerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(ctx, referrerID); err != nil {
		s.logger.Warn("清除看板缓存失败", zap.String("referrer_id", referrerID), zap.Error(err))
	}
}

func (s *referralService) toAffiliateResponse(a *model.Affiliate, referralCode string) *dto.AffiliateResponse {
	resp := &dto.AffiliateResponse{
		OwnerID:        a.OwnerID,
		Slug:           a.SlugValue(),
		ReferralCode:   referralCode,
		ReferralLink:   s.ResolveReferralLink(a.SlugValue(), referralCode),
		ApprovalStatus: a.ApprovalStatus,
		Clicks:         a.Clicks,
		InvitesSent:    a.InvitesSent,
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
	if a.ReviewedAt != nil {
		resp.ReviewedAt = a.ReviewedAt.Format(time.RFC3339)
	}
	return resp
}

func toReferralEventResponse(e *model.ReferralEvent) dto.ReferralEventResponse {
	return dto.ReferralEventResponse{
		ID:               e.EventID,
		ReferredUserID:   e.ReferredUserID,
		Username:         e.Username,
		Email:            e.Email,
		Status:           e.Status,
		CommissionAmount: e.CommissionAmount,
		JoinedAt:         e.JoinedAt.Format(time.RFC3339),
	}
}

func toReferralEventResponses(events []model.ReferralEvent) []dto.ReferralEventResponse {
	list := make([]dto.ReferralEventResponse, 0, len(events))
	for i := range events {
		list = append(list, toReferralEventResponse(&events[i]))
	}
	return list
}

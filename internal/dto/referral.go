package dto

import "github.com/shopspring/decimal"

// ── 推广模块请求 ──

// ClaimSlugRequest 设置推广短名
type ClaimSlugRequest struct {
	Slug string `json:"slug" binding:"max=64"`
}

// RecordClickRequest 记录推广链接访问
type RecordClickRequest struct {
	Ref       string `json:"ref"        binding:"required,referral_ref"`
	VisitorID string `json:"visitor_id" binding:"omitempty,max=128"`
}

// RecordInvitesRequest 记录已发送邀请数
type RecordInvitesRequest struct {
	Count int `json:"count" binding:"required,min=1,max=100"`
}

// ReviewAffiliateRequest 审核推广申请
type ReviewAffiliateRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

// ActivateReferralRequest 推荐记录转为 active 并结算佣金
type ActivateReferralRequest struct {
	CommissionAmount decimal.Decimal `json:"commission_amount"`
}

// AffiliateListRequest 推广员列表查询参数
type AffiliateListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// ── 推广模块响应 ──

// CommissionTier 佣金等级，由推荐量推导，不落库
type CommissionTier struct {
	Level       int     `json:"level"`
	TierName    string  `json:"tier_name"`
	RatePercent float64 `json:"rate_percent"`
}

// SlugValidationResponse 短名校验结果
type SlugValidationResponse struct {
	Slug   string `json:"slug"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ReferralLinkResponse 推广链接
type ReferralLinkResponse struct {
	Link string `json:"link"`
}

// AffiliateResponse 推广员信息
type AffiliateResponse struct {
	OwnerID        string `json:"owner_id"`
	Slug           string `json:"slug,omitempty"`
	ReferralCode   string `json:"referral_code"`
	ReferralLink   string `json:"referral_link"`
	ApprovalStatus string `json:"approval_status"`
	Clicks         int64  `json:"clicks"`
	InvitesSent    int64  `json:"invites_sent"`
	ReviewedAt     string `json:"reviewed_at,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

// ReferralEventResponse 推荐记录
type ReferralEventResponse struct {
	ID               string          `json:"id"`
	ReferredUserID   string          `json:"referred_user_id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	Status           string          `json:"status"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	JoinedAt         string          `json:"joined_at"`
}

// DashboardSummary 推广看板汇总
type DashboardSummary struct {
	Clicks         int64           `json:"clicks"`
	InvitesSent    int64           `json:"invites_sent"`
	JoinedCount    int             `json:"joined_count"`
	ActiveCount    int             `json:"active_count"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	Tier           CommissionTier  `json:"tier"`
	ReferralLink   string          `json:"referral_link"`
	ApprovalStatus string          `json:"approval_status"`
}

// AttributionResult 注册归属结果
type AttributionResult struct {
	Attributed        bool   `json:"attributed"`
	AlreadyAttributed bool   `json:"already_attributed,omitempty"`
	ReferrerID        string `json:"referrer_id,omitempty"`
	EventID           string `json:"event_id,omitempty"`
}

// RecordClickResponse 点击记录结果
type RecordClickResponse struct {
	Counted bool `json:"counted"`
}

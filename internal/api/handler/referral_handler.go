package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YASH5398/dlx-sub003/internal/api/middleware"
	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// ReferralHandler 推广链接公开接口 HTTP 处理器
type ReferralHandler struct {
	referralSvc service.ReferralService
}

// NewReferralHandler 创建 ReferralHandler
func NewReferralHandler(referralSvc service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc}
}

// ResolveLink 预览推广链接
// GET /api/v1/referrals/link?slug=xxx&code=xxx
func (h *ReferralHandler) ResolveLink(c *gin.Context) {
	link := h.referralSvc.ResolveReferralLink(c.Query("slug"), c.Query("code"))
	response.OK(c, dto.ReferralLinkResponse{Link: link})
}

// ValidateSlug 校验推广短名格式
// GET /api/v1/referrals/slug/validate?slug=xxx
func (h *ReferralHandler) ValidateSlug(c *gin.Context) {
	slug := c.Query("slug")
	err := h.referralSvc.ValidateSlug(slug)
	response.OK(c, dto.SlugValidationResponse{
		Slug:   slug,
		Valid:  err == nil,
		Reason: service.SlugErrorReason(err),
	})
}

// GetTier 查询推荐量对应的佣金等级
// GET /api/v1/referrals/tier?volume=12
func (h *ReferralHandler) GetTier(c *gin.Context) {
	volume, err := strconv.Atoi(c.DefaultQuery("volume", "0"))
	if err != nil || volume < 0 {
		response.BadRequest(c, 10001, "volume must be a non-negative integer")
		return
	}
	response.OK(c, h.referralSvc.ComputeTier(volume))
}

// RecordClick 记录推广链接访问
// POST /api/v1/referrals/clicks
func (h *ReferralHandler) RecordClick(c *gin.Context) {
	var req dto.RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	visitor := middleware.VisitorKey(c, req.VisitorID)
	result, err := h.referralSvc.RecordClick(c.Request.Context(), req.Ref, visitor)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

// handleReferralError 推广模块统一错误映射
func handleReferralError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		response.Unauthorized(c, 10002, "not authenticated")
	case errors.Is(err, service.ErrSlugTaken):
		response.Conflict(c, 12002, "this slug is already taken, please choose another")
	case errors.Is(err, service.ErrInvalidInviteCount):
		response.BadRequest(c, 12008, "invite count must be between 1 and 100")
	case errors.Is(err, service.ErrInvalidCommission):
		response.BadRequest(c, 12007, "commission must be non-negative and cannot decrease")
	case errors.Is(err, service.ErrInvalidDecision):
		response.BadRequest(c, 10001, "decision must be approved or rejected")
	case errors.Is(err, service.ErrInvalidFormat):
		response.BadRequest(c, 12001, service.SlugErrorReason(err))
	case errors.Is(err, service.ErrAffiliateNotFound):
		response.NotFound(c, 12003, "you have not applied to the affiliate program yet")
	case errors.Is(err, service.ErrAffiliateNotApproved):
		response.Forbidden(c, 12004, "your affiliate application has not been approved yet")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Conflict(c, 12005, "the application has already been reviewed")
	case errors.Is(err, service.ErrReferralEventNotFound):
		response.NotFound(c, 12006, "referral event not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11004, "user not found")
	case errors.Is(err, service.ErrStoreUnavailable):
		response.ServiceUnavailable(c)
	default:
		response.InternalError(c)
	}
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// AffiliateHandler 推广员自助接口 HTTP 处理器
type AffiliateHandler struct {
	referralSvc service.ReferralService
}

// NewAffiliateHandler 创建 AffiliateHandler
func NewAffiliateHandler(referralSvc service.ReferralService) *AffiliateHandler {
	return &AffiliateHandler{referralSvc: referralSvc}
}

// Apply 申请加入推广计划
// POST /api/v1/affiliates/apply
func (h *AffiliateHandler) Apply(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.referralSvc.Apply(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.Created(c, result)
}

// GetMe 获取本人推广员状态
// GET /api/v1/affiliates/me
func (h *AffiliateHandler) GetMe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.referralSvc.GetAffiliate(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

// ClaimSlug 设置推广短名
// PUT /api/v1/affiliates/me/slug
func (h *AffiliateHandler) ClaimSlug(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ClaimSlugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	result, err := h.referralSvc.ClaimSlug(c.Request.Context(), userID, req.Slug)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

// RecordInvites 记录已发送邀请数
// POST /api/v1/affiliates/me/invites
func (h *AffiliateHandler) RecordInvites(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RecordInvitesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12008, "invite count must be between 1 and 100")
		return
	}

	result, err := h.referralSvc.RecordInvites(c.Request.Context(), userID, req.Count)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

// GetHistory 获取推荐记录
// GET /api/v1/affiliates/me/history
func (h *AffiliateHandler) GetHistory(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.referralSvc.GetHistory(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetSummary 获取推广看板汇总
// GET /api/v1/affiliates/me/summary
func (h *AffiliateHandler) GetSummary(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	summary, err := h.referralSvc.GetDashboardSummary(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, summary)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/YASH5398/dlx-sub003/internal/dto"
	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// AdminHandler 推广计划管理接口 HTTP 处理器
type AdminHandler struct {
	referralSvc service.ReferralService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(referralSvc service.ReferralService) *AdminHandler {
	return &AdminHandler{referralSvc: referralSvc}
}

// ListAffiliates 推广员列表
// GET /api/v1/admin/affiliates?status=pending&page=1&page_size=20
func (h *AdminHandler) ListAffiliates(c *gin.Context) {
	var req dto.AffiliateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	list, total, err := h.referralSvc.ListAffiliates(c.Request.Context(), &req)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Review 审核推广申请
// PUT /api/v1/admin/affiliates/:id/review
func (h *AdminHandler) Review(c *gin.Context) {
	reviewerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ReviewAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "decision must be approved or rejected")
		return
	}

	result, err := h.referralSvc.Review(c.Request.Context(), c.Param("id"), req.Decision, reviewerID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

// ActivateReferral 推荐记录转为 active 并写入佣金
// PUT /api/v1/admin/referral-events/:id/activate
func (h *AdminHandler) ActivateReferral(c *gin.Context) {
	var req dto.ActivateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "commission_amount must be a decimal number")
		return
	}

	result, err := h.referralSvc.ActivateReferral(c.Request.Context(), c.Param("id"), req.CommissionAmount)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, result)
}

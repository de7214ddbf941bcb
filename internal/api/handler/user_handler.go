package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/YASH5398/dlx-sub003/internal/service"
	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// UserHandler 用户模块 HTTP 处理器
type UserHandler struct {
	authSvc service.AuthService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(authSvc service.AuthService) *UserHandler {
	return &UserHandler{authSvc: authSvc}
}

// GetMe 获取当前用户信息，含推荐码与推广链接
// GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	response.OK(c, user)
}

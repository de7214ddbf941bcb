package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YASH5398/dlx-sub003/internal/api/middleware"
	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// MustGetUserID 从 JWT 中间件注入的上下文中提取 user_id
// 缺失时写入 401，调用方应在 ok=false 时直接 return
func MustGetUserID(c *gin.Context) (string, bool) {
	if s := c.GetString(middleware.CtxUserID); s != "" {
		return s, true
	}
	response.Unauthorized(c, response.CodeUnauthenticated, "not authenticated")
	return "", false
}

// currentToken 返回当前 Access Token 的 jti 与过期时间，供登出加入黑名单
func currentToken(c *gin.Context) (jti string, expiresAt time.Time) {
	jti = c.GetString(middleware.CtxTokenJTI)
	if v, ok := c.Get(middleware.CtxTokenExp); ok {
		expiresAt, _ = v.(time.Time)
	}
	return jti, expiresAt
}

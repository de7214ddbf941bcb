package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

// VisitorIDHeader 前端持久化的匿名访客标识
const VisitorIDHeader = "X-Visitor-ID"

// VisitorKey 解析点击去重用的访客键
// 优先级：请求体显式传入 > X-Visitor-ID > 客户端 IP
// 以 IP 兜底时只保留摘要，避免原始 IP 落入缓存键
func VisitorKey(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := c.GetHeader(VisitorIDHeader); v != "" {
		return v
	}
	sum := sha256.Sum256([]byte(c.ClientIP()))
	return "ip:" + hex.EncodeToString(sum[:8])
}

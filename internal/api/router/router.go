package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/YASH5398/dlx-sub003/config"
	"github.com/YASH5398/dlx-sub003/internal/api/handler"
	"github.com/YASH5398/dlx-sub003/internal/api/middleware"
	"github.com/YASH5398/dlx-sub003/internal/model"
	"github.com/YASH5398/dlx-sub003/pkg/jwt"
	"github.com/YASH5398/dlx-sub003/pkg/redis"
)

// 请求体上限 1MB
const maxBodyBytes int64 = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单检查关闭，限流退化为进程内令牌桶
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicLimit := middleware.RateLimit(limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", publicLimit, h.Auth.Register)
			auth.POST("/login", publicLimit, h.Auth.Login)
		}

		// 推广链接公开接口
		referrals := v1.Group("/referrals")
		{
			referrals.GET("/link", h.Referral.ResolveLink)
			referrals.GET("/slug/validate", h.Referral.ValidateSlug)
			referrals.GET("/tier", h.Referral.GetTier)
			referrals.POST("/clicks", publicLimit, h.Referral.RecordClick)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/users/me", h.User.GetMe)

			// 推广员模块
			affiliates := authorized.Group("/affiliates")
			{
				affiliates.POST("/apply", h.Affiliate.Apply)
				affiliates.GET("/me", h.Affiliate.GetMe)
				affiliates.PUT("/me/slug", h.Affiliate.ClaimSlug)
				affiliates.POST("/me/invites", h.Affiliate.RecordInvites)
				affiliates.GET("/me/history", h.Affiliate.GetHistory)
				affiliates.GET("/me/history/export", h.Export.ExportHistory)
				affiliates.GET("/me/summary", h.Affiliate.GetSummary)
			}

			// 管理员模块
			admin := authorized.Group("/admin")
			admin.Use(middleware.RoleAuth(model.RoleAdmin))
			{
				admin.GET("/affiliates", h.Admin.ListAffiliates)
				admin.PUT("/affiliates/:id/review", h.Admin.Review)
				admin.PUT("/referral-events/:id/activate", h.Admin.ActivateReferral)
			}
		}
	}

	return r
}

package handler

import "github.com/YASH5398/dlx-sub003/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	Referral  *ReferralHandler
	Affiliate *AffiliateHandler
	Admin     *AdminHandler
	Export    *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		User:      NewUserHandler(svc.Auth),
		Referral:  NewReferralHandler(svc.Referral),
		Affiliate: NewAffiliateHandler(svc.Referral),
		Admin:     NewAdminHandler(svc.Referral),
		Export:    NewExportHandler(svc.Export),
	}
}

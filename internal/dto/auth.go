package dto

// ── 认证模块 DTO ──

// RegisterRequest 注册请求，referral_code 可为推荐码或推广短名
type RegisterRequest struct {
	Email        string `json:"email"         binding:"required,email,max=255"`
	DisplayName  string `json:"display_name"  binding:"required,min=2,max=100"`
	Password     string `json:"password"      binding:"required,min=8,max=72"`
	ReferralCode string `json:"referral_code" binding:"omitempty,referral_ref"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

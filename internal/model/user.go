package model

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 用户表，对应 users
type User struct {
	UserID          string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Email           string  `gorm:"type:varchar(255);not null"                     json:"email"`
	DisplayName     string  `gorm:"type:varchar(100);not null"                     json:"display_name"`
	PasswordHash    string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role            string  `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	ReferralCode    string  `gorm:"type:varchar(32);not null"                      json:"referral_code"`
	ReferrerCode    *string `gorm:"type:varchar(32)"                               json:"referrer_code,omitempty"`
	ReferralCount   int     `gorm:"not null;default:0"                             json:"referral_count"`
	ActiveReferrals int     `gorm:"not null;default:0"                             json:"active_referrals"`
	Timestamps
}

// TableName 指定表名
func (User) TableName() string { return "users" }

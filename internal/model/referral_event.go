package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 推荐记录状态
const (
	ReferralStatusJoined = "joined"
	ReferralStatusActive = "active"
)

// ReferralEvent 推荐记录表，对应 referral_events
// 每个被推荐注册的用户至多一条，注册时确定归属且不再变更
type ReferralEvent struct {
	EventID          string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	ReferrerID       string          `gorm:"type:uuid;not null;index"                       json:"referrer_id"`
	ReferredUserID   string          `gorm:"type:uuid;not null"                             json:"referred_user_id"`
	Username         string          `gorm:"type:varchar(100);not null"                     json:"username"`
	Email            string          `gorm:"type:varchar(255);not null"                     json:"email"`
	Status           string          `gorm:"type:varchar(20);not null;default:'joined'"     json:"status"`
	CommissionAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"          json:"commission_amount"`
	JoinedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`
	ActivatedAt      *time.Time      `json:"activated_at,omitempty"`
}

// TableName 指定表名
func (ReferralEvent) TableName() string { return "referral_events" }

package model

import "time"

// SlugClaim 推广链接短名占用表，对应 slug_claims
// slug 本身为主键，INSERT 即原子抢占
type SlugClaim struct {
	Slug      string    `gorm:"type:varchar(32);primaryKey"          json:"slug"`
	OwnerID   string    `gorm:"type:uuid;not null"                   json:"owner_id"`
	ClaimedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"   json:"claimed_at"`
}

// TableName 指定表名
func (SlugClaim) TableName() string { return "slug_claims" }

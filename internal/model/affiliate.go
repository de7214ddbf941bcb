package model

import "time"

// 推广员审核状态
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Affiliate 推广员表，对应 affiliates，每个申请过推广计划的用户一条
type Affiliate struct {
	OwnerID        string     `gorm:"type:uuid;primaryKey"                          json:"owner_id"`
	Slug           *string    `gorm:"type:varchar(32)"                              json:"slug,omitempty"`
	Clicks         int64      `gorm:"not null;default:0"                            json:"clicks"`
	InvitesSent    int64      `gorm:"not null;default:0"                            json:"invites_sent"`
	ApprovalStatus string     `gorm:"type:varchar(20);not null;default:'pending'"   json:"approval_status"`
	ReviewedBy     *string    `gorm:"type:uuid"                                     json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	Timestamps
}

// TableName 指定表名
func (Affiliate) TableName() string { return "affiliates" }

// IsApproved 是否已通过审核
func (a *Affiliate) IsApproved() bool {
	return a.ApprovalStatus == ApprovalApproved
}

// SlugValue 返回 slug，未设置时为空串
func (a *Affiliate) SlugValue() string {
	if a.Slug == nil {
		return ""
	}
	return *a.Slug
}

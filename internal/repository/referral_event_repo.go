package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/internal/model"
	pkgerrors "github.com/YASH5398/dlx-sub003/pkg/errors"
)

// ReferralEventRepository 推荐记录数据访问接口
type ReferralEventRepository interface {
	Create(ctx context.Context, event *model.ReferralEvent) error
	GetByID(ctx context.Context, id string) (*model.ReferralEvent, error)
	GetByReferredUser(ctx context.Context, referredUserID string) (*model.ReferralEvent, error)
	// ListByReferrer 按 joined_at 倒序返回推荐人的全部记录
	ListByReferrer(ctx context.Context, referrerID string) ([]model.ReferralEvent, error)
	// Activate 置为 active 并写入佣金，仅当现有佣金不高于 commission 时更新
	// 记录存在但佣金更高时返回 ErrOptimisticLock
	Activate(ctx context.Context, eventID string, commission decimal.Decimal, at time.Time) error
}

type referralEventRepo struct {
	db *gorm.DB
}

// NewReferralEventRepo 创建 ReferralEventRepository 实例
func NewReferralEventRepo(db *gorm.DB) ReferralEventRepository {
	return &referralEventRepo{db: db}
}

func (r *referralEventRepo) Create(ctx context.Context, event *model.ReferralEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *referralEventRepo) GetByID(ctx context.Context, id string) (*model.ReferralEvent, error) {
	var event model.ReferralEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *referralEventRepo) GetByReferredUser(ctx context.Context, referredUserID string) (*model.ReferralEvent, error) {
	var event model.ReferralEvent
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ?", referredUserID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *referralEventRepo) ListByReferrer(ctx context.Context, referrerID string) ([]model.ReferralEvent, error) {
	events := make([]model.ReferralEvent, 0)
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("joined_at DESC").
		Order("event_id DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *referralEventRepo) Activate(ctx context.Context, eventID string, commission decimal.Decimal, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.ReferralEvent{}).
		Where("event_id = ? AND commission_amount <= ?", eventID, commission).
		Updates(map[string]interface{}{
			"status":            model.ReferralStatusActive,
			"commission_amount": commission,
			"activated_at":      gorm.Expr("COALESCE(activated_at, ?)", at),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&model.ReferralEvent{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

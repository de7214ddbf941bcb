package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/YASH5398/dlx-sub003/internal/model"
	pkgerrors "github.com/YASH5398/dlx-sub003/pkg/errors"
)

// AffiliateCounter 可递增的推广员计数字段
type AffiliateCounter string

const (
	CounterClicks      AffiliateCounter = "clicks"
	CounterInvitesSent AffiliateCounter = "invites_sent"
)

// AffiliateRepository 推广员数据访问接口
type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *model.Affiliate) error
	GetByOwner(ctx context.Context, ownerID string) (*model.Affiliate, error)
	FindBySlug(ctx context.Context, slug string) (*model.Affiliate, error)
	// MergeSlug 仅合并 slug 与 updated_at，不覆盖其他字段
	MergeSlug(ctx context.Context, ownerID, slug string, at time.Time) error
	Increment(ctx context.Context, ownerID string, counter AffiliateCounter, delta int64) error
	// TransitionStatus 条件更新审核状态，当前状态不为 from 时返回 ErrOptimisticLock
	TransitionStatus(ctx context.Context, ownerID, from, to, reviewerID string, at time.Time) error
	List(ctx context.Context, status string, offset, limit int) ([]model.Affiliate, int64, error)
}

type affiliateRepo struct {
	db *gorm.DB
}

// NewAffiliateRepo 创建 AffiliateRepository 实例
func NewAffiliateRepo(db *gorm.DB) AffiliateRepository {
	return &affiliateRepo{db: db}
}

func (r *affiliateRepo) Create(ctx context.Context, affiliate *model.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

func (r *affiliateRepo) GetByOwner(ctx context.Context, ownerID string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepo) FindBySlug(ctx context.Context, slug string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepo) MergeSlug(ctx context.Context, ownerID, slug string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Affiliate{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]interface{}{
			"slug":       slug,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *affiliateRepo) Increment(ctx context.Context, ownerID string, counter AffiliateCounter, delta int64) error {
	col := string(counter)
	res := r.db.WithContext(ctx).
		Model(&model.Affiliate{}).
		Where("owner_id = ?", ownerID).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *affiliateRepo) TransitionStatus(ctx context.Context, ownerID, from, to, reviewerID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Affiliate{}).
		Where("owner_id = ? AND approval_status = ?", ownerID, from).
		Updates(map[string]interface{}{
			"approval_status": to,
			"reviewed_by":     reviewerID,
			"reviewed_at":     at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *affiliateRepo) List(ctx context.Context, status string, offset, limit int) ([]model.Affiliate, int64, error) {
	var affiliates []model.Affiliate
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Affiliate{})
	if status != "" {
		db = db.Where("approval_status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&affiliates).Error; err != nil {
		return nil, 0, err
	}

	return affiliates, total, nil
}

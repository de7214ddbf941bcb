package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YASH5398/dlx-sub003/internal/model"
)

// SlugClaimRepository 短名占用数据访问接口
type SlugClaimRepository interface {
	// Create 插入占用记录；slug 已被占用时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, claim *model.SlugClaim) error
	// GetBySlugForUpdate 使用 SELECT ... FOR UPDATE 行级锁查询，须在事务中调用
	GetBySlugForUpdate(ctx context.Context, slug string) (*model.SlugClaim, error)
	// ReleaseOwner 释放 owner 名下除 keep 以外的占用
	ReleaseOwner(ctx context.Context, ownerID, keep string) error
}

type slugClaimRepo struct {
	db *gorm.DB
}

// NewSlugClaimRepo 创建 SlugClaimRepository 实例
func NewSlugClaimRepo(db *gorm.DB) SlugClaimRepository {
	return &slugClaimRepo{db: db}
}

func (r *slugClaimRepo) Create(ctx context.Context, claim *model.SlugClaim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

func (r *slugClaimRepo) GetBySlugForUpdate(ctx context.Context, slug string) (*model.SlugClaim, error) {
	var claim model.SlugClaim
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("slug = ?", slug).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *slugClaimRepo) ReleaseOwner(ctx context.Context, ownerID, keep string) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND slug <> ?", ownerID, keep).
		Delete(&model.SlugClaim{}).Error
}

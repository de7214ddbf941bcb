package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User          UserRepository
	Affiliate     AffiliateRepository
	SlugClaim     SlugClaimRepository
	ReferralEvent ReferralEventRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:            db,
		User:          NewUserRepo(db),
		Affiliate:     NewAffiliateRepo(db),
		SlugClaim:     NewSlugClaimRepo(db),
		ReferralEvent: NewReferralEventRepo(db),
	}
}

// WithTx 返回绑定到事务连接的 Repository 聚合
// tx 为 nil 时返回自身（单元测试中的 mock 聚合没有底层连接）
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误时整体回滚
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

package repo

import (
	"context"

	"github.com/richardliu001/shop-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateDeposit(ctx context.Context, tx *gorm.DB, d *model.Deposit) error {
	return tx.WithContext(ctx).Create(d).Error
}

func (r *Repository) GetDeposit(ctx context.Context, tx *gorm.DB, id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDepositForUpdate locks the deposit row so two confirmations cannot both see it pending.
func (r *Repository) GetDepositForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) UpdateDeposit(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	return tx.WithContext(ctx).Model(&model.Deposit{}).Where("id = ?", id).Updates(fields).Error
}

// ListDeposits returns a user's deposits newest first.
func (r *Repository) ListDeposits(ctx context.Context, userID uint64, limit, offset int) ([]model.Deposit, error) {
	var ds []model.Deposit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).Offset(offset).
		Find(&ds).Error
	return ds, err
}

package repo

import (
	"context"

	"github.com/richardliu001/shop-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).Create(o).Error
}

func (r *Repository) GetOrder(ctx context.Context, tx *gorm.DB, id uint64) (*model.Order, error) {
	var o model.Order
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderForUpdate locks the order row for a pay/cancel transition.
func (r *Repository) GetOrderForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Order, error) {
	var o model.Order
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) UpdateOrder(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	return tx.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields).Error
}

// ListOrders returns a user's orders newest first; empty status means any.
func (r *Repository) ListOrders(ctx context.Context, userID uint64, status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&orders).Error
	return orders, err
}

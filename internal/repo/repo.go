package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOptimisticLock is returned when a balance row changed under us.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// RepositoryInterface restricts Repo methods (keeps services mockable).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error
	GetUser(ctx context.Context, userID uint64) (*model.User, error)
	GetUserForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.User, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, userID uint64, newBalance decimal.Decimal, oldVersion uint64) error
	CreateTransactionLog(ctx context.Context, tx *gorm.DB, l *model.TransactionLog) error
	ListTransactionLogs(ctx context.Context, userID uint64, limit int, since time.Time) ([]model.TransactionLog, error)

	CreateDeposit(ctx context.Context, tx *gorm.DB, d *model.Deposit) error
	GetDeposit(ctx context.Context, tx *gorm.DB, id uint64) (*model.Deposit, error)
	GetDepositForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Deposit, error)
	UpdateDeposit(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error
	ListDeposits(ctx context.Context, userID uint64, limit, offset int) ([]model.Deposit, error)

	CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error
	GetOrder(ctx context.Context, tx *gorm.DB, id uint64) (*model.Order, error)
	GetOrderForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Order, error)
	UpdateOrder(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error
	ListOrders(ctx context.Context, userID uint64, status model.OrderStatus, limit, offset int) ([]model.Order, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
	InvalidateBalance(ctx context.Context, userID uint64) error
}

// Repository implements RepositoryInterface on gorm, redis and kafka.
// A nil redis client disables the balance cache.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *Repository) CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error {
	return tx.WithContext(ctx).Create(u).Error
}

func (r *Repository) GetUser(ctx context.Context, userID uint64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserForUpdate locks the user row until tx ends.
func (r *Repository) GetUserForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.User, error) {
	var u model.User
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateBalance with optimistic lock.
func (r *Repository) UpdateBalance(ctx context.Context, tx *gorm.DB, userID uint64, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", userID, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// CreateTransactionLog inserts a log row. Log rows are never updated or deleted.
func (r *Repository) CreateTransactionLog(ctx context.Context, tx *gorm.DB, l *model.TransactionLog) error {
	return tx.WithContext(ctx).Create(l).Error
}

func (r *Repository) ListTransactionLogs(ctx context.Context, userID uint64, limit int, since time.Time) ([]model.TransactionLog, error) {
	var logs []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("id asc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/observability"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Movement is a single signed change to a user's balance.
// Amount is positive for deposit/refund and negative for order payments.
type Movement struct {
	UserID      uint64
	Type        model.TxType
	ReferenceID uint64
	Amount      decimal.Decimal
	Description string
}

// Ledger is the only writer of users.balance and transaction_logs.
type Ledger struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewLedger returns Ledger.
func NewLedger(r repo.RepositoryInterface, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{repo: r, log: logger}
}

// Apply records m in its own transaction.
func (l *Ledger) Apply(ctx context.Context, m Movement) (*model.TransactionLog, error) {
	var entry *model.TransactionLog
	err := l.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.ApplyTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Settled(ctx, m.UserID)
	return entry, nil
}

// ApplyTx records m inside tx. The user row stays locked until tx ends, so
// concurrent movements on one user serialize while other users proceed.
// Callers must call Settled after tx commits.
func (l *Ledger) ApplyTx(ctx context.Context, tx *gorm.DB, m Movement) (*model.TransactionLog, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Apply", trace.WithAttributes(
		attribute.Int64("user_id", int64(m.UserID)),
		attribute.String("type", string(m.Type)),
		attribute.Int64("reference_id", int64(m.ReferenceID)),
		attribute.String("amount", m.Amount.String()),
	))
	defer span.End()

	start := time.Now()
	entry, err := l.apply(ctx, tx, m)
	status := "ok"
	if err != nil {
		status = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.LedgerMovements.WithLabelValues(string(m.Type), status).Inc()
	observability.LedgerApplyDuration.WithLabelValues(string(m.Type)).Observe(time.Since(start).Seconds())
	return entry, err
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, m Movement) (*model.TransactionLog, error) {
	if !m.Type.Valid() || m.Amount.IsZero() || m.Type.Credit() != m.Amount.IsPositive() {
		return nil, ErrInvalidMovement
	}

	u, err := l.repo.GetUserForUpdate(ctx, tx, m.UserID)
	if err != nil {
		return nil, storageErr(err, ErrUserNotFound)
	}
	newBal := u.Balance.Add(m.Amount)
	if newBal.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	if err := l.repo.UpdateBalance(ctx, tx, m.UserID, newBal, u.Version); err != nil {
		return nil, storageErr(err, nil)
	}

	entry := &model.TransactionLog{
		UserID:        m.UserID,
		Type:          m.Type,
		ReferenceID:   m.ReferenceID,
		Amount:        m.Amount.Abs(),
		Description:   m.Description,
		BalanceBefore: u.Balance,
		BalanceAfter:  newBal,
	}
	if err := l.repo.CreateTransactionLog(ctx, tx, entry); err != nil {
		return nil, storageErr(err, nil)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"log_id":         entry.ID,
		"user_id":        m.UserID,
		"type":           m.Type,
		"reference_id":   m.ReferenceID,
		"amount":         entry.Amount,
		"balance_before": entry.BalanceBefore,
		"balance_after":  entry.BalanceAfter,
	})
	if err != nil {
		return nil, storageErr(err, nil)
	}
	evt := &model.OutboxEvent{
		Aggregate: "User", AggregateID: m.UserID, EventType: "ledger." + string(m.Type), Payload: string(payload),
	}
	if err := l.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
		return nil, storageErr(err, nil)
	}

	l.log.Infof("ledger %s user=%d ref=%d amount=%s balance %s -> %s",
		m.Type, m.UserID, m.ReferenceID, m.Amount, entry.BalanceBefore, entry.BalanceAfter)
	return entry, nil
}

// Settled drops the cached balance of userID once a transaction carrying a movement committed.
func (l *Ledger) Settled(ctx context.Context, userID uint64) {
	if err := l.repo.InvalidateBalance(ctx, userID); err != nil {
		l.log.Warnf("invalidate balance user=%d: %v", userID, err)
	}
}

// Balance returns the current balance, from cache when possible.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	bal, err := l.repo.GetCachedBalance(ctx, userID)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, redis.Nil) {
		l.log.Warnf("read cached balance user=%d: %v", userID, err)
	}
	u, err := l.repo.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, storageErr(err, ErrUserNotFound)
	}
	if err := l.repo.CacheBalance(ctx, userID, u.Balance); err != nil {
		l.log.Warnf("cache balance user=%d: %v", userID, err)
	}
	return u.Balance, nil
}

// History fetches log entries since the given time, oldest first.
func (l *Ledger) History(ctx context.Context, userID uint64, limit int, since time.Time) ([]model.TransactionLog, error) {
	logs, err := l.repo.ListTransactionLogs(ctx, userID, limit, since)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return logs, nil
}

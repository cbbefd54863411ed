package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	repo     *repo.Repository
	ledger   *Ledger
	deposits *DepositService
	orders   *OrderService
}

// newTestEnv wires services over a private in-memory SQLite database. A single
// connection serializes transactions the way row locks do on Postgres.
func newTestEnv(t *testing.T, files FileStore) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, nil, log)
	l := NewLedger(r, log)
	return &testEnv{
		ctx:      context.Background(),
		db:       db,
		repo:     r,
		ledger:   l,
		deposits: NewDepositService(r, l, files, DefaultDepositLimits(), log),
		orders:   NewOrderService(r, l, log),
	}
}

func (e *testEnv) seedUser(t *testing.T, id uint64, balance int64) {
	t.Helper()
	require.NoError(t, e.repo.CreateUser(e.ctx, e.db, &model.User{ID: id, Balance: decimal.NewFromInt(balance)}))
}

func (e *testEnv) assertBalance(t *testing.T, id uint64, want int64) {
	t.Helper()
	u, err := e.repo.GetUser(e.ctx, id)
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(want)), "balance = %s, want %d", u.Balance, want)
}

func (e *testEnv) logs(t *testing.T, userID uint64) []model.TransactionLog {
	t.Helper()
	var logs []model.TransactionLog
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("id").Find(&logs).Error)
	return logs
}

func assertLog(t *testing.T, l model.TransactionLog, typ model.TxType, amount, before, after int64) {
	t.Helper()
	assert.Equal(t, typ, l.Type)
	assert.True(t, l.Amount.Equal(decimal.NewFromInt(amount)), "amount = %s, want %d", l.Amount, amount)
	assert.True(t, l.BalanceBefore.Equal(decimal.NewFromInt(before)), "before = %s, want %d", l.BalanceBefore, before)
	assert.True(t, l.BalanceAfter.Equal(decimal.NewFromInt(after)), "after = %s, want %d", l.BalanceAfter, after)
}

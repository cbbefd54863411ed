package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxDeposit TxType = "deposit"
	TxOrder   TxType = "order"
	TxRefund  TxType = "refund"
)

// Credit reports whether the type adds to the balance.
func (t TxType) Credit() bool { return t == TxDeposit || t == TxRefund }

func (t TxType) Valid() bool {
	switch t {
	case TxDeposit, TxOrder, TxRefund:
		return true
	}
	return false
}

// TransactionLog is append-only. Amount is the unsigned magnitude; the sign
// follows from Type.
type TransactionLog struct {
	ID            uint64          `gorm:"primaryKey" json:"id"`
	UserID        uint64          `gorm:"not null;index" json:"user_id"`
	Type          TxType          `gorm:"size:16;not null" json:"type"`
	ReferenceID   uint64          `gorm:"not null" json:"reference_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Description   string          `gorm:"size:255" json:"description"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (TransactionLog) TableName() string { return "transaction_logs" }

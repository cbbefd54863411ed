package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending DepositStatus = "pending"
	DepositSuccess DepositStatus = "success"
	DepositFailed  DepositStatus = "failed"
)

type Deposit struct {
	ID              uint64          `gorm:"primaryKey" json:"id"`
	PublicID        string          `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	UserID          uint64          `gorm:"not null;index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Method          string          `gorm:"size:32;not null" json:"method"`
	ReferenceNumber string          `gorm:"size:64;index;not null" json:"reference_number"`
	Status          DepositStatus   `gorm:"size:16;not null;default:'pending'" json:"status"`
	ProofImage      *string         `gorm:"size:255" json:"proof_image,omitempty"`
	ConfirmedBy     *uint64         `json:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Deposit) TableName() string { return "deposits" }

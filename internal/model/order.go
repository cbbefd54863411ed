package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Order.TotalPrice is fixed at creation and never recomputed.
type Order struct {
	ID            uint64          `gorm:"primaryKey" json:"id"`
	PublicID      string          `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	OrderNumber   string          `gorm:"size:64;index;not null" json:"order_number"`
	UserID        uint64          `gorm:"not null;index" json:"user_id"`
	ProductName   string          `gorm:"size:255;not null" json:"product_name"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Price         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"price"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_price"`
	Status        OrderStatus     `gorm:"size:16;not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"size:16;not null;default:'unpaid'" json:"payment_status"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

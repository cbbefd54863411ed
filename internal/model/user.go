package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the balance-holding part of a user row. Profile columns belong to the
// user-management module and are not mapped here.
type User struct {
	ID        uint64          `gorm:"primaryKey;column:id"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	Version   uint64          `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind is the machine-checkable part of a service error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindAlreadyFinalized  Kind = "already_finalized"
	KindAlreadyPaid       Kind = "already_paid"
	KindAlreadyCompleted  Kind = "already_completed"
	KindAlreadyCancelled  Kind = "already_cancelled"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindStorage           Kind = "storage_error"
)

// Error pairs a Kind with a display message. Callers branch on Kind (or errors.Is
// against the sentinels below), never on Msg.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrInvalidAmount     = &Error{Kind: KindValidation, Msg: "deposit amount out of allowed range"}
	ErrInvalidMethod     = &Error{Kind: KindValidation, Msg: "deposit method is required"}
	ErrInvalidQuantity   = &Error{Kind: KindValidation, Msg: "quantity must be positive"}
	ErrInvalidPrice      = &Error{Kind: KindValidation, Msg: "price must not be negative"}
	ErrInvalidProduct    = &Error{Kind: KindValidation, Msg: "product name is required"}
	ErrInvalidMovement   = &Error{Kind: KindValidation, Msg: "amount sign does not match transaction type"}
	ErrAmountPrecision   = &Error{Kind: KindValidation, Msg: "amounts allow at most two decimal places"}
	ErrUserNotFound      = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrDepositNotFound   = &Error{Kind: KindNotFound, Msg: "deposit not found"}
	ErrOrderNotFound     = &Error{Kind: KindNotFound, Msg: "order not found"}
	ErrAlreadyFinalized  = &Error{Kind: KindAlreadyFinalized, Msg: "deposit already finalized"}
	ErrAlreadyPaid       = &Error{Kind: KindAlreadyPaid, Msg: "order already paid"}
	ErrAlreadyCompleted  = &Error{Kind: KindAlreadyCompleted, Msg: "order already completed"}
	ErrAlreadyCancelled  = &Error{Kind: KindAlreadyCancelled, Msg: "order already cancelled"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
	ErrStorage           = &Error{Kind: KindStorage, Msg: "storage failure"}
)

// centsOnly reports whether d fits the numeric(20,2) money columns without rounding.
func centsOnly(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

// KindOf classifies err. Anything not produced by this package is a storage error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Message returns the display message of the outermost service error in err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ErrStorage.Msg
}

// storageErr wraps a repository failure, mapping a missing row to notFound.
func storageErr(err error, notFound *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService manages the order lifecycle; money moves only through Ledger.
type OrderService struct {
	repo   repo.RepositoryInterface
	ledger *Ledger
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewOrderService returns OrderService.
func NewOrderService(r repo.RepositoryInterface, l *Ledger, logger *zap.SugaredLogger) *OrderService {
	return &OrderService{repo: r, ledger: l, log: logger, now: time.Now}
}

// CreateOrder stores a pending/unpaid order. The balance check here is advisory;
// the debit and the authoritative check happen in PayOrder.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint64, productName string, quantity int, price decimal.Decimal, notes string) (o *model.Order, err error) {
	ctx, span := tracer.Start(ctx, opCreateOrder)
	defer func() { finish(span, opCreateOrder, err) }()

	productName = strings.TrimSpace(productName)
	switch {
	case productName == "":
		return nil, ErrInvalidProduct
	case quantity <= 0:
		return nil, ErrInvalidQuantity
	case price.IsNegative():
		return nil, ErrInvalidPrice
	case !centsOnly(price):
		return nil, ErrAmountPrecision
	}
	price = price.Round(2)
	total := price.Mul(decimal.NewFromInt(int64(quantity)))

	bal, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bal.LessThan(total) {
		return nil, ErrInsufficientFunds
	}

	o = &model.Order{
		PublicID:      uuid.NewString(),
		OrderNumber:   referenceNumber("ORD", s.now(), userID),
		UserID:        userID,
		ProductName:   productName,
		Quantity:      quantity,
		Price:         price,
		TotalPrice:    total,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentUnpaid,
		Notes:         notes,
	}
	if err := s.repo.CreateOrder(ctx, s.repo.DB(ctx), o); err != nil {
		return nil, storageErr(err, nil)
	}
	s.log.Infof("order %d (%s) created user=%d total=%s", o.ID, o.OrderNumber, userID, total)
	return o, nil
}

// PayOrder debits the owner's balance and moves the order to paid/processing
// in one transaction.
func (s *OrderService) PayOrder(ctx context.Context, orderID, userID uint64) (o *model.Order, err error) {
	ctx, span := tracer.Start(ctx, opPayOrder)
	defer func() { finish(span, opPayOrder, err) }()

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		ord, err := s.ownedForUpdate(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		switch {
		case ord.PaymentStatus == model.PaymentPaid:
			return ErrAlreadyPaid
		case ord.Status == model.OrderCancelled:
			return ErrAlreadyCancelled
		case ord.Status == model.OrderCompleted:
			return ErrAlreadyCompleted
		}
		if !ord.TotalPrice.IsZero() {
			if _, err := s.ledger.ApplyTx(ctx, tx, Movement{
				UserID:      userID,
				Type:        model.TxOrder,
				ReferenceID: ord.ID,
				Amount:      ord.TotalPrice.Neg(),
				Description: "Payment for order " + ord.OrderNumber,
			}); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateOrder(ctx, tx, ord.ID, map[string]interface{}{
			"payment_status": model.PaymentPaid,
			"status":         model.OrderProcessing,
		}); err != nil {
			return storageErr(err, nil)
		}
		ord.PaymentStatus = model.PaymentPaid
		ord.Status = model.OrderProcessing
		o = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Settled(ctx, userID)
	s.log.Infof("order %d paid by user=%d amount=%s", o.ID, userID, o.TotalPrice)
	return o, nil
}

// CompleteOrder marks an order completed. Calling it again resets completed_at.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID uint64) (o *model.Order, err error) {
	ctx, span := tracer.Start(ctx, opCompleteOrder)
	defer func() { finish(span, opCompleteOrder, err) }()

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		ord, err := s.repo.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return storageErr(err, ErrOrderNotFound)
		}
		now := s.now()
		if err := s.repo.UpdateOrder(ctx, tx, ord.ID, map[string]interface{}{
			"status":       model.OrderCompleted,
			"completed_at": now,
		}); err != nil {
			return storageErr(err, nil)
		}
		ord.Status = model.OrderCompleted
		ord.CompletedAt = &now
		o = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("order %d completed", o.ID)
	return o, nil
}

// CancelOrder cancels the owner's order, refunding it first when paid. The refund
// and the status change commit together or not at all.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint64, reason string) (o *model.Order, err error) {
	ctx, span := tracer.Start(ctx, opCancelOrder)
	defer func() { finish(span, opCancelOrder, err) }()

	refunded := false
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		ord, err := s.ownedForUpdate(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		switch ord.Status {
		case model.OrderCompleted:
			return ErrAlreadyCompleted
		case model.OrderCancelled:
			return ErrAlreadyCancelled
		}
		if ord.PaymentStatus == model.PaymentPaid && !ord.TotalPrice.IsZero() {
			if _, err := s.ledger.ApplyTx(ctx, tx, Movement{
				UserID:      userID,
				Type:        model.TxRefund,
				ReferenceID: ord.ID,
				Amount:      ord.TotalPrice,
				Description: "Refund for order " + ord.OrderNumber,
			}); err != nil {
				return err
			}
			refunded = true
		}
		fields := map[string]interface{}{"status": model.OrderCancelled}
		if reason = strings.TrimSpace(reason); reason != "" {
			ord.Notes = appendNote(ord.Notes, "Cancelled: "+reason)
			fields["notes"] = ord.Notes
		}
		if err := s.repo.UpdateOrder(ctx, tx, ord.ID, fields); err != nil {
			return storageErr(err, nil)
		}
		ord.Status = model.OrderCancelled
		o = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refunded {
		s.ledger.Settled(ctx, userID)
	}
	s.log.Infof("order %d cancelled by user=%d refunded=%t", o.ID, userID, refunded)
	return o, nil
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, s.repo.DB(ctx), orderID)
	if err != nil {
		return nil, storageErr(err, ErrOrderNotFound)
	}
	return o, nil
}

// ListOrders returns page (1-based) of a user's orders, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, userID uint64, page int, status model.OrderStatus) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx, userID, status, ItemsPerPage, pageOffset(page))
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return orders, nil
}

// ownedForUpdate locks the order; someone else's order reads as not found.
func (s *OrderService) ownedForUpdate(ctx context.Context, tx *gorm.DB, orderID, userID uint64) (*model.Order, error) {
	ord, err := s.repo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, storageErr(err, ErrOrderNotFound)
	}
	if ord.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

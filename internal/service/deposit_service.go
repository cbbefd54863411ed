package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/shop-ledger/internal/filestore"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ItemsPerPage is the page size of deposit and order listings.
const ItemsPerPage = 10

// FileStore persists proof images.
type FileStore interface {
	StoreProof(ctx context.Context, depositID uint64, data []byte, contentType string) (string, error)
}

// DepositLimits bounds a single deposit, inclusive.
type DepositLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func DefaultDepositLimits() DepositLimits {
	return DepositLimits{Min: decimal.NewFromInt(10_000), Max: decimal.NewFromInt(50_000_000)}
}

// DepositService handles deposit requests and their admin confirmation.
type DepositService struct {
	repo   repo.RepositoryInterface
	ledger *Ledger
	files  FileStore
	limits DepositLimits
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewDepositService returns DepositService.
func NewDepositService(r repo.RepositoryInterface, l *Ledger, files FileStore, limits DepositLimits, logger *zap.SugaredLogger) *DepositService {
	return &DepositService{repo: r, ledger: l, files: files, limits: limits, log: logger, now: time.Now}
}

// CreateDeposit records a pending deposit. The balance is untouched until confirmation.
func (s *DepositService) CreateDeposit(ctx context.Context, userID uint64, amount decimal.Decimal, method string) (d *model.Deposit, err error) {
	ctx, span := tracer.Start(ctx, opCreateDeposit)
	defer func() { finish(span, opCreateDeposit, err) }()

	if amount.LessThan(s.limits.Min) || amount.GreaterThan(s.limits.Max) {
		return nil, ErrInvalidAmount
	}
	if !centsOnly(amount) {
		return nil, ErrAmountPrecision
	}
	amount = amount.Round(2)
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, ErrInvalidMethod
	}

	d = &model.Deposit{
		PublicID:        uuid.NewString(),
		UserID:          userID,
		Amount:          amount,
		Method:          method,
		ReferenceNumber: referenceNumber("DEP", s.now(), userID),
		Status:          model.DepositPending,
	}
	if err := s.repo.CreateDeposit(ctx, s.repo.DB(ctx), d); err != nil {
		return nil, storageErr(err, nil)
	}
	s.log.Infof("deposit %d created user=%d amount=%s ref=%s", d.ID, userID, amount, d.ReferenceNumber)
	return d, nil
}

// ConfirmDeposit credits the user and marks the deposit successful, both in one
// transaction. Only a pending deposit can be confirmed.
func (s *DepositService) ConfirmDeposit(ctx context.Context, depositID, adminID uint64) (d *model.Deposit, err error) {
	ctx, span := tracer.Start(ctx, opConfirmDeposit)
	defer func() { finish(span, opConfirmDeposit, err) }()

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		dep, err := s.repo.GetDepositForUpdate(ctx, tx, depositID)
		if err != nil {
			return storageErr(err, ErrDepositNotFound)
		}
		if dep.Status != model.DepositPending {
			return ErrAlreadyFinalized
		}
		if _, err := s.ledger.ApplyTx(ctx, tx, Movement{
			UserID:      dep.UserID,
			Type:        model.TxDeposit,
			ReferenceID: dep.ID,
			Amount:      dep.Amount,
			Description: "Deposit " + dep.ReferenceNumber + " confirmed",
		}); err != nil {
			return err
		}
		now := s.now()
		if err := s.repo.UpdateDeposit(ctx, tx, dep.ID, map[string]interface{}{
			"status":       model.DepositSuccess,
			"confirmed_by": adminID,
			"confirmed_at": now,
		}); err != nil {
			return storageErr(err, nil)
		}
		dep.Status = model.DepositSuccess
		dep.ConfirmedBy = &adminID
		dep.ConfirmedAt = &now
		d = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Settled(ctx, d.UserID)
	s.log.Infof("deposit %d confirmed by admin %d, user=%d credited %s", d.ID, adminID, d.UserID, d.Amount)
	return d, nil
}

// RejectDeposit fails a pending deposit with reason. No balance effect.
func (s *DepositService) RejectDeposit(ctx context.Context, depositID uint64, reason string) (d *model.Deposit, err error) {
	ctx, span := tracer.Start(ctx, opRejectDeposit)
	defer func() { finish(span, opRejectDeposit, err) }()

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		dep, err := s.repo.GetDepositForUpdate(ctx, tx, depositID)
		if err != nil {
			return storageErr(err, ErrDepositNotFound)
		}
		if dep.Status != model.DepositPending {
			return ErrAlreadyFinalized
		}
		if err := s.repo.UpdateDeposit(ctx, tx, dep.ID, map[string]interface{}{
			"status": model.DepositFailed,
			"notes":  reason,
		}); err != nil {
			return storageErr(err, nil)
		}
		dep.Status = model.DepositFailed
		dep.Notes = reason
		d = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("deposit %d rejected: %s", d.ID, reason)
	return d, nil
}

// AttachProof stores a transfer proof for the owner's pending deposit.
func (s *DepositService) AttachProof(ctx context.Context, depositID, userID uint64, data []byte, contentType string) (d *model.Deposit, err error) {
	ctx, span := tracer.Start(ctx, opAttachProof)
	defer func() { finish(span, opAttachProof, err) }()

	dep, err := s.repo.GetDeposit(ctx, s.repo.DB(ctx), depositID)
	if err != nil {
		return nil, storageErr(err, ErrDepositNotFound)
	}
	if dep.UserID != userID {
		return nil, ErrDepositNotFound
	}
	if dep.Status != model.DepositPending {
		return nil, ErrAlreadyFinalized
	}

	ref, err := s.files.StoreProof(ctx, depositID, data, contentType)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) || errors.Is(err, filestore.ErrUnsupportedType) {
			return nil, &Error{Kind: KindValidation, Msg: err.Error()}
		}
		return nil, storageErr(err, nil)
	}

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.GetDepositForUpdate(ctx, tx, depositID)
		if err != nil {
			return storageErr(err, ErrDepositNotFound)
		}
		if locked.Status != model.DepositPending {
			return ErrAlreadyFinalized
		}
		if err := s.repo.UpdateDeposit(ctx, tx, depositID, map[string]interface{}{"proof_image": ref}); err != nil {
			return storageErr(err, nil)
		}
		locked.ProofImage = &ref
		d = locked
		return nil
	})
	if err != nil {
		s.log.Warnf("proof %s for deposit %d stored but not attached: %v", ref, depositID, err)
		return nil, err
	}
	return d, nil
}

// GetDeposit returns one deposit.
func (s *DepositService) GetDeposit(ctx context.Context, depositID uint64) (*model.Deposit, error) {
	d, err := s.repo.GetDeposit(ctx, s.repo.DB(ctx), depositID)
	if err != nil {
		return nil, storageErr(err, ErrDepositNotFound)
	}
	return d, nil
}

// ListDeposits returns page (1-based) of a user's deposits, newest first.
func (s *DepositService) ListDeposits(ctx context.Context, userID uint64, page int) ([]model.Deposit, error) {
	ds, err := s.repo.ListDeposits(ctx, userID, ItemsPerPage, pageOffset(page))
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return ds, nil
}

// referenceNumber builds the human-facing number, e.g. DEP20240131154502 + user id.
// It is display-only; PublicID carries uniqueness.
func referenceNumber(prefix string, at time.Time, userID uint64) string {
	return fmt.Sprintf("%s%s%d", prefix, at.Format("20060102150405"), userID)
}

func pageOffset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * ItemsPerPage
}

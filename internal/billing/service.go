// Package billing turns credit pack purchases into ledger transactions. A
// purchase opens pending and settles (or fails) once the payment provider
// answers, so the balance only moves on confirmation.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/podcraft/backend/pkg/ledger"
)

const defaultCentsPerCredit = 2

// Domain-level error values returned by the billing service.
var (
	ErrInvalidPurchase  = errors.New("invalid purchase")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrInvalidConfig    = errors.New("invalid billing service config")
)

// Config carries the billing service settings.
type Config struct {
	CentsPerCredit int64
}

// Purchase is an open or settled credit pack order.
type Purchase struct {
	TransactionID ledger.TransactionID
	PaymentRef    string
	Credits       int64
	PriceCents    int64
	Status        ledger.TransactionStatus
}

// Service records purchases against the ledger.
type Service struct {
	credits *ledger.Service
	cfg     Config
}

// NewService wires a Service.
func NewService(credits *ledger.Service, cfg Config) (*Service, error) {
	if credits == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidConfig)
	}
	if cfg.CentsPerCredit < 0 {
		return nil, fmt.Errorf("%w: cents per credit must not be negative", ErrInvalidConfig)
	}
	if cfg.CentsPerCredit == 0 {
		cfg.CentsPerCredit = defaultCentsPerCredit
	}
	return &Service{credits: credits, cfg: cfg}, nil
}

// Quote prices a credit pack.
func (service *Service) Quote(creditCount int64) (int64, error) {
	if creditCount <= 0 {
		return 0, fmt.Errorf("%w: credit count must be positive", ErrInvalidPurchase)
	}
	return creditCount * service.cfg.CentsPerCredit, nil
}

// StartPurchase opens a pending purchase transaction and returns the payment
// reference the provider callback will echo. The balance stays untouched
// until ConfirmPurchase.
func (service *Service) StartPurchase(ctx context.Context, userID string, creditCount int64) (Purchase, error) {
	priceCents, err := service.Quote(creditCount)
	if err != nil {
		return Purchase{}, err
	}
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		return Purchase{}, err
	}
	amount, err := ledger.NewCreditAmount(creditCount)
	if err != nil {
		return Purchase{}, err
	}
	metadata, err := ledger.NewMetadataJSON(fmt.Sprintf(`{"price_cents":%d}`, priceCents))
	if err != nil {
		return Purchase{}, err
	}
	paymentRef := uuid.NewString()
	recorded, err := service.credits.RecordTransaction(ctx, accountID, amount, ledger.KindPurchase, ledger.LabelNone, ledger.StatusPending, paymentRef, metadata)
	if err != nil {
		return Purchase{}, err
	}
	return Purchase{
		TransactionID: recorded.TransactionID,
		PaymentRef:    paymentRef,
		Credits:       creditCount,
		PriceCents:    priceCents,
		Status:        recorded.Status,
	}, nil
}

// ConfirmPurchase settles a pending purchase, crediting the balance at
// confirmation time.
func (service *Service) ConfirmPurchase(ctx context.Context, userID string, transactionID ledger.TransactionID) (Purchase, error) {
	original, err := service.ownedPurchase(ctx, userID, transactionID)
	if err != nil {
		return Purchase{}, err
	}
	completed, err := service.credits.CompleteTransaction(ctx, transactionID)
	if err != nil {
		return Purchase{}, err
	}
	return Purchase{
		TransactionID: completed.TransactionID,
		PaymentRef:    original.ExternalRef,
		Credits:       completed.Amount.Int64(),
		Status:        completed.Status,
	}, nil
}

// CancelPurchase fails a pending purchase. Failed purchases never touch the
// balance.
func (service *Service) CancelPurchase(ctx context.Context, userID string, transactionID ledger.TransactionID) error {
	if _, err := service.ownedPurchase(ctx, userID, transactionID); err != nil {
		return err
	}
	return service.credits.FailTransaction(ctx, transactionID)
}

func (service *Service) ownedPurchase(ctx context.Context, userID string, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transaction, err := service.credits.GetTransaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, ErrPurchaseNotFound
	}
	if transaction.AccountID != accountID || transaction.Kind != ledger.KindPurchase {
		return ledger.Transaction{}, ErrPurchaseNotFound
	}
	return transaction, nil
}

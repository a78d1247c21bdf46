package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AccountID identifies a credit account. One account exists per user.
type AccountID struct {
	value string
}

// TransactionID identifies a single ledger transaction.
type TransactionID struct {
	value string
}

// CreditAmount is a signed, non-zero number of credits. Positive amounts
// credit the account, negative amounts debit it.
type CreditAmount int64

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// TransactionKind classifies why a balance changed.
type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase"
	KindUsage    TransactionKind = "usage"
	KindRefund   TransactionKind = "refund"
	KindBonus    TransactionKind = "bonus"
)

// OperationLabel names the metered operation a transaction paid for.
type OperationLabel string

const (
	LabelNone        OperationLabel = ""
	LabelScript      OperationLabel = "script"
	LabelTTS         OperationLabel = "tts"
	LabelImage       OperationLabel = "image"
	LabelVideo       OperationLabel = "video"
	LabelPlatformFee OperationLabel = "platform_fee"
)

// TransactionStatus defines the transaction lifecycle. The only allowed
// transitions are pending -> completed, pending -> failed, and
// completed -> refunded.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusRefunded  TransactionStatus = "refunded"
)

// Account is the credit-holding record for a user. BalanceCredits is the
// cached sum of completed transaction amounts.
type Account struct {
	AccountID      AccountID
	BalanceCredits int64
	CreatedUnixUTC int64
}

// Transaction is a single immutable ledger row. Only Status (and, on
// completion, BalanceAfter) ever changes after insert.
type Transaction struct {
	TransactionID  TransactionID
	AccountID      AccountID
	Amount         CreditAmount
	BalanceAfter   int64
	Kind           TransactionKind
	Label          OperationLabel
	Status         TransactionStatus
	ExternalRef    string
	Metadata       MetadataJSON
	CreatedUnixUTC int64
}

// Balance is the read view over an account's ledger.
type Balance struct {
	CurrentCredits   int64
	TotalEarned      int64
	TotalSpent       int64
	TransactionCount int64
}

// Totals aggregates completed transaction sums for one account.
type Totals struct {
	CompletedSum     int64
	Earned           int64
	Spent            int64
	TransactionCount int64
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// NewCreditAmount validates a signed amount and rejects zero.
func NewCreditAmount(raw int64) (CreditAmount, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: amount must be non-zero", ErrInvalidTransaction)
	}
	return CreditAmount(raw), nil
}

// NewDebitAmount validates a strictly positive cost for a metered operation.
func NewDebitAmount(raw int64) (CreditAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: debit cost must be greater than zero", ErrInvalidTransaction)
	}
	return CreditAmount(raw), nil
}

// Int64 returns the raw signed amount.
func (amount CreditAmount) Int64() int64 {
	return int64(amount)
}

// Negated flips the amount's sign.
func (amount CreditAmount) Negated() CreditAmount {
	return -amount
}

// NewMetadataJSON validates metadata (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: metadata must be valid json", ErrInvalidTransaction)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// ParseTransactionKind validates a stored kind value.
func ParseTransactionKind(raw string) (TransactionKind, error) {
	switch TransactionKind(raw) {
	case KindPurchase, KindUsage, KindRefund, KindBonus:
		return TransactionKind(raw), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, raw)
}

// String returns the stored kind value.
func (kind TransactionKind) String() string {
	return string(kind)
}

// ParseOperationLabel validates a stored label value. Empty is allowed:
// purchases and bonuses carry no metered operation.
func ParseOperationLabel(raw string) (OperationLabel, error) {
	switch OperationLabel(raw) {
	case LabelNone, LabelScript, LabelTTS, LabelImage, LabelVideo, LabelPlatformFee:
		return OperationLabel(raw), nil
	}
	return "", fmt.Errorf("%w: unknown operation label %q", ErrInvalidTransaction, raw)
}

// String returns the stored label value.
func (label OperationLabel) String() string {
	return string(label)
}

// ParseTransactionStatus validates a stored status value.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	switch TransactionStatus(raw) {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return TransactionStatus(raw), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, raw)
}

// String returns the stored status value.
func (status TransactionStatus) String() string {
	return string(status)
}

// CanTransitionTo reports whether the forward transition is allowed.
func (status TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch status {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted:
		return next == StatusRefunded
	}
	return false
}

// Store is the persistence contract used by Service. Implementations must
// run fn inside a single storage transaction for WithTx and honor row-level
// locking semantics for GetAccountForUpdate so that concurrent mutations of
// the same account serialize.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	GetAccountForUpdate(ctx context.Context, accountID AccountID) (Account, error)
	UpdateAccountBalance(ctx context.Context, accountID AccountID, balanceCredits int64) error
	InsertTransaction(ctx context.Context, transaction Transaction) (Transaction, error)
	GetTransaction(ctx context.Context, transactionID TransactionID) (Transaction, error)
	MarkTransactionCompleted(ctx context.Context, transactionID TransactionID, balanceAfter int64) error
	MarkTransactionStatus(ctx context.Context, transactionID TransactionID, from TransactionStatus, to TransactionStatus) error
	TransactionTotals(ctx context.Context, accountID AccountID) (Totals, error)
	ListTransactions(ctx context.Context, accountID AccountID, offset int, limit int) ([]Transaction, error)
}

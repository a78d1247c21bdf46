package ledger

import (
	"context"
	"fmt"
)

// Service owns the authoritative credit balance per account and records every
// balance-affecting event as an immutable transaction row.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// OpenAccount creates the account and, when signupBonus is positive, records
// the starting bonus as a completed transaction. Both writes share one
// storage transaction.
func (service *Service) OpenAccount(ctx context.Context, accountID AccountID, signupBonus int64, metadata MetadataJSON) (Account, error) {
	account := Account{
		AccountID:      accountID,
		BalanceCredits: 0,
		CreatedUnixUTC: service.nowFn(),
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if err := txStore.CreateAccount(ctx, account); err != nil {
			return err
		}
		if signupBonus <= 0 {
			return nil
		}
		bonus, err := NewCreditAmount(signupBonus)
		if err != nil {
			return err
		}
		recorded, err := service.recordLocked(ctx, txStore, accountID, bonus, KindBonus, LabelNone, StatusCompleted, "", metadata)
		if err != nil {
			return err
		}
		account.BalanceCredits = recorded.BalanceAfter
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationOpenAccount,
		AccountID: accountID,
		Amount:    CreditAmount(signupBonus),
		Kind:      KindBonus,
		Error:     operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

// RecordTransaction appends one ledger row. A completed transaction applies
// its amount to the cached balance in the same storage transaction; pending
// and failed transactions leave the balance untouched until they transition.
func (service *Service) RecordTransaction(ctx context.Context, accountID AccountID, amount CreditAmount, kind TransactionKind, label OperationLabel, status TransactionStatus, externalRef string, metadata MetadataJSON) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		transaction, err := service.recordLocked(ctx, txStore, accountID, amount, kind, label, status, externalRef, metadata)
		if err != nil {
			return err
		}
		recorded = transaction
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationRecord,
		AccountID:     accountID,
		TransactionID: recorded.TransactionID,
		Amount:        amount,
		Kind:          kind,
		Label:         label,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// DebitForOperation charges a metered operation up front: a completed usage
// debit that fails with ErrInsufficientCredits when cost exceeds the current
// balance. Callers perform the metered action only after this succeeds.
func (service *Service) DebitForOperation(ctx context.Context, accountID AccountID, label OperationLabel, cost CreditAmount) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if cost.Int64() <= 0 {
			return fmt.Errorf("%w: debit cost must be greater than zero", ErrInvalidTransaction)
		}
		transaction, err := service.recordLocked(ctx, txStore, accountID, cost.Negated(), KindUsage, label, StatusCompleted, "", MetadataJSON{value: "{}"})
		if err != nil {
			return err
		}
		recorded = transaction
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationDebit,
		AccountID:     accountID,
		TransactionID: recorded.TransactionID,
		Amount:        cost.Negated(),
		Kind:          KindUsage,
		Label:         label,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// RefundForOperation compensates a completed usage debit after a downstream
// failure. The refund credits back exactly the debited amount, carries the
// original label, references the original transaction id, and flips the
// original row to refunded.
func (service *Service) RefundForOperation(ctx context.Context, accountID AccountID, transactionID TransactionID, metadata MetadataJSON) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		original, err := txStore.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if original.AccountID != accountID {
			return fmt.Errorf("%w: transaction belongs to another account", ErrTransactionNotFound)
		}
		if original.Kind != KindUsage {
			return fmt.Errorf("%w: only usage debits are refundable", ErrInvalidTransition)
		}
		if original.Status != StatusCompleted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, original.Status, StatusRefunded)
		}
		refund, err := service.recordLocked(ctx, txStore, accountID, original.Amount.Negated(), KindRefund, original.Label, StatusCompleted, original.TransactionID.String(), metadata)
		if err != nil {
			return err
		}
		if err := txStore.MarkTransactionStatus(ctx, transactionID, StatusCompleted, StatusRefunded); err != nil {
			return err
		}
		recorded = refund
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationRefund,
		AccountID:     accountID,
		TransactionID: transactionID,
		Kind:          KindRefund,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// CompleteTransaction clears a pending transaction. The balance is evaluated
// at completion time, not creation time.
func (service *Service) CompleteTransaction(ctx context.Context, transactionID TransactionID) (Transaction, error) {
	var completed Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		transaction, err := txStore.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if transaction.Status != StatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, transaction.Status, StatusCompleted)
		}
		account, err := txStore.GetAccountForUpdate(ctx, transaction.AccountID)
		if err != nil {
			return err
		}
		balanceAfter := account.BalanceCredits + transaction.Amount.Int64()
		if transaction.Kind == KindUsage && balanceAfter < 0 {
			return ErrInsufficientCredits
		}
		if err := txStore.MarkTransactionCompleted(ctx, transactionID, balanceAfter); err != nil {
			return err
		}
		if err := txStore.UpdateAccountBalance(ctx, transaction.AccountID, balanceAfter); err != nil {
			return err
		}
		transaction.Status = StatusCompleted
		transaction.BalanceAfter = balanceAfter
		completed = transaction
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationComplete,
		AccountID:     completed.AccountID,
		TransactionID: transactionID,
		Amount:        completed.Amount,
		Kind:          completed.Kind,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return completed, nil
}

// FailTransaction marks a pending transaction failed. Failed transactions
// never affect the balance.
func (service *Service) FailTransaction(ctx context.Context, transactionID TransactionID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		transaction, err := txStore.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if transaction.Status != StatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, transaction.Status, StatusFailed)
		}
		return txStore.MarkTransactionStatus(ctx, transactionID, StatusPending, StatusFailed)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationFail,
		TransactionID: transactionID,
		Error:         operationError,
	})
	return operationError
}

// recordLocked appends one transaction while holding the account row lock.
// Must run inside a store transaction.
func (service *Service) recordLocked(ctx context.Context, txStore Store, accountID AccountID, amount CreditAmount, kind TransactionKind, label OperationLabel, status TransactionStatus, externalRef string, metadata MetadataJSON) (Transaction, error) {
	if err := validateCreation(amount, kind, status); err != nil {
		return Transaction{}, err
	}
	account, err := txStore.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return Transaction{}, err
	}
	balanceAfter := account.BalanceCredits
	if status == StatusCompleted {
		balanceAfter = account.BalanceCredits + amount.Int64()
		if kind == KindUsage && balanceAfter < 0 {
			return Transaction{}, ErrInsufficientCredits
		}
	}
	transaction := Transaction{
		AccountID:      accountID,
		Amount:         amount,
		BalanceAfter:   balanceAfter,
		Kind:           kind,
		Label:          label,
		Status:         status,
		ExternalRef:    externalRef,
		Metadata:       metadata,
		CreatedUnixUTC: service.nowFn(),
	}
	inserted, err := txStore.InsertTransaction(ctx, transaction)
	if err != nil {
		return Transaction{}, err
	}
	if status == StatusCompleted {
		if err := txStore.UpdateAccountBalance(ctx, accountID, balanceAfter); err != nil {
			return Transaction{}, err
		}
	}
	return inserted, nil
}

func validateCreation(amount CreditAmount, kind TransactionKind, status TransactionStatus) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidTransaction)
	}
	if _, err := ParseTransactionKind(kind.String()); err != nil {
		return err
	}
	switch status {
	case StatusPending, StatusCompleted, StatusFailed:
	case StatusRefunded:
		return fmt.Errorf("%w: refunded is reachable only from completed", ErrInvalidTransaction)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, status)
	}
	switch kind {
	case KindUsage:
		if amount > 0 {
			return fmt.Errorf("%w: usage amounts must be negative", ErrInvalidTransaction)
		}
	case KindPurchase, KindBonus, KindRefund:
		if amount < 0 {
			return fmt.Errorf("%w: %s amounts must be positive", ErrInvalidTransaction, kind)
		}
	}
	return nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

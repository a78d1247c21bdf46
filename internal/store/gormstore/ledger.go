package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/podcraft/backend/pkg/ledger"
)

const (
	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectTransaction = "transaction"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore returns a LedgerStore backed by gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx executes fn within a database transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	model := CreditAccount{
		AccountID:      account.AccountID.String(),
		BalanceCredits: account.BalanceCredits,
		CreatedAt:      time.Unix(account.CreatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isDuplicateKey(err) {
		return wrapLedgerError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	}
	if err != nil {
		return wrapLedgerError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store *LedgerStore) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return store.getAccount(ctx, accountID, false)
}

// GetAccountForUpdate locks the account row for the rest of the surrounding
// transaction.
func (store *LedgerStore) GetAccountForUpdate(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return store.getAccount(ctx, accountID, true)
}

func (store *LedgerStore) getAccount(ctx context.Context, accountID ledger.AccountID, forUpdate bool) (ledger.Account, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model CreditAccount
	err := query.Where("account_id = ?", accountID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Account{}, wrapLedgerError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
		}
		return ledger.Account{}, wrapLedgerError(errorSubjectAccount, errorCodeGet, err)
	}
	return mapCreditAccount(model)
}

func (store *LedgerStore) UpdateAccountBalance(ctx context.Context, accountID ledger.AccountID, balanceCredits int64) error {
	result := store.db.WithContext(ctx).
		Model(&CreditAccount{}).
		Where("account_id = ?", accountID.String()).
		Update("balance_credits", balanceCredits)
	if result.Error != nil {
		return wrapLedgerError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapLedgerError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *LedgerStore) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	model := CreditTransaction{
		TransactionID: transaction.TransactionID.String(),
		AccountID:     transaction.AccountID.String(),
		AmountCredits: transaction.Amount.Int64(),
		BalanceAfter:  transaction.BalanceAfter,
		Kind:          transaction.Kind.String(),
		Label:         transaction.Label.String(),
		Status:        transaction.Status.String(),
		ExternalRef:   transaction.ExternalRef,
		Metadata:      datatypesJSON(transaction.Metadata.String()),
		CreatedAt:     time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isDuplicateKey(err) {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrInvalidTransaction)
	}
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return mapCreditTransaction(model)
}

func (store *LedgerStore) GetTransaction(ctx context.Context, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	var model CreditTransaction
	err := store.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeGet, ledger.ErrTransactionNotFound)
		}
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeGet, err)
	}
	return mapCreditTransaction(model)
}

func (store *LedgerStore) MarkTransactionCompleted(ctx context.Context, transactionID ledger.TransactionID, balanceAfter int64) error {
	result := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID.String(), ledger.StatusPending.String()).
		Updates(map[string]interface{}{
			"status":        ledger.StatusCompleted.String(),
			"balance_after": balanceAfter,
		})
	if result.Error != nil {
		return wrapLedgerError(errorSubjectTransaction, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.classifyMissedUpdate(ctx, transactionID)
	}
	return nil
}

func (store *LedgerStore) MarkTransactionStatus(ctx context.Context, transactionID ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	result := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapLedgerError(errorSubjectTransaction, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.classifyMissedUpdate(ctx, transactionID)
	}
	return nil
}

// classifyMissedUpdate distinguishes a missing row from a row whose status
// already moved on.
func (store *LedgerStore) classifyMissedUpdate(ctx context.Context, transactionID ledger.TransactionID) error {
	var count int64
	if err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("transaction_id = ?", transactionID.String()).
		Count(&count).Error; err != nil {
		return wrapLedgerError(errorSubjectTransaction, errorCodeGet, err)
	}
	if count == 0 {
		return wrapLedgerError(errorSubjectTransaction, errorCodeUpdate, ledger.ErrTransactionNotFound)
	}
	return wrapLedgerError(errorSubjectTransaction, errorCodeUpdate, ledger.ErrInvalidTransition)
}

func (store *LedgerStore) TransactionTotals(ctx context.Context, accountID ledger.AccountID) (ledger.Totals, error) {
	var aggregate struct {
		Total  int64
		Earned int64
		Spent  int64
	}
	err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Select(
			"coalesce(sum(amount_credits),0) as total, "+
				"coalesce(sum(case when amount_credits > 0 then amount_credits else 0 end),0) as earned, "+
				"coalesce(sum(case when amount_credits < 0 then -amount_credits else 0 end),0) as spent").
		Where("account_id = ? AND status IN ?", accountID.String(), []string{
			ledger.StatusCompleted.String(),
			ledger.StatusRefunded.String(),
		}).
		Scan(&aggregate).Error
	if err != nil {
		return ledger.Totals{}, wrapLedgerError(errorSubjectTransaction, errorCodeSum, err)
	}
	var count int64
	err = store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("account_id = ?", accountID.String()).
		Count(&count).Error
	if err != nil {
		return ledger.Totals{}, wrapLedgerError(errorSubjectTransaction, errorCodeSum, err)
	}
	return ledger.Totals{
		CompletedSum:     aggregate.Total,
		Earned:           aggregate.Earned,
		Spent:            aggregate.Spent,
		TransactionCount: count,
	}, nil
}

func (store *LedgerStore) ListTransactions(ctx context.Context, accountID ledger.AccountID, offset int, limit int) ([]ledger.Transaction, error) {
	var rows []CreditTransaction
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID.String()).
		Order("created_at DESC, transaction_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapLedgerError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, mapErr := mapCreditTransaction(row)
		if mapErr != nil {
			return nil, mapErr
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func wrapLedgerError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapCreditAccount(model CreditAccount) (ledger.Account, error) {
	accountID, err := ledger.NewAccountID(model.AccountID)
	if err != nil {
		return ledger.Account{}, wrapLedgerError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{
		AccountID:      accountID,
		BalanceCredits: model.BalanceCredits,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func mapCreditTransaction(model CreditTransaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(model.TransactionID)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	accountID, err := ledger.NewAccountID(model.AccountID)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	amount, err := ledger.NewCreditAmount(model.AmountCredits)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	kind, err := ledger.ParseTransactionKind(model.Kind)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	label, err := ledger.ParseOperationLabel(model.Label)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	status, err := ledger.ParseTransactionStatus(model.Status)
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	metadata, err := ledger.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return ledger.Transaction{}, wrapLedgerError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return ledger.Transaction{
		TransactionID:  transactionID,
		AccountID:      accountID,
		Amount:         amount,
		BalanceAfter:   model.BalanceAfter,
		Kind:           kind,
		Label:          label,
		Status:         status,
		ExternalRef:    model.ExternalRef,
		Metadata:       metadata,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

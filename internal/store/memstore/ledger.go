// Package memstore provides in-memory store implementations backing the
// ephemeral storage driver and the service test suites.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/podcraft/backend/pkg/ledger"
)

// Ledger is an in-memory ledger.Store. A single mutex serializes every
// transaction, which gives the same effective isolation the SQL stores get
// from row locks.
type Ledger struct {
	mutex        sync.Mutex
	accounts     map[string]ledger.Account
	transactions map[string]ledger.Transaction
	order        []string
}

// NewLedger builds an empty in-memory ledger store.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:     map[string]ledger.Account{},
		transactions: map[string]ledger.Transaction{},
	}
}

func (store *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	savedAccounts := make(map[string]ledger.Account, len(store.accounts))
	for key, value := range store.accounts {
		savedAccounts[key] = value
	}
	savedTransactions := make(map[string]ledger.Transaction, len(store.transactions))
	for key, value := range store.transactions {
		savedTransactions[key] = value
	}
	savedOrder := append([]string(nil), store.order...)

	if err := fn(ctx, &ledgerTx{store: store}); err != nil {
		store.accounts = savedAccounts
		store.transactions = savedTransactions
		store.order = savedOrder
		return err
	}
	return nil
}

func (store *Ledger) CreateAccount(ctx context.Context, account ledger.Account) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.createAccountLocked(account)
}

func (store *Ledger) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getAccountLocked(accountID)
}

func (store *Ledger) GetAccountForUpdate(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getAccountLocked(accountID)
}

func (store *Ledger) UpdateAccountBalance(ctx context.Context, accountID ledger.AccountID, balanceCredits int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.updateAccountBalanceLocked(accountID, balanceCredits)
}

func (store *Ledger) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.insertTransactionLocked(transaction)
}

func (store *Ledger) GetTransaction(ctx context.Context, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getTransactionLocked(transactionID)
}

func (store *Ledger) MarkTransactionCompleted(ctx context.Context, transactionID ledger.TransactionID, balanceAfter int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.markTransactionCompletedLocked(transactionID, balanceAfter)
}

func (store *Ledger) MarkTransactionStatus(ctx context.Context, transactionID ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.markTransactionStatusLocked(transactionID, from, to)
}

func (store *Ledger) TransactionTotals(ctx context.Context, accountID ledger.AccountID) (ledger.Totals, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.transactionTotalsLocked(accountID)
}

func (store *Ledger) ListTransactions(ctx context.Context, accountID ledger.AccountID, offset int, limit int) ([]ledger.Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.listTransactionsLocked(accountID, offset, limit)
}

func (store *Ledger) createAccountLocked(account ledger.Account) error {
	key := account.AccountID.String()
	if _, exists := store.accounts[key]; exists {
		return ledger.ErrAccountExists
	}
	store.accounts[key] = account
	return nil
}

func (store *Ledger) getAccountLocked(accountID ledger.AccountID) (ledger.Account, error) {
	account, exists := store.accounts[accountID.String()]
	if !exists {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (store *Ledger) updateAccountBalanceLocked(accountID ledger.AccountID, balanceCredits int64) error {
	key := accountID.String()
	account, exists := store.accounts[key]
	if !exists {
		return ledger.ErrAccountNotFound
	}
	account.BalanceCredits = balanceCredits
	store.accounts[key] = account
	return nil
}

func (store *Ledger) insertTransactionLocked(transaction ledger.Transaction) (ledger.Transaction, error) {
	if transaction.TransactionID.String() == "" {
		generated, err := ledger.NewTransactionID(uuid.NewString())
		if err != nil {
			return ledger.Transaction{}, err
		}
		transaction.TransactionID = generated
	}
	key := transaction.TransactionID.String()
	if _, exists := store.transactions[key]; exists {
		return ledger.Transaction{}, ledger.ErrInvalidTransaction
	}
	store.transactions[key] = transaction
	store.order = append(store.order, key)
	return transaction, nil
}

func (store *Ledger) getTransactionLocked(transactionID ledger.TransactionID) (ledger.Transaction, error) {
	transaction, exists := store.transactions[transactionID.String()]
	if !exists {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return transaction, nil
}

func (store *Ledger) markTransactionCompletedLocked(transactionID ledger.TransactionID, balanceAfter int64) error {
	key := transactionID.String()
	transaction, exists := store.transactions[key]
	if !exists {
		return ledger.ErrTransactionNotFound
	}
	if transaction.Status != ledger.StatusPending {
		return ledger.ErrInvalidTransition
	}
	transaction.Status = ledger.StatusCompleted
	transaction.BalanceAfter = balanceAfter
	store.transactions[key] = transaction
	return nil
}

func (store *Ledger) markTransactionStatusLocked(transactionID ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	key := transactionID.String()
	transaction, exists := store.transactions[key]
	if !exists {
		return ledger.ErrTransactionNotFound
	}
	if transaction.Status != from {
		return ledger.ErrInvalidTransition
	}
	transaction.Status = to
	store.transactions[key] = transaction
	return nil
}

func (store *Ledger) transactionTotalsLocked(accountID ledger.AccountID) (ledger.Totals, error) {
	totals := ledger.Totals{}
	for _, transaction := range store.transactions {
		if transaction.AccountID != accountID {
			continue
		}
		totals.TransactionCount++
		if transaction.Status != ledger.StatusCompleted && transaction.Status != ledger.StatusRefunded {
			continue
		}
		amount := transaction.Amount.Int64()
		totals.CompletedSum += amount
		if amount > 0 {
			totals.Earned += amount
		} else {
			totals.Spent += -amount
		}
	}
	return totals, nil
}

func (store *Ledger) listTransactionsLocked(accountID ledger.AccountID, offset int, limit int) ([]ledger.Transaction, error) {
	matched := make([]ledger.Transaction, 0)
	for _, key := range store.order {
		transaction := store.transactions[key]
		if transaction.AccountID == accountID {
			matched = append(matched, transaction)
		}
	}
	sort.SliceStable(matched, func(left, right int) bool {
		if matched[left].CreatedUnixUTC != matched[right].CreatedUnixUTC {
			return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
		}
		return left > right
	})
	if offset >= len(matched) {
		return []ledger.Transaction{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// ledgerTx is the view handed to WithTx callbacks. The parent mutex is
// already held, so every call goes straight to the locked helpers.
type ledgerTx struct {
	store *Ledger
}

func (tx *ledgerTx) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, tx)
}

func (tx *ledgerTx) CreateAccount(ctx context.Context, account ledger.Account) error {
	return tx.store.createAccountLocked(account)
}

func (tx *ledgerTx) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return tx.store.getAccountLocked(accountID)
}

func (tx *ledgerTx) GetAccountForUpdate(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return tx.store.getAccountLocked(accountID)
}

func (tx *ledgerTx) UpdateAccountBalance(ctx context.Context, accountID ledger.AccountID, balanceCredits int64) error {
	return tx.store.updateAccountBalanceLocked(accountID, balanceCredits)
}

func (tx *ledgerTx) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	return tx.store.insertTransactionLocked(transaction)
}

func (tx *ledgerTx) GetTransaction(ctx context.Context, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	return tx.store.getTransactionLocked(transactionID)
}

func (tx *ledgerTx) MarkTransactionCompleted(ctx context.Context, transactionID ledger.TransactionID, balanceAfter int64) error {
	return tx.store.markTransactionCompletedLocked(transactionID, balanceAfter)
}

func (tx *ledgerTx) MarkTransactionStatus(ctx context.Context, transactionID ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	return tx.store.markTransactionStatusLocked(transactionID, from, to)
}

func (tx *ledgerTx) TransactionTotals(ctx context.Context, accountID ledger.AccountID) (ledger.Totals, error) {
	return tx.store.transactionTotalsLocked(accountID)
}

func (tx *ledgerTx) ListTransactions(ctx context.Context, accountID ledger.AccountID, offset int, limit int) ([]ledger.Transaction, error) {
	return tx.store.listTransactionsLocked(accountID, offset, limit)
}

// Package pgstore implements the credit ledger store on raw pgx, for
// deployments that want the ledger hot path off the ORM.
package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podcraft/backend/pkg/ledger"
)

const (
	pgUniqueViolationCode   = "23505"
	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"

	sqlInsertAccount = `
		insert into credit_accounts(account_id, balance_credits, created_at)
		values($1, $2, to_timestamp($3))
	`

	sqlSelectAccount = `
		select account_id::text, balance_credits, extract(epoch from created_at)::bigint
		from credit_accounts
		where account_id = $1
	`

	sqlSelectAccountForUpdate = sqlSelectAccount + ` for update`

	sqlUpdateAccountBalance = `
		update credit_accounts set balance_credits = $2 where account_id = $1
	`

	sqlInsertTransaction = `
		insert into credit_transactions(
			transaction_id, account_id, amount_credits, balance_after,
			kind, label, status, external_ref, metadata, created_at
		)
		values(
			coalesce(nullif($1,'')::uuid, gen_random_uuid()), $2, $3, $4,
			$5, $6, $7, $8,
			coalesce(nullif($9,''),'{}')::jsonb,
			to_timestamp($10)
		)
		returning transaction_id::text
	`

	sqlSelectTransaction = `
		select
			transaction_id::text,
			account_id::text,
			amount_credits,
			balance_after,
			kind,
			label,
			status,
			external_ref,
			coalesce(metadata::text,'{}'),
			extract(epoch from created_at)::bigint
		from credit_transactions
		where transaction_id = $1
	`

	sqlMarkTransactionCompleted = `
		update credit_transactions
		set status = 'completed', balance_after = $2
		where transaction_id = $1 and status = 'pending'
	`

	sqlMarkTransactionStatus = `
		update credit_transactions
		set status = $3
		where transaction_id = $1 and status = $2
	`

	sqlCountTransaction = `
		select count(*) from credit_transactions where transaction_id = $1
	`

	sqlSelectTotals = `
		select
			coalesce(sum(amount_credits),0),
			coalesce(sum(case when amount_credits > 0 then amount_credits else 0 end),0),
			coalesce(sum(case when amount_credits < 0 then -amount_credits else 0 end),0)
		from credit_transactions
		where account_id = $1 and status in ('completed','refunded')
	`

	sqlCountAccountTransactions = `
		select count(*) from credit_transactions where account_id = $1
	`

	sqlListTransactions = `
		select
			transaction_id::text,
			account_id::text,
			amount_credits,
			balance_after,
			kind,
			label,
			status,
			external_ref,
			coalesce(metadata::text,'{}'),
			extract(epoch from created_at)::bigint
		from credit_transactions
		where account_id = $1
		order by created_at desc, transaction_id desc
		offset $2 limit $3
	`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{q: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx on an open transaction reuses it.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

// queries holds the data methods shared by the pool and transaction stores.
type queries struct {
	q querier
}

func (store queries) CreateAccount(ctx context.Context, account ledger.Account) error {
	_, err := store.q.Exec(ctx, sqlInsertAccount, account.AccountID.String(), account.BalanceCredits, account.CreatedUnixUTC)
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store queries) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return store.scanAccount(store.q.QueryRow(ctx, sqlSelectAccount, accountID.String()))
}

func (store queries) GetAccountForUpdate(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return store.scanAccount(store.q.QueryRow(ctx, sqlSelectAccountForUpdate, accountID.String()))
}

func (store queries) scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		accountIDValue string
		balanceValue   int64
		createdValue   int64
	)
	if err := row.Scan(&accountIDValue, &balanceValue, &createdValue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
		}
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	accountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{
		AccountID:      accountID,
		BalanceCredits: balanceValue,
		CreatedUnixUTC: createdValue,
	}, nil
}

func (store queries) UpdateAccountBalance(ctx context.Context, accountID ledger.AccountID, balanceCredits int64) error {
	tag, err := store.q.Exec(ctx, sqlUpdateAccountBalance, accountID.String(), balanceCredits)
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store queries) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	var insertedID string
	err := store.q.QueryRow(ctx, sqlInsertTransaction,
		transaction.TransactionID.String(),
		transaction.AccountID.String(),
		transaction.Amount.Int64(),
		transaction.BalanceAfter,
		transaction.Kind.String(),
		transaction.Label.String(),
		transaction.Status.String(),
		transaction.ExternalRef,
		transaction.Metadata.String(),
		transaction.CreatedUnixUTC,
	).Scan(&insertedID)
	if isUniqueViolation(err) {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrInvalidTransaction)
	}
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	transactionID, err := ledger.NewTransactionID(insertedID)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	transaction.TransactionID = transactionID
	return transaction, nil
}

func (store queries) GetTransaction(ctx context.Context, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	row := store.q.QueryRow(ctx, sqlSelectTransaction, transactionID.String())
	transaction, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, ledger.ErrTransactionNotFound)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return transaction, nil
}

func (store queries) MarkTransactionCompleted(ctx context.Context, transactionID ledger.TransactionID, balanceAfter int64) error {
	tag, err := store.q.Exec(ctx, sqlMarkTransactionCompleted, transactionID.String(), balanceAfter)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return store.classifyMissedUpdate(ctx, transactionID)
	}
	return nil
}

func (store queries) MarkTransactionStatus(ctx context.Context, transactionID ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	tag, err := store.q.Exec(ctx, sqlMarkTransactionStatus, transactionID.String(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return store.classifyMissedUpdate(ctx, transactionID)
	}
	return nil
}

func (store queries) classifyMissedUpdate(ctx context.Context, transactionID ledger.TransactionID) error {
	var count int64
	if err := store.q.QueryRow(ctx, sqlCountTransaction, transactionID.String()).Scan(&count); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, ledger.ErrTransactionNotFound)
	}
	return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, ledger.ErrInvalidTransition)
}

func (store queries) TransactionTotals(ctx context.Context, accountID ledger.AccountID) (ledger.Totals, error) {
	var totals ledger.Totals
	err := store.q.QueryRow(ctx, sqlSelectTotals, accountID.String()).
		Scan(&totals.CompletedSum, &totals.Earned, &totals.Spent)
	if err != nil {
		return ledger.Totals{}, wrapStoreError(errorSubjectTransaction, errorCodeSum, err)
	}
	err = store.q.QueryRow(ctx, sqlCountAccountTransactions, accountID.String()).
		Scan(&totals.TransactionCount)
	if err != nil {
		return ledger.Totals{}, wrapStoreError(errorSubjectTransaction, errorCodeSum, err)
	}
	return totals, nil
}

func (store queries) ListTransactions(ctx context.Context, accountID ledger.AccountID, offset int, limit int) ([]ledger.Transaction, error) {
	rows, err := store.q.Query(ctx, sqlListTransactions, accountID.String(), offset, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()

	transactions := make([]ledger.Transaction, 0, 32)
	for rows.Next() {
		transaction, scanErr := scanTransaction(rows.Scan)
		if scanErr != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, scanErr)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func scanTransaction(scan func(dest ...any) error) (ledger.Transaction, error) {
	var (
		transactionIDValue string
		accountIDValue     string
		amountValue        int64
		balanceAfterValue  int64
		kindValue          string
		labelValue         string
		statusValue        string
		externalRefValue   string
		metadataValue      string
		createdValue       int64
	)
	if err := scan(
		&transactionIDValue,
		&accountIDValue,
		&amountValue,
		&balanceAfterValue,
		&kindValue,
		&labelValue,
		&statusValue,
		&externalRefValue,
		&metadataValue,
		&createdValue,
	); err != nil {
		return ledger.Transaction{}, err
	}
	transactionID, err := ledger.NewTransactionID(transactionIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	accountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := ledger.NewCreditAmount(amountValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	kind, err := ledger.ParseTransactionKind(kindValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	label, err := ledger.ParseOperationLabel(labelValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	status, err := ledger.ParseTransactionStatus(statusValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	metadata, err := ledger.NewMetadataJSON(metadataValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		TransactionID:  transactionID,
		AccountID:      accountID,
		Amount:         amount,
		BalanceAfter:   balanceAfterValue,
		Kind:           kind,
		Label:          label,
		Status:         status,
		ExternalRef:    externalRefValue,
		Metadata:       metadata,
		CreatedUnixUTC: createdValue,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

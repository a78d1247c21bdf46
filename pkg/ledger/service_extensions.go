package ledger

import "context"

// GetBalance returns the account's balance view. The cached balance is
// checked against the sum of completed transactions; on disagreement the
// cache is wrong and gets rebuilt from transaction history before returning.
func (service *Service) GetBalance(ctx context.Context, accountID AccountID) (Balance, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	totals, err := service.store.TransactionTotals(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	current := account.BalanceCredits
	if totals.CompletedSum != current {
		rebuilt, reconcileErr := service.Reconcile(ctx, accountID)
		if reconcileErr != nil {
			return Balance{}, reconcileErr
		}
		current = rebuilt
	}
	return Balance{
		CurrentCredits:   current,
		TotalEarned:      totals.Earned,
		TotalSpent:       totals.Spent,
		TransactionCount: totals.TransactionCount,
	}, nil
}

// Reconcile rebuilds the cached balance from the completed transaction sum
// and returns the authoritative value.
func (service *Service) Reconcile(ctx context.Context, accountID AccountID) (int64, error) {
	var rebuilt int64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		account, err := txStore.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		totals, err := txStore.TransactionTotals(ctx, accountID)
		if err != nil {
			return err
		}
		rebuilt = totals.CompletedSum
		if totals.CompletedSum == account.BalanceCredits {
			return nil
		}
		return txStore.UpdateAccountBalance(ctx, accountID, totals.CompletedSum)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReconcile,
		AccountID: accountID,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return rebuilt, nil
}

// GetTransaction loads a single transaction by id.
func (service *Service) GetTransaction(ctx context.Context, transactionID TransactionID) (Transaction, error) {
	return service.store.GetTransaction(ctx, transactionID)
}

// ListTransactions pages the account's history, most recent first. Offset
// paging over a static set never skips or duplicates an entry; rows created
// after page one was read may shift later pages.
func (service *Service) ListTransactions(ctx context.Context, accountID AccountID, offset int, limit int) ([]Transaction, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if _, err := service.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return service.store.ListTransactions(ctx, accountID, offset, limit)
}

package memstore

import (
	"context"

	"github.com/podcraft/backend/internal/account"
)

// Stats aggregates counts across the in-memory stores for the operator
// dashboard.
type Stats struct {
	accounts *Accounts
	projects *Projects
	ledger   *Ledger
}

// NewStats builds a stats view over the given stores.
func NewStats(accounts *Accounts, projects *Projects, ledgerStore *Ledger) *Stats {
	return &Stats{accounts: accounts, projects: projects, ledger: ledgerStore}
}

func (stats *Stats) CountUsers(ctx context.Context) (int64, error) {
	stats.accounts.mutex.Lock()
	defer stats.accounts.mutex.Unlock()
	return int64(len(stats.accounts.users)), nil
}

func (stats *Stats) CountAdmins(ctx context.Context) (int64, error) {
	stats.accounts.mutex.Lock()
	defer stats.accounts.mutex.Unlock()
	count := int64(0)
	for _, candidate := range stats.accounts.users {
		if candidate.IsAdmin {
			count++
		}
	}
	return count, nil
}

func (stats *Stats) CountProjects(ctx context.Context) (int64, error) {
	stats.projects.mutex.Lock()
	defer stats.projects.mutex.Unlock()
	return int64(len(stats.projects.projects)), nil
}

func (stats *Stats) SumAccountBalances(ctx context.Context) (int64, error) {
	stats.ledger.mutex.Lock()
	defer stats.ledger.mutex.Unlock()
	total := int64(0)
	for _, candidate := range stats.ledger.accounts {
		total += candidate.BalanceCredits
	}
	return total, nil
}

func (stats *Stats) RecentUsers(ctx context.Context, limit int) ([]account.User, error) {
	stats.accounts.mutex.Lock()
	defer stats.accounts.mutex.Unlock()
	order := stats.accounts.userOrder
	recent := make([]account.User, 0, limit)
	for index := len(order) - 1; index >= 0 && len(recent) < limit; index-- {
		recent = append(recent, stats.accounts.users[order[index]])
	}
	return recent, nil
}

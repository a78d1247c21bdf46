// Package admin exposes the operator surface: user management, credit
// grants, and platform stats. Credit adjustments go through the ledger like
// any other transaction, so the audit trail stays complete.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/pkg/ledger"
)

// Domain-level error values returned by the admin service.
var (
	ErrInvalidAdjustment = errors.New("invalid credit adjustment")
	ErrInvalidConfig     = errors.New("invalid admin service config")
)

// recentUserCount is how many of the newest signups the dashboard shows.
const recentUserCount = 5

// StatsStore supplies the platform-wide aggregates.
type StatsStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountAdmins(ctx context.Context) (int64, error)
	CountProjects(ctx context.Context) (int64, error)
	SumAccountBalances(ctx context.Context) (int64, error)
	RecentUsers(ctx context.Context, limit int) ([]account.User, error)
}

// Stats is the operator dashboard summary.
type Stats struct {
	TotalUsers                int64
	TotalAdmins               int64
	TotalProjects             int64
	TotalCreditsInCirculation int64
	RecentUsers               []account.User
}

// UserSummary pairs a user with their current credit balance.
type UserSummary struct {
	User           account.User
	CurrentCredits int64
}

// UserUpdate carries the operator-editable user fields; nil leaves a field
// unchanged.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	IsAdmin   *bool
}

// Service is the operator-facing surface.
type Service struct {
	accounts account.Store
	projects project.Store
	credits  *ledger.Service
	stats    StatsStore
	nowFn    func() int64
}

// NewService wires a Service.
func NewService(accounts account.Store, projects project.Store, credits *ledger.Service, stats StatsStore, now func() int64) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("%w: account store dependency is nil", ErrInvalidConfig)
	}
	if projects == nil {
		return nil, fmt.Errorf("%w: project store dependency is nil", ErrInvalidConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidConfig)
	}
	if stats == nil {
		return nil, fmt.Errorf("%w: stats store dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	return &Service{accounts: accounts, projects: projects, credits: credits, stats: stats, nowFn: now}, nil
}

// ListUsers pages through users with their balances. A user without a credit
// account reads as zero.
func (service *Service) ListUsers(ctx context.Context, offset int, limit int) ([]UserSummary, error) {
	if offset < 0 {
		offset = 0
	}
	users, err := service.accounts.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summary := UserSummary{User: user}
		accountID, idErr := ledger.NewAccountID(user.UserID)
		if idErr == nil {
			if balance, balanceErr := service.credits.GetBalance(ctx, accountID); balanceErr == nil {
				summary.CurrentCredits = balance.CurrentCredits
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GrantCredits adds a bonus to the user's account with an auditable reason.
func (service *Service) GrantCredits(ctx context.Context, grantedBy string, userID string, creditCount int64, reason string) (ledger.Transaction, error) {
	if creditCount <= 0 {
		return ledger.Transaction{}, fmt.Errorf("%w: grant must be positive", ErrInvalidAdjustment)
	}
	if _, err := service.accounts.GetUserByID(ctx, userID); err != nil {
		return ledger.Transaction{}, err
	}
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := ledger.NewCreditAmount(creditCount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	metadata, err := adjustmentMetadata(grantedBy, reason)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return service.credits.RecordTransaction(ctx, accountID, amount, ledger.KindBonus, ledger.LabelNone, ledger.StatusCompleted, "", metadata)
}

// SetBalance moves the user's balance to target by recording the delta as a
// bonus or a debit. The ledger stays append-only: overrides are ordinary
// transactions, not edits.
func (service *Service) SetBalance(ctx context.Context, adjustedBy string, userID string, target int64) (ledger.Transaction, error) {
	if target < 0 {
		return ledger.Transaction{}, fmt.Errorf("%w: target balance must not be negative", ErrInvalidAdjustment)
	}
	if _, err := service.accounts.GetUserByID(ctx, userID); err != nil {
		return ledger.Transaction{}, err
	}
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	balance, err := service.credits.GetBalance(ctx, accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	delta := target - balance.CurrentCredits
	if delta == 0 {
		return ledger.Transaction{}, fmt.Errorf("%w: balance is already %d", ErrInvalidAdjustment, target)
	}
	metadata, err := adjustmentMetadata(adjustedBy, "balance_override")
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := ledger.NewCreditAmount(delta)
	if err != nil {
		return ledger.Transaction{}, err
	}
	kind := ledger.KindBonus
	if delta < 0 {
		kind = ledger.KindUsage
	}
	return service.credits.RecordTransaction(ctx, accountID, amount, kind, ledger.LabelNone, ledger.StatusCompleted, "", metadata)
}

// UpdateUser applies operator edits to a user record.
func (service *Service) UpdateUser(ctx context.Context, userID string, update UserUpdate) (account.User, error) {
	user, err := service.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return account.User{}, err
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.IsAdmin != nil {
		user.IsAdmin = *update.IsAdmin
	}
	if err := service.accounts.UpdateUser(ctx, user); err != nil {
		return account.User{}, err
	}
	return user, nil
}

// DeleteUser removes the user, their sessions, and their projects. The credit
// account and its transactions stay: ledger rows are never deleted.
func (service *Service) DeleteUser(ctx context.Context, userID string) error {
	if _, err := service.accounts.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := service.accounts.RevokeUserAccessTokens(ctx, userID, service.nowFn()); err != nil {
		return err
	}
	if err := service.projects.DeleteProjectsByOwner(ctx, userID); err != nil {
		return err
	}
	return service.accounts.DeleteUser(ctx, userID)
}

// PlatformStats returns the operator dashboard aggregates.
func (service *Service) PlatformStats(ctx context.Context) (Stats, error) {
	users, err := service.stats.CountUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	admins, err := service.stats.CountAdmins(ctx)
	if err != nil {
		return Stats{}, err
	}
	projects, err := service.stats.CountProjects(ctx)
	if err != nil {
		return Stats{}, err
	}
	circulating, err := service.stats.SumAccountBalances(ctx)
	if err != nil {
		return Stats{}, err
	}
	recent, err := service.stats.RecentUsers(ctx, recentUserCount)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalUsers:                users,
		TotalAdmins:               admins,
		TotalProjects:             projects,
		TotalCreditsInCirculation: circulating,
		RecentUsers:               recent,
	}, nil
}

func adjustmentMetadata(actor string, reason string) (ledger.MetadataJSON, error) {
	return ledger.NewMetadataJSON(fmt.Sprintf(`{"adjusted_by":%q,"reason":%q}`, actor, reason))
}

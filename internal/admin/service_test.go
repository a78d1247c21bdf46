package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/admin"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/internal/store/memstore"
	"github.com/podcraft/backend/pkg/ledger"
)

type fixture struct {
	admin    *admin.Service
	accounts *memstore.Accounts
	projects *memstore.Projects
	credits  *ledger.Service
}

func newFixture(test *testing.T) *fixture {
	test.Helper()
	tick := int64(0)
	now := func() int64 {
		tick++
		return tick
	}
	accounts := memstore.NewAccounts()
	projects := memstore.NewProjects()
	ledgerStore := memstore.NewLedger()
	credits, err := ledger.NewService(ledgerStore, now)
	if err != nil {
		test.Fatalf("new ledger service: %v", err)
	}
	service, err := admin.NewService(accounts, projects, credits, memstore.NewStats(accounts, projects, ledgerStore), now)
	if err != nil {
		test.Fatalf("new admin service: %v", err)
	}
	return &fixture{admin: service, accounts: accounts, projects: projects, credits: credits}
}

func (f *fixture) addUser(test *testing.T, userID string, email string, startingCredits int64) {
	test.Helper()
	if err := f.accounts.CreateUser(context.Background(), account.User{UserID: userID, Email: email}); err != nil {
		test.Fatalf("create user %s: %v", userID, err)
	}
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	metadata, err := ledger.NewMetadataJSON("")
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	if _, err := f.credits.OpenAccount(context.Background(), accountID, startingCredits, metadata); err != nil {
		test.Fatalf("open account: %v", err)
	}
}

func (f *fixture) balanceOf(test *testing.T, userID string) int64 {
	test.Helper()
	accountID, err := ledger.NewAccountID(userID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	balance, err := f.credits.GetBalance(context.Background(), accountID)
	if err != nil {
		test.Fatalf("get balance: %v", err)
	}
	return balance.CurrentCredits
}

func TestListUsersIncludesBalances(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 100)
	f.addUser(test, "user-b", "b@example.com", 25)

	summaries, err := f.admin.ListUsers(context.Background(), 0, 10)
	if err != nil {
		test.Fatalf("list users: %v", err)
	}
	if len(summaries) != 2 {
		test.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].CurrentCredits != 100 || summaries[1].CurrentCredits != 25 {
		test.Fatalf("unexpected balances: %d, %d", summaries[0].CurrentCredits, summaries[1].CurrentCredits)
	}
}

func TestGrantCreditsAddsAuditedBonus(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 100)

	granted, err := f.admin.GrantCredits(context.Background(), "root-admin", "user-a", 50, "support goodwill")
	if err != nil {
		test.Fatalf("grant credits: %v", err)
	}
	if granted.Kind != ledger.KindBonus || granted.Amount.Int64() != 50 {
		test.Fatalf("unexpected grant transaction: %+v", granted)
	}
	if balance := f.balanceOf(test, "user-a"); balance != 150 {
		test.Fatalf("expected balance 150, got %d", balance)
	}

	if _, err := f.admin.GrantCredits(context.Background(), "root-admin", "user-a", 0, "noop"); !errors.Is(err, admin.ErrInvalidAdjustment) {
		test.Fatalf("expected ErrInvalidAdjustment for zero grant, got %v", err)
	}
	if _, err := f.admin.GrantCredits(context.Background(), "root-admin", "ghost", 10, "missing"); !errors.Is(err, account.ErrUserNotFound) {
		test.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetBalanceRecordsDeltaTransaction(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 100)

	raised, err := f.admin.SetBalance(context.Background(), "root-admin", "user-a", 130)
	if err != nil {
		test.Fatalf("raise balance: %v", err)
	}
	if raised.Kind != ledger.KindBonus || raised.Amount.Int64() != 30 {
		test.Fatalf("unexpected raise transaction: %+v", raised)
	}

	lowered, err := f.admin.SetBalance(context.Background(), "root-admin", "user-a", 40)
	if err != nil {
		test.Fatalf("lower balance: %v", err)
	}
	if lowered.Kind != ledger.KindUsage || lowered.Amount.Int64() != -90 {
		test.Fatalf("unexpected lower transaction: %+v", lowered)
	}
	if balance := f.balanceOf(test, "user-a"); balance != 40 {
		test.Fatalf("expected balance 40, got %d", balance)
	}

	if _, err := f.admin.SetBalance(context.Background(), "root-admin", "user-a", -1); !errors.Is(err, admin.ErrInvalidAdjustment) {
		test.Fatalf("expected ErrInvalidAdjustment for negative target, got %v", err)
	}
	if _, err := f.admin.SetBalance(context.Background(), "root-admin", "user-a", 40); !errors.Is(err, admin.ErrInvalidAdjustment) {
		test.Fatalf("expected ErrInvalidAdjustment for no-op target, got %v", err)
	}
}

func TestUpdateUserTogglesAdminFlag(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 0)

	makeAdmin := true
	updated, err := f.admin.UpdateUser(context.Background(), "user-a", admin.UserUpdate{IsAdmin: &makeAdmin})
	if err != nil {
		test.Fatalf("update user: %v", err)
	}
	if !updated.IsAdmin {
		test.Fatalf("expected admin flag set")
	}
}

func TestDeleteUserKeepsLedgerHistory(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 100)
	if err := f.projects.CreateProject(context.Background(), project.Project{ProjectID: "proj-1", OwnerID: "user-a", Title: "Orphan"}); err != nil {
		test.Fatalf("create project: %v", err)
	}

	if err := f.admin.DeleteUser(context.Background(), "user-a"); err != nil {
		test.Fatalf("delete user: %v", err)
	}
	if _, err := f.accounts.GetUserByID(context.Background(), "user-a"); !errors.Is(err, account.ErrUserNotFound) {
		test.Fatalf("expected user gone, got %v", err)
	}
	if count, err := f.projects.CountProjectsByOwner(context.Background(), "user-a"); err != nil || count != 0 {
		test.Fatalf("expected projects gone, count %d err %v", count, err)
	}
	// The credit account and its rows survive the user deletion.
	if balance := f.balanceOf(test, "user-a"); balance != 100 {
		test.Fatalf("expected ledger history retained, got balance %d", balance)
	}
}

func TestPlatformStats(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.addUser(test, "user-a", "a@example.com", 100)
	f.addUser(test, "user-b", "b@example.com", 50)
	makeAdmin := true
	if _, err := f.admin.UpdateUser(context.Background(), "user-a", admin.UserUpdate{IsAdmin: &makeAdmin}); err != nil {
		test.Fatalf("promote user: %v", err)
	}
	if err := f.projects.CreateProject(context.Background(), project.Project{ProjectID: "proj-1", OwnerID: "user-a", Title: "Solo"}); err != nil {
		test.Fatalf("create project: %v", err)
	}

	stats, err := f.admin.PlatformStats(context.Background())
	if err != nil {
		test.Fatalf("platform stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.TotalAdmins != 1 || stats.TotalProjects != 1 || stats.TotalCreditsInCirculation != 150 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.RecentUsers) != 2 || stats.RecentUsers[0].UserID != "user-b" {
		test.Fatalf("expected newest user first in recent list, got %+v", stats.RecentUsers)
	}
}

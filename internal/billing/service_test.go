package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/podcraft/backend/internal/billing"
	"github.com/podcraft/backend/internal/store/memstore"
	"github.com/podcraft/backend/pkg/ledger"
)

const testUserID = "buyer-1"

func newBillingService(test *testing.T, startingCredits int64) (*billing.Service, *ledger.Service) {
	test.Helper()
	tick := int64(0)
	credits, err := ledger.NewService(memstore.NewLedger(), func() int64 {
		tick++
		return tick
	})
	if err != nil {
		test.Fatalf("new ledger service: %v", err)
	}
	accountID, err := ledger.NewAccountID(testUserID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	metadata, err := ledger.NewMetadataJSON("")
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	if _, err := credits.OpenAccount(context.Background(), accountID, startingCredits, metadata); err != nil {
		test.Fatalf("open account: %v", err)
	}
	service, err := billing.NewService(credits, billing.Config{})
	if err != nil {
		test.Fatalf("new billing service: %v", err)
	}
	return service, credits
}

func balanceOf(test *testing.T, credits *ledger.Service) int64 {
	test.Helper()
	accountID, err := ledger.NewAccountID(testUserID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	balance, err := credits.GetBalance(context.Background(), accountID)
	if err != nil {
		test.Fatalf("get balance: %v", err)
	}
	return balance.CurrentCredits
}

func TestQuotePricesAtTwoCentsPerCredit(test *testing.T) {
	test.Parallel()
	service, _ := newBillingService(test, 0)

	priceCents, err := service.Quote(500)
	if err != nil {
		test.Fatalf("quote: %v", err)
	}
	if priceCents != 1000 {
		test.Fatalf("expected 1000 cents, got %d", priceCents)
	}
	if _, err := service.Quote(0); !errors.Is(err, billing.ErrInvalidPurchase) {
		test.Fatalf("expected ErrInvalidPurchase for zero credits, got %v", err)
	}
}

func TestPurchaseCreditsBalanceOnlyOnConfirm(test *testing.T) {
	test.Parallel()
	service, credits := newBillingService(test, 100)

	opened, err := service.StartPurchase(context.Background(), testUserID, 500)
	if err != nil {
		test.Fatalf("start purchase: %v", err)
	}
	if opened.Status != ledger.StatusPending || opened.PaymentRef == "" {
		test.Fatalf("expected pending purchase with payment ref, got %+v", opened)
	}
	if opened.PriceCents != 1000 {
		test.Fatalf("expected price 1000 cents, got %d", opened.PriceCents)
	}
	if balance := balanceOf(test, credits); balance != 100 {
		test.Fatalf("expected pending purchase to leave balance at 100, got %d", balance)
	}

	confirmed, err := service.ConfirmPurchase(context.Background(), testUserID, opened.TransactionID)
	if err != nil {
		test.Fatalf("confirm purchase: %v", err)
	}
	if confirmed.Status != ledger.StatusCompleted || confirmed.Credits != 500 {
		test.Fatalf("unexpected confirmed purchase: %+v", confirmed)
	}
	if balance := balanceOf(test, credits); balance != 600 {
		test.Fatalf("expected balance 600 after confirmation, got %d", balance)
	}
}

func TestCancelledPurchaseNeverCredits(test *testing.T) {
	test.Parallel()
	service, credits := newBillingService(test, 100)

	opened, err := service.StartPurchase(context.Background(), testUserID, 500)
	if err != nil {
		test.Fatalf("start purchase: %v", err)
	}
	if err := service.CancelPurchase(context.Background(), testUserID, opened.TransactionID); err != nil {
		test.Fatalf("cancel purchase: %v", err)
	}
	if balance := balanceOf(test, credits); balance != 100 {
		test.Fatalf("expected balance 100 after cancel, got %d", balance)
	}
	if _, err := service.ConfirmPurchase(context.Background(), testUserID, opened.TransactionID); !errors.Is(err, ledger.ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition confirming a cancelled purchase, got %v", err)
	}
}

func TestPurchaseOwnershipIsEnforced(test *testing.T) {
	test.Parallel()
	service, _ := newBillingService(test, 100)

	opened, err := service.StartPurchase(context.Background(), testUserID, 500)
	if err != nil {
		test.Fatalf("start purchase: %v", err)
	}
	if _, err := service.ConfirmPurchase(context.Background(), "someone-else", opened.TransactionID); !errors.Is(err, billing.ErrPurchaseNotFound) {
		test.Fatalf("expected ErrPurchaseNotFound for foreign user, got %v", err)
	}
	if err := service.CancelPurchase(context.Background(), "someone-else", opened.TransactionID); !errors.Is(err, billing.ErrPurchaseNotFound) {
		test.Fatalf("expected ErrPurchaseNotFound for foreign user, got %v", err)
	}
}

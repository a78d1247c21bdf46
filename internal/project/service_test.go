package project_test

import (
	"context"
	"errors"
	"testing"

	"github.com/podcraft/backend/internal/generation"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/internal/store/memstore"
	"github.com/podcraft/backend/pkg/ledger"
)

const testOwnerID = "owner-1"

type testClock struct {
	now int64
}

func (clock *testClock) Now() int64 {
	clock.now++
	return clock.now
}

type failingSpeech struct{}

func (failingSpeech) Synthesize(ctx context.Context, request generation.SpeechRequest) (generation.Audio, error) {
	return generation.Audio{}, generation.ErrProviderFailure
}

type harness struct {
	service *project.Service
	credits *ledger.Service
	store   *memstore.Projects
	clock   *testClock
}

func newHarness(test *testing.T, startingCredits int64, providers generation.Providers) *harness {
	test.Helper()
	clock := &testClock{}
	credits, err := ledger.NewService(memstore.NewLedger(), clock.Now)
	if err != nil {
		test.Fatalf("new ledger service: %v", err)
	}
	accountID := mustAccountID(test, testOwnerID)
	metadata, err := ledger.NewMetadataJSON("")
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	if _, err := credits.OpenAccount(context.Background(), accountID, startingCredits, metadata); err != nil {
		test.Fatalf("open account: %v", err)
	}

	store := memstore.NewProjects()
	service, err := project.NewService(store, credits, providers, project.Config{}, clock.Now)
	if err != nil {
		test.Fatalf("new project service: %v", err)
	}
	return &harness{service: service, credits: credits, store: store, clock: clock}
}

func stubProviders() generation.Providers {
	stub := generation.NewStubProvider("")
	return generation.Providers{Script: stub, Speech: stub, Image: stub, Video: stub}
}

func mustAccountID(test *testing.T, raw string) ledger.AccountID {
	test.Helper()
	accountID, err := ledger.NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id %q: %v", raw, err)
	}
	return accountID
}

func mustCreate(test *testing.T, service *project.Service, title string) project.Project {
	test.Helper()
	created, err := service.Create(context.Background(), testOwnerID, project.Draft{Title: title, Description: "deep sea life", Voice: "morgan"})
	if err != nil {
		test.Fatalf("create project %q: %v", title, err)
	}
	return created
}

func mustBalance(test *testing.T, credits *ledger.Service) int64 {
	test.Helper()
	balance, err := credits.GetBalance(context.Background(), mustAccountID(test, testOwnerID))
	if err != nil {
		test.Fatalf("get balance: %v", err)
	}
	return balance.CurrentCredits
}

func TestCreateListsNewestFirst(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())

	first := mustCreate(test, fixture.service, "Episode One")
	second := mustCreate(test, fixture.service, "Episode Two")

	listed, err := fixture.service.List(context.Background(), testOwnerID, 0, 0)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		test.Fatalf("expected 2 projects, got %d", len(listed))
	}
	if listed[0].ProjectID != second.ProjectID || listed[1].ProjectID != first.ProjectID {
		test.Fatalf("expected newest first, got %s then %s", listed[0].Title, listed[1].Title)
	}
	if listed[0].Status != project.StatusDraft {
		test.Fatalf("expected draft status, got %s", listed[0].Status)
	}
}

func TestCreateEnforcesOwnerCap(test *testing.T) {
	test.Parallel()
	clock := &testClock{}
	credits, err := ledger.NewService(memstore.NewLedger(), clock.Now)
	if err != nil {
		test.Fatalf("new ledger service: %v", err)
	}
	service, err := project.NewService(memstore.NewProjects(), credits, stubProviders(), project.Config{MaxProjectsPerOwner: 2}, clock.Now)
	if err != nil {
		test.Fatalf("new project service: %v", err)
	}

	for _, title := range []string{"One", "Two"} {
		if _, err := service.Create(context.Background(), testOwnerID, project.Draft{Title: title}); err != nil {
			test.Fatalf("create %q: %v", title, err)
		}
	}
	if _, err := service.Create(context.Background(), testOwnerID, project.Draft{Title: "Three"}); !errors.Is(err, project.ErrProjectLimit) {
		test.Fatalf("expected ErrProjectLimit, got %v", err)
	}
}

func TestGetHidesOtherOwnersProjects(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "Secret Episode")

	if _, err := fixture.service.Get(context.Background(), "intruder", created.ProjectID); !errors.Is(err, project.ErrProjectNotFound) {
		test.Fatalf("expected ErrProjectNotFound for foreign owner, got %v", err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "Working Title")

	finalTitle := "Final Title"
	updated, err := fixture.service.Update(context.Background(), testOwnerID, created.ProjectID, project.DraftUpdate{Title: &finalTitle})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if updated.Title != finalTitle {
		test.Fatalf("expected title %q, got %q", finalTitle, updated.Title)
	}
	if updated.Description != created.Description {
		test.Fatalf("expected description unchanged, got %q", updated.Description)
	}
}

func TestDeleteRemovesProject(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "Disposable")

	if err := fixture.service.Delete(context.Background(), testOwnerID, created.ProjectID); err != nil {
		test.Fatalf("delete: %v", err)
	}
	if _, err := fixture.service.Get(context.Background(), testOwnerID, created.ProjectID); !errors.Is(err, project.ErrProjectNotFound) {
		test.Fatalf("expected ErrProjectNotFound after delete, got %v", err)
	}
}

func TestGenerateAudioOnlyPipeline(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "Ocean Sounds")

	generated, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{})
	if err != nil {
		test.Fatalf("generate: %v", err)
	}
	if generated.Status != project.StatusCompleted {
		test.Fatalf("expected completed, got %s", generated.Status)
	}
	if generated.ScriptText == "" || generated.AudioURL == "" {
		test.Fatalf("expected script and audio, got %+v", generated)
	}
	if generated.ImageURL != "" || generated.VideoURL != "" {
		test.Fatalf("expected no optional assets, got %+v", generated)
	}
	// platform fee + script + narration at 3 credits each.
	if generated.TotalCreditsUsed != 9 {
		test.Fatalf("expected 9 credits used, got %d", generated.TotalCreditsUsed)
	}
	if balance := mustBalance(test, fixture.credits); balance != 91 {
		test.Fatalf("expected balance 91, got %d", balance)
	}
}

func TestGenerateFullPipelineIncludesImageAndVideo(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "Ocean Sights")

	generated, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{WithImage: true, WithVideo: true})
	if err != nil {
		test.Fatalf("generate: %v", err)
	}
	if generated.ImageURL == "" || generated.VideoURL == "" {
		test.Fatalf("expected image and video assets, got %+v", generated)
	}
	if generated.TotalCreditsUsed != 15 {
		test.Fatalf("expected 15 credits used, got %d", generated.TotalCreditsUsed)
	}
	if balance := mustBalance(test, fixture.credits); balance != 85 {
		test.Fatalf("expected balance 85, got %d", balance)
	}
}

func TestGenerateRefundsFailedStepAndMarksFailed(test *testing.T) {
	test.Parallel()
	providers := stubProviders()
	providers.Speech = failingSpeech{}
	fixture := newHarness(test, 100, providers)
	created := mustCreate(test, fixture.service, "Doomed Episode")

	_, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{})
	if !errors.Is(err, project.ErrGenerationFailed) {
		test.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	failed, err := fixture.service.Get(context.Background(), testOwnerID, created.ProjectID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if failed.Status != project.StatusFailed {
		test.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.LastError == "" {
		test.Fatalf("expected a recorded error")
	}
	// Platform fee and script stay charged; the narration debit is refunded.
	if failed.TotalCreditsUsed != 6 {
		test.Fatalf("expected 6 credits used, got %d", failed.TotalCreditsUsed)
	}
	if balance := mustBalance(test, fixture.credits); balance != 94 {
		test.Fatalf("expected balance 94, got %d", balance)
	}
}

func TestGenerateFailedProjectCanRetry(test *testing.T) {
	test.Parallel()
	providers := stubProviders()
	failing := &togglingSpeech{}
	providers.Speech = failing
	fixture := newHarness(test, 100, providers)
	created := mustCreate(test, fixture.service, "Second Chance")

	if _, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{}); !errors.Is(err, project.ErrGenerationFailed) {
		test.Fatalf("expected first attempt to fail, got %v", err)
	}
	failing.healthy = true
	retried, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{})
	if err != nil {
		test.Fatalf("retry: %v", err)
	}
	if retried.Status != project.StatusCompleted {
		test.Fatalf("expected completed after retry, got %s", retried.Status)
	}
	// First attempt kept 6, the retry adds the full 9.
	if retried.TotalCreditsUsed != 15 {
		test.Fatalf("expected 15 credits used across attempts, got %d", retried.TotalCreditsUsed)
	}
}

type togglingSpeech struct {
	healthy bool
}

func (speech *togglingSpeech) Synthesize(ctx context.Context, request generation.SpeechRequest) (generation.Audio, error) {
	if !speech.healthy {
		return generation.Audio{}, generation.ErrProviderFailure
	}
	return generation.NewStubProvider("").Synthesize(ctx, request)
}

func TestGenerateStopsWhenCreditsRunOut(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 5, stubProviders())
	created := mustCreate(test, fixture.service, "Short On Funds")

	_, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{})
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		test.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	failed, err := fixture.service.Get(context.Background(), testOwnerID, created.ProjectID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if failed.Status != project.StatusFailed {
		test.Fatalf("expected failed status, got %s", failed.Status)
	}
	// The platform fee cleared before the script debit bounced.
	if failed.TotalCreditsUsed != 3 {
		test.Fatalf("expected 3 credits used, got %d", failed.TotalCreditsUsed)
	}
	if balance := mustBalance(test, fixture.credits); balance != 2 {
		test.Fatalf("expected balance 2, got %d", balance)
	}
}

func TestGenerateRejectsCompletedProject(test *testing.T) {
	test.Parallel()
	fixture := newHarness(test, 100, stubProviders())
	created := mustCreate(test, fixture.service, "One And Done")

	if _, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{}); err != nil {
		test.Fatalf("generate: %v", err)
	}
	if _, err := fixture.service.Generate(context.Background(), testOwnerID, created.ProjectID, project.GenerateOptions{}); !errors.Is(err, project.ErrNotGeneratable) {
		test.Fatalf("expected ErrNotGeneratable, got %v", err)
	}
}

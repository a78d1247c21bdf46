package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/podcraft/backend/internal/generation"
	"github.com/podcraft/backend/pkg/ledger"
)

const (
	defaultMaxProjectsPerOwner = 50
	defaultListLimit           = 50
	maxListLimit               = 200
)

// Costs holds the per-step credit prices of the generation pipeline.
type Costs struct {
	Script      int64
	TTS         int64
	Image       int64
	Video       int64
	PlatformFee int64
}

// DefaultCosts returns the standard pricing.
func DefaultCosts() Costs {
	return Costs{Script: 3, TTS: 3, Image: 3, Video: 3, PlatformFee: 3}
}

// Config carries the project service settings.
type Config struct {
	Costs               Costs
	MaxProjectsPerOwner int
}

// Service owns podcast projects and drives the generation pipeline. Every
// pipeline step is charged to the owner's credit account before the step
// runs; a step whose provider fails is refunded.
type Service struct {
	store     Store
	credits   *ledger.Service
	providers generation.Providers
	cfg       Config
	nowFn     func() int64
}

// NewService wires a Service.
func NewService(store Store, credits *ledger.Service, providers generation.Providers, cfg Config, now func() int64) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidConfig)
	}
	if providers.Script == nil || providers.Speech == nil || providers.Image == nil || providers.Video == nil {
		return nil, fmt.Errorf("%w: all providers are required", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	if cfg.MaxProjectsPerOwner <= 0 {
		cfg.MaxProjectsPerOwner = defaultMaxProjectsPerOwner
	}
	if cfg.Costs == (Costs{}) {
		cfg.Costs = DefaultCosts()
	}
	return &Service{store: store, credits: credits, providers: providers, cfg: cfg, nowFn: now}, nil
}

// Create adds a draft project for the owner, subject to the per-owner cap.
func (service *Service) Create(ctx context.Context, ownerID string, draft Draft) (Project, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return Project{}, fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	now := service.nowFn()
	created := Project{
		ProjectID:      uuid.NewString(),
		OwnerID:        ownerID,
		Title:          title,
		Description:    strings.TrimSpace(draft.Description),
		Voice:          strings.TrimSpace(draft.Voice),
		Status:         StatusDraft,
		CreatedUnixUTC: now,
		UpdatedUnixUTC: now,
	}
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		count, err := txStore.CountProjectsByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if count >= int64(service.cfg.MaxProjectsPerOwner) {
			return fmt.Errorf("%w: maximum %d projects", ErrProjectLimit, service.cfg.MaxProjectsPerOwner)
		}
		return txStore.CreateProject(ctx, created)
	})
	if err != nil {
		return Project{}, err
	}
	return created, nil
}

// Get loads one of the owner's projects. A project belonging to someone else
// is indistinguishable from a missing one.
func (service *Service) Get(ctx context.Context, ownerID string, projectID string) (Project, error) {
	loaded, err := service.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if loaded.OwnerID != ownerID {
		return Project{}, ErrProjectNotFound
	}
	return loaded, nil
}

// Update applies the provided draft fields to an owner's project.
func (service *Service) Update(ctx context.Context, ownerID string, projectID string, update DraftUpdate) (Project, error) {
	loaded, err := service.Get(ctx, ownerID, projectID)
	if err != nil {
		return Project{}, err
	}
	if loaded.Status == StatusGenerating {
		return Project{}, ErrProjectGenerating
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return Project{}, fmt.Errorf("%w: title is required", ErrInvalidDraft)
		}
		loaded.Title = title
	}
	if update.Description != nil {
		loaded.Description = strings.TrimSpace(*update.Description)
	}
	if update.Voice != nil {
		loaded.Voice = strings.TrimSpace(*update.Voice)
	}
	loaded.UpdatedUnixUTC = service.nowFn()
	if err := service.store.UpdateProject(ctx, loaded); err != nil {
		return Project{}, err
	}
	return loaded, nil
}

// Delete removes an owner's project. Generation in flight blocks deletion.
func (service *Service) Delete(ctx context.Context, ownerID string, projectID string) error {
	loaded, err := service.Get(ctx, ownerID, projectID)
	if err != nil {
		return err
	}
	if loaded.Status == StatusGenerating {
		return ErrProjectGenerating
	}
	return service.store.DeleteProject(ctx, projectID)
}

// List pages through the owner's projects, newest first.
func (service *Service) List(ctx context.Context, ownerID string, offset int, limit int) ([]Project, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return service.store.ListProjectsByOwner(ctx, ownerID, offset, limit)
}

// Generate runs the pipeline for a draft or previously failed project:
// platform fee, script, narration, then the optional image and video steps.
// Each step debits the owner's credits before the provider runs; a provider
// failure refunds that step's debit and marks the project failed.
func (service *Service) Generate(ctx context.Context, ownerID string, projectID string, options GenerateOptions) (Project, error) {
	current, err := service.Get(ctx, ownerID, projectID)
	if err != nil {
		return Project{}, err
	}
	switch current.Status {
	case StatusDraft, StatusFailed:
	case StatusGenerating:
		return Project{}, ErrProjectGenerating
	default:
		return Project{}, fmt.Errorf("%w: status %s", ErrNotGeneratable, current.Status)
	}

	accountID, err := ledger.NewAccountID(ownerID)
	if err != nil {
		return Project{}, err
	}

	current.Status = StatusGenerating
	current.LastError = ""
	current.UpdatedUnixUTC = service.nowFn()
	if err := service.store.UpdateProject(ctx, current); err != nil {
		return Project{}, err
	}

	generated, spent, pipelineErr := service.runPipeline(ctx, accountID, current, options)
	if pipelineErr != nil {
		current.Status = StatusFailed
		current.LastError = pipelineErr.Error()
		current.TotalCreditsUsed += spent
		current.UpdatedUnixUTC = service.nowFn()
		if updateErr := service.store.UpdateProject(ctx, current); updateErr != nil {
			return Project{}, updateErr
		}
		return Project{}, pipelineErr
	}

	generated.Status = StatusCompleted
	generated.TotalCreditsUsed += spent
	generated.UpdatedUnixUTC = service.nowFn()
	if err := service.store.UpdateProject(ctx, generated); err != nil {
		return Project{}, err
	}
	return generated, nil
}

// runPipeline executes the charged steps and returns the credits that stayed
// spent. Refunded steps do not count toward spent.
func (service *Service) runPipeline(ctx context.Context, accountID ledger.AccountID, current Project, options GenerateOptions) (Project, int64, error) {
	spent := int64(0)

	feeSpent, err := service.chargeStep(ctx, accountID, ledger.LabelPlatformFee, service.cfg.Costs.PlatformFee, nil)
	spent += feeSpent
	if err != nil {
		return current, spent, err
	}

	scriptSpent, err := service.chargeStep(ctx, accountID, ledger.LabelScript, service.cfg.Costs.Script, func() error {
		script, providerErr := service.providers.Script.GenerateScript(ctx, generation.ScriptRequest{
			Title:       current.Title,
			Description: current.Description,
		})
		if providerErr != nil {
			return providerErr
		}
		current.ScriptText = script.Text
		return nil
	})
	spent += scriptSpent
	if err != nil {
		return current, spent, err
	}

	speechSpent, err := service.chargeStep(ctx, accountID, ledger.LabelTTS, service.cfg.Costs.TTS, func() error {
		audio, providerErr := service.providers.Speech.Synthesize(ctx, generation.SpeechRequest{
			ScriptText: current.ScriptText,
			Voice:      current.Voice,
		})
		if providerErr != nil {
			return providerErr
		}
		current.AudioURL = audio.URL
		return nil
	})
	spent += speechSpent
	if err != nil {
		return current, spent, err
	}

	if options.WithImage || options.WithVideo {
		imageSpent, err := service.chargeStep(ctx, accountID, ledger.LabelImage, service.cfg.Costs.Image, func() error {
			image, providerErr := service.providers.Image.GenerateImage(ctx, generation.ImageRequest{
				Title:       current.Title,
				Description: current.Description,
			})
			if providerErr != nil {
				return providerErr
			}
			current.ImageURL = image.URL
			return nil
		})
		spent += imageSpent
		if err != nil {
			return current, spent, err
		}
	}

	if options.WithVideo {
		videoSpent, err := service.chargeStep(ctx, accountID, ledger.LabelVideo, service.cfg.Costs.Video, func() error {
			video, providerErr := service.providers.Video.ComposeVideo(ctx, generation.VideoRequest{
				AudioURL: current.AudioURL,
				ImageURL: current.ImageURL,
			})
			if providerErr != nil {
				return providerErr
			}
			current.VideoURL = video.URL
			return nil
		})
		spent += videoSpent
		if err != nil {
			return current, spent, err
		}
	}

	return current, spent, nil
}

// chargeStep debits the step cost up front, then runs the provider work. A
// provider failure refunds the debit and surfaces ErrGenerationFailed.
func (service *Service) chargeStep(ctx context.Context, accountID ledger.AccountID, label ledger.OperationLabel, cost int64, run func() error) (int64, error) {
	debitCost, err := ledger.NewDebitAmount(cost)
	if err != nil {
		return 0, err
	}
	debit, err := service.credits.DebitForOperation(ctx, accountID, label, debitCost)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return cost, nil
	}
	if runErr := run(); runErr != nil {
		metadata, metaErr := ledger.NewMetadataJSON(`{"reason":"provider_failure"}`)
		if metaErr != nil {
			return cost, metaErr
		}
		if _, refundErr := service.credits.RefundForOperation(ctx, accountID, debit.TransactionID, metadata); refundErr != nil {
			return cost, refundErr
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrGenerationFailed, label, runErr)
	}
	return cost, nil
}

package project

import "context"

// Status is the project lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Project is one podcast episode project owned by a user.
type Project struct {
	ProjectID        string
	OwnerID          string
	Title            string
	Description      string
	Voice            string
	Status           Status
	ScriptText       string
	AudioURL         string
	ImageURL         string
	VideoURL         string
	LastError        string
	TotalCreditsUsed int64
	CreatedUnixUTC   int64
	UpdatedUnixUTC   int64
}

// Draft carries the user-editable fields of a project.
type Draft struct {
	Title       string
	Description string
	Voice       string
}

// DraftUpdate carries optional field updates; nil leaves a field unchanged.
type DraftUpdate struct {
	Title       *string
	Description *string
	Voice       *string
}

// GenerateOptions selects the optional pipeline steps.
type GenerateOptions struct {
	WithImage bool
	WithVideo bool
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, projectID string) (Project, error)
	UpdateProject(ctx context.Context, project Project) error
	DeleteProject(ctx context.Context, projectID string) error
	ListProjectsByOwner(ctx context.Context, ownerID string, offset int, limit int) ([]Project, error)
	CountProjectsByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteProjectsByOwner(ctx context.Context, ownerID string) error
}

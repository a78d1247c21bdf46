package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/podcraft/backend/internal/project"
)

// ProjectStore implements project.Store using GORM.
type ProjectStore struct {
	db *gorm.DB
}

// NewProjectStore returns a ProjectStore backed by gorm.DB.
func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// WithTx executes fn within a database transaction.
func (store *ProjectStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore project.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &ProjectStore{db: transaction})
	})
}

func (store *ProjectStore) CreateProject(ctx context.Context, created project.Project) error {
	model := projectModel(created)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isDuplicateKey(err) {
		return project.ErrInvalidDraft
	}
	return err
}

func (store *ProjectStore) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	var model Project
	err := store.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project.Project{}, project.ErrProjectNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	return mapProject(model), nil
}

func (store *ProjectStore) UpdateProject(ctx context.Context, updated project.Project) error {
	model := projectModel(updated)
	result := store.db.WithContext(ctx).
		Model(&Project{}).
		Where("project_id = ?", updated.ProjectID).
		Updates(map[string]interface{}{
			"title":              model.Title,
			"description":        model.Description,
			"voice":              model.Voice,
			"status":             model.Status,
			"script_text":        model.ScriptText,
			"audio_url":          model.AudioURL,
			"image_url":          model.ImageURL,
			"video_url":          model.VideoURL,
			"last_error":         model.LastError,
			"total_credits_used": model.TotalCreditsUsed,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

func (store *ProjectStore) DeleteProject(ctx context.Context, projectID string) error {
	result := store.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&Project{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

func (store *ProjectStore) ListProjectsByOwner(ctx context.Context, ownerID string, offset int, limit int) ([]project.Project, error) {
	var rows []Project
	err := store.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, project_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, mapProject(row))
	}
	return projects, nil
}

func (store *ProjectStore) CountProjectsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Project{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

func (store *ProjectStore) DeleteProjectsByOwner(ctx context.Context, ownerID string) error {
	return store.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&Project{}).Error
}

func projectModel(source project.Project) Project {
	return Project{
		ProjectID:        source.ProjectID,
		OwnerID:          source.OwnerID,
		Title:            source.Title,
		Description:      source.Description,
		Voice:            source.Voice,
		Status:           string(source.Status),
		ScriptText:       source.ScriptText,
		AudioURL:         source.AudioURL,
		ImageURL:         source.ImageURL,
		VideoURL:         source.VideoURL,
		LastError:        source.LastError,
		TotalCreditsUsed: source.TotalCreditsUsed,
		CreatedAt:        time.Unix(source.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:        time.Unix(source.UpdatedUnixUTC, 0).UTC(),
	}
}

func mapProject(model Project) project.Project {
	return project.Project{
		ProjectID:        model.ProjectID,
		OwnerID:          model.OwnerID,
		Title:            model.Title,
		Description:      model.Description,
		Voice:            model.Voice,
		Status:           project.Status(model.Status),
		ScriptText:       model.ScriptText,
		AudioURL:         model.AudioURL,
		ImageURL:         model.ImageURL,
		VideoURL:         model.VideoURL,
		LastError:        model.LastError,
		TotalCreditsUsed: model.TotalCreditsUsed,
		CreatedUnixUTC:   model.CreatedAt.Unix(),
		UpdatedUnixUTC:   model.UpdatedAt.Unix(),
	}
}

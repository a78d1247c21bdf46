package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/podcraft/backend/internal/project"
)

// Projects is an in-memory project.Store.
type Projects struct {
	mutex    sync.Mutex
	projects map[string]project.Project
	order    []string
}

// NewProjects builds an empty in-memory project store.
func NewProjects() *Projects {
	return &Projects{projects: map[string]project.Project{}}
}

func (store *Projects) WithTx(ctx context.Context, fn func(ctx context.Context, txStore project.Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	saved := cloneMap(store.projects)
	savedOrder := append([]string(nil), store.order...)
	if err := fn(ctx, &projectsTx{store: store}); err != nil {
		store.projects = saved
		store.order = savedOrder
		return err
	}
	return nil
}

func (store *Projects) CreateProject(ctx context.Context, created project.Project) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.createProjectLocked(created)
}

func (store *Projects) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.getProjectLocked(projectID)
}

func (store *Projects) UpdateProject(ctx context.Context, updated project.Project) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.updateProjectLocked(updated)
}

func (store *Projects) DeleteProject(ctx context.Context, projectID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.deleteProjectLocked(projectID)
}

func (store *Projects) ListProjectsByOwner(ctx context.Context, ownerID string, offset int, limit int) ([]project.Project, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.listProjectsByOwnerLocked(ownerID, offset, limit)
}

func (store *Projects) CountProjectsByOwner(ctx context.Context, ownerID string) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.countProjectsByOwnerLocked(ownerID)
}

func (store *Projects) DeleteProjectsByOwner(ctx context.Context, ownerID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.deleteProjectsByOwnerLocked(ownerID)
}

func (store *Projects) createProjectLocked(created project.Project) error {
	if _, exists := store.projects[created.ProjectID]; exists {
		return project.ErrInvalidDraft
	}
	store.projects[created.ProjectID] = created
	store.order = append(store.order, created.ProjectID)
	return nil
}

func (store *Projects) getProjectLocked(projectID string) (project.Project, error) {
	loaded, exists := store.projects[projectID]
	if !exists {
		return project.Project{}, project.ErrProjectNotFound
	}
	return loaded, nil
}

func (store *Projects) updateProjectLocked(updated project.Project) error {
	if _, exists := store.projects[updated.ProjectID]; !exists {
		return project.ErrProjectNotFound
	}
	store.projects[updated.ProjectID] = updated
	return nil
}

func (store *Projects) deleteProjectLocked(projectID string) error {
	if _, exists := store.projects[projectID]; !exists {
		return project.ErrProjectNotFound
	}
	delete(store.projects, projectID)
	for index, id := range store.order {
		if id == projectID {
			store.order = append(store.order[:index], store.order[index+1:]...)
			break
		}
	}
	return nil
}

func (store *Projects) listProjectsByOwnerLocked(ownerID string, offset int, limit int) ([]project.Project, error) {
	matched := make([]project.Project, 0)
	for _, projectID := range store.order {
		candidate := store.projects[projectID]
		if candidate.OwnerID == ownerID {
			matched = append(matched, candidate)
		}
	}
	sort.SliceStable(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if offset >= len(matched) {
		return []project.Project{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (store *Projects) countProjectsByOwnerLocked(ownerID string) (int64, error) {
	count := int64(0)
	for _, candidate := range store.projects {
		if candidate.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (store *Projects) deleteProjectsByOwnerLocked(ownerID string) error {
	remaining := store.order[:0]
	for _, projectID := range store.order {
		if store.projects[projectID].OwnerID == ownerID {
			delete(store.projects, projectID)
			continue
		}
		remaining = append(remaining, projectID)
	}
	store.order = remaining
	return nil
}

// projectsTx is the view handed to WithTx callbacks while the parent mutex is
// held.
type projectsTx struct {
	store *Projects
}

func (tx *projectsTx) WithTx(ctx context.Context, fn func(ctx context.Context, txStore project.Store) error) error {
	return fn(ctx, tx)
}

func (tx *projectsTx) CreateProject(ctx context.Context, created project.Project) error {
	return tx.store.createProjectLocked(created)
}

func (tx *projectsTx) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	return tx.store.getProjectLocked(projectID)
}

func (tx *projectsTx) UpdateProject(ctx context.Context, updated project.Project) error {
	return tx.store.updateProjectLocked(updated)
}

func (tx *projectsTx) DeleteProject(ctx context.Context, projectID string) error {
	return tx.store.deleteProjectLocked(projectID)
}

func (tx *projectsTx) ListProjectsByOwner(ctx context.Context, ownerID string, offset int, limit int) ([]project.Project, error) {
	return tx.store.listProjectsByOwnerLocked(ownerID, offset, limit)
}

func (tx *projectsTx) CountProjectsByOwner(ctx context.Context, ownerID string) (int64, error) {
	return tx.store.countProjectsByOwnerLocked(ownerID)
}

func (tx *projectsTx) DeleteProjectsByOwner(ctx context.Context, ownerID string) error {
	return tx.store.deleteProjectsByOwnerLocked(ownerID)
}

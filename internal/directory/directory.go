// Package directory caches the remote projects owned by the
// authenticated user and tracks which one is selected.
package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Backend is the slice of the gateway the directory needs.
type Backend interface {
	Projects(ctx context.Context) ([]tenderly.Project, error)
}

// SelectionStore persists the selected project id across sessions.
type SelectionStore interface {
	SetSelectedProject(ctx context.Context, id string) error
	SelectedProject(ctx context.Context) (string, error)
}

// Directory holds the project cache and the active selection. The
// backend is the source of truth; the cache is rebuilt wholesale on
// every refresh.
type Directory struct {
	backend Backend
	store   SelectionStore
	logger  *slog.Logger

	mu         sync.RWMutex
	projects   []tenderly.Project
	byID       map[string]tenderly.Project
	selectedID string
	selected   tenderly.ProjectRef
}

// New creates an empty directory.
func New(backend Backend, store SelectionStore, logger *slog.Logger) *Directory {
	return &Directory{
		backend: backend,
		store:   store,
		logger:  logger,
		byID:    make(map[string]tenderly.Project),
	}
}

// Refresh fetches the project list and rebuilds the id index. Both are
// returned together so callers never observe the list without the map.
// On failure the cache is emptied and the error returned; callers
// decide whether that is fatal.
func (d *Directory) Refresh(ctx context.Context) ([]tenderly.Project, map[string]tenderly.Project, error) {
	projects, err := d.backend.Projects(ctx)
	if err != nil {
		d.logger.Error("fetching projects failed", "error", err)
		projects = nil
	}

	byID := make(map[string]tenderly.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	d.mu.Lock()
	d.projects = projects
	d.byID = byID
	d.mu.Unlock()

	return projects, byID, err
}

// Select resolves id against the current cache. An unknown or empty id
// clears the selection to the canonical empty state. The chosen id is
// persisted either way. Returns the resulting project ref and whether
// the id resolved.
func (d *Directory) Select(ctx context.Context, id string) (tenderly.ProjectRef, bool) {
	if err := d.store.SetSelectedProject(ctx, id); err != nil {
		d.logger.Error("persisting project selection failed", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	project, ok := d.byID[id]
	if !ok {
		d.selectedID = ""
		d.selected = tenderly.ProjectRef{}
		return d.selected, false
	}

	d.selectedID = project.ID
	d.selected = tenderly.ProjectRef{
		Username: project.Owner.Username,
		Slug:     project.Slug,
	}
	return d.selected, true
}

// DefaultID decides which project to select at startup: the persisted
// id when it still resolves, otherwise the first project of a
// non-empty list, otherwise empty.
func (d *Directory) DefaultID(persisted string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if persisted != "" {
		if _, ok := d.byID[persisted]; ok {
			return persisted
		}
	}
	if len(d.projects) > 0 {
		return d.projects[0].ID
	}
	return ""
}

// PersistedID loads the previously persisted selection, empty if none.
func (d *Directory) PersistedID(ctx context.Context) string {
	id, err := d.store.SelectedProject(ctx)
	if err != nil {
		d.logger.Error("loading persisted project selection failed", "error", err)
		return ""
	}
	return id
}

// Selected returns the active selection: the project id and ref. Both
// are zero when no project is selected.
func (d *Directory) Selected() (string, tenderly.ProjectRef) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selectedID, d.selected
}

// Projects returns the cached project list.
func (d *Directory) Projects() []tenderly.Project {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]tenderly.Project, len(d.projects))
	copy(out, d.projects)
	return out
}

// Get looks up one cached project by id.
func (d *Directory) Get(id string) (tenderly.Project, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	return p, ok
}

// Clear empties the cache and the selection. Used when the credential
// is replaced or fails validation, so no stale remote state survives.
func (d *Directory) Clear() {
	d.mu.Lock()
	d.projects = nil
	d.byID = make(map[string]tenderly.Project)
	d.selectedID = ""
	d.selected = tenderly.ProjectRef{}
	d.mu.Unlock()
}

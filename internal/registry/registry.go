// Package registry caches the contracts stored under the selected
// project.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Backend is the slice of the gateway the registry needs.
type Backend interface {
	Contracts(ctx context.Context, ref tenderly.ProjectRef) ([]tenderly.Account, error)
	Contract(ctx context.Context, ref tenderly.ProjectRef, networkID, address string) (*tenderly.Account, error)
}

// Errors returned by the registry.
var (
	// ErrStale indicates a refresh completed after the project selection
	// had already moved on; its result was discarded.
	ErrStale = errors.New("stale refresh discarded")
	// ErrNoProject indicates no project is selected.
	ErrNoProject = errors.New("no project selected")
)

// Registry holds the contract cache for the active project. The cache
// is rebuilt wholesale on every refresh; a generation counter ties each
// refresh to the selection it was started under, so a refresh that
// races a project switch cannot clobber the newer project's contracts.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	ref        tenderly.ProjectRef
	accounts   []tenderly.Account
	byID       map[string]tenderly.Account
}

// New creates an empty registry.
func New(backend Backend, logger *slog.Logger) *Registry {
	return &Registry{
		backend: backend,
		logger:  logger,
		byID:    make(map[string]tenderly.Account),
	}
}

// SetProject rescopes the registry to a new project, clearing the
// cache and invalidating any in-flight refresh.
func (r *Registry) SetProject(ref tenderly.ProjectRef) {
	r.mu.Lock()
	r.generation++
	r.ref = ref
	r.accounts = nil
	r.byID = make(map[string]tenderly.Account)
	r.mu.Unlock()
}

// Refresh rebuilds the contract cache for the active project. A fetch
// failure leaves an empty cache and is reported to the caller but is
// not fatal: a project that cannot be listed simply appears to have
// zero contracts. Results for a superseded selection are discarded
// with ErrStale.
func (r *Registry) Refresh(ctx context.Context) ([]tenderly.Account, error) {
	r.mu.Lock()
	gen := r.generation
	ref := r.ref
	r.mu.Unlock()

	if ref.IsZero() {
		return nil, ErrNoProject
	}

	accounts, err := r.backend.Contracts(ctx, ref)
	if err != nil {
		r.logger.Error("fetching project contracts failed", "project", ref.Slug, "error", err)
		accounts = nil
	}

	byID := make(map[string]tenderly.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return nil, ErrStale
	}

	r.accounts = accounts
	r.byID = byID
	return accounts, err
}

// Get looks up one cached contract record by id.
func (r *Registry) Get(id string) (tenderly.Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	return a, ok
}

// Accounts returns the cached contract list.
func (r *Registry) Accounts() []tenderly.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]tenderly.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Fetch retrieves one contract's full record, including source files,
// scoped to the active project. On-demand only, never cached.
func (r *Registry) Fetch(ctx context.Context, networkID, address string) (*tenderly.Account, error) {
	r.mu.Lock()
	ref := r.ref
	r.mu.Unlock()

	if ref.IsZero() {
		return nil, ErrNoProject
	}

	return r.backend.Contract(ctx, ref, networkID, address)
}

// Package plugin coordinates the session, project directory, contract
// registry and workflows behind the bridge API.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tenderops/remixbridge/internal/compile"
	"github.com/tenderops/remixbridge/internal/directory"
	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/internal/importer"
	"github.com/tenderops/remixbridge/internal/registry"
	"github.com/tenderops/remixbridge/internal/session"
	"github.com/tenderops/remixbridge/internal/verify"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Errors surfaced to API handlers.
var (
	ErrInvalidCredential = errors.New("invalid access token")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoProject         = errors.New("no project selected")
)

// Backend is the slice of the API client the coordinator itself calls.
// The session, directory and registry each hold their own narrower view.
type Backend interface {
	Networks(ctx context.Context) ([]tenderly.Network, error)
	Billing(ctx context.Context, ref tenderly.ProjectRef) (*tenderly.Billing, error)
}

// Status is a point-in-time view of the bridge for the status endpoint
// and CLI.
type Status struct {
	Authenticated   bool   `json:"authenticated"`
	Entitled        bool   `json:"entitled"`
	HostConnected   bool   `json:"host_connected"`
	SelectedProject string `json:"selected_project,omitempty"`
}

// Plugin owns the mutable plugin state and serializes the operations
// that rebuild it.
type Plugin struct {
	backend   Backend
	session   *session.Store
	directory *directory.Directory
	registry  *registry.Registry
	snapshot  *compile.Snapshot
	hub       *hostbridge.Hub
	verifier  *verify.Workflow
	importer  *importer.Workflow
	logger    *slog.Logger

	mu sync.Mutex
}

// New wires the coordinator. The verify and import workflows are built
// here so they share the registry and host hub.
func New(
	backend Backend,
	sess *session.Store,
	dir *directory.Directory,
	reg *registry.Registry,
	snap *compile.Snapshot,
	hub *hostbridge.Hub,
	verifier *verify.Workflow,
	imp *importer.Workflow,
	logger *slog.Logger,
) *Plugin {
	return &Plugin{
		backend:   backend,
		session:   sess,
		directory: dir,
		registry:  reg,
		snapshot:  snap,
		hub:       hub,
		verifier:  verifier,
		importer:  imp,
		logger:    logger,
	}
}

// Start restores a persisted credential and, when it still validates,
// rebuilds the project directory and contract registry. A missing or
// stale credential leaves the bridge unauthenticated without error.
func (p *Plugin) Start(ctx context.Context) error {
	found, err := p.session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	if !found {
		return nil
	}
	if !p.session.Validate(ctx) {
		p.logger.Info("persisted credential no longer valid")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bootstrap(ctx)
}

// SetToken installs and persists a new credential, then rebuilds all
// project state. A credential the backend rejects is persisted anyway
// so the user sees the same token on restart, but the bridge stays
// unauthenticated and ErrInvalidCredential is returned.
func (p *Plugin) SetToken(ctx context.Context, token string) error {
	if err := p.session.SetCredential(ctx, token); err != nil {
		return err
	}
	if token == "" || !p.session.Validate(ctx) {
		p.reset()
		if token == "" {
			return nil
		}
		return ErrInvalidCredential
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bootstrap(ctx)
}

// Logout clears the credential and all derived state.
func (p *Plugin) Logout(ctx context.Context) error {
	if err := p.session.SetCredential(ctx, ""); err != nil {
		return err
	}
	p.mu.Lock()
	p.directory.Select(ctx, "")
	p.mu.Unlock()
	p.reset()
	return nil
}

func (p *Plugin) reset() {
	p.mu.Lock()
	p.directory.Clear()
	p.registry.SetProject(tenderly.ProjectRef{})
	p.mu.Unlock()
}

// bootstrap refreshes the directory, resolves the active project and
// rebuilds the registry and entitlement. Callers hold p.mu.
func (p *Plugin) bootstrap(ctx context.Context) error {
	if _, _, err := p.directory.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing projects: %w", err)
	}
	id := p.directory.DefaultID(p.directory.PersistedID(ctx))
	return p.activate(ctx, id)
}

// activate selects the given project and rebuilds everything scoped to
// it. Callers hold p.mu.
func (p *Plugin) activate(ctx context.Context, id string) error {
	ref, _ := p.directory.Select(ctx, id)
	p.registry.SetProject(ref)
	if ref.IsZero() {
		p.session.SetEntitled(false)
		return nil
	}

	if _, err := p.registry.Refresh(ctx); err != nil && !errors.Is(err, registry.ErrStale) {
		p.logger.Error("refreshing contracts failed", "project", ref.Slug, "error", err)
	}
	p.refreshEntitlement(ctx, ref)
	return nil
}

// refreshEntitlement asks billing whether the plan includes private
// contracts. Failures degrade to not entitled.
func (p *Plugin) refreshEntitlement(ctx context.Context, ref tenderly.ProjectRef) {
	billing, err := p.backend.Billing(ctx, ref)
	if err != nil {
		p.logger.Error("fetching billing failed", "project", ref.Slug, "error", err)
		p.session.SetEntitled(false)
		return
	}
	p.session.SetEntitled(billing.Includes.PrivateContracts)
}

// SelectProject switches the active project and rebuilds the contract
// registry for it. An unknown id clears the selection.
func (p *Plugin) SelectProject(ctx context.Context, id string) error {
	if !p.session.Authenticated() {
		return ErrNotAuthenticated
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activate(ctx, id)
}

// RefreshProjects reloads the project list and re-resolves the current
// selection, falling back to the first project if the selected one was
// deleted remotely.
func (p *Plugin) RefreshProjects(ctx context.Context) ([]tenderly.Project, error) {
	if !p.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	list, _, err := p.directory.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing projects: %w", err)
	}
	current, _ := p.directory.Selected()
	if err := p.activate(ctx, p.directory.DefaultID(current)); err != nil {
		return nil, err
	}
	return list, nil
}

// Projects returns the cached project list.
func (p *Plugin) Projects() []tenderly.Project {
	return p.directory.Projects()
}

// Contracts returns the cached contracts of the active project.
func (p *Plugin) Contracts() []tenderly.Account {
	return p.registry.Accounts()
}

// SelectedRef returns the project ref of the active selection, zero
// when no project is selected.
func (p *Plugin) SelectedRef() tenderly.ProjectRef {
	_, ref := p.directory.Selected()
	return ref
}

// Networks lists the chains available for verification.
func (p *Plugin) Networks(ctx context.Context) ([]tenderly.Network, error) {
	if !p.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return p.backend.Networks(ctx)
}

// CompiledContracts returns the contract names of the latest
// compilation pushed by the host.
func (p *Plugin) CompiledContracts() []string {
	return p.snapshot.Names()
}

// Verify runs the verification workflow. With addToProject set the
// contract is also added to the active project after a successful
// verification.
func (p *Plugin) Verify(ctx context.Context, in verify.Input, addToProject bool) (verify.Result, verify.PersistResult, error) {
	if !p.session.Authenticated() {
		return verify.Result{}, verify.PersistResult{}, ErrNotAuthenticated
	}
	if !addToProject {
		return p.verifier.Run(ctx, in), verify.PersistResult{}, nil
	}

	_, ref := p.directory.Selected()
	if ref.IsZero() {
		return verify.Result{}, verify.PersistResult{}, ErrNoProject
	}
	res, persist := p.verifier.RunAndPersist(ctx, in, ref)
	if persist.Succeeded {
		// the project gained a contract, pick it up
		if _, err := p.registry.Refresh(ctx); err != nil && !errors.Is(err, registry.ErrStale) {
			p.logger.Error("refreshing contracts after verify failed", "error", err)
		}
	}
	return res, persist, nil
}

// Import writes a stored contract's sources into the host workspace
// under the active project's namespace.
func (p *Plugin) Import(ctx context.Context, contractID string) error {
	if !p.session.Authenticated() {
		return ErrNotAuthenticated
	}
	_, ref := p.directory.Selected()
	if ref.IsZero() {
		return ErrNoProject
	}
	return p.importer.Import(ctx, contractID, ref.Slug)
}

// Status reports the current bridge state.
func (p *Plugin) Status() Status {
	id, _ := p.directory.Selected()
	return Status{
		Authenticated:   p.session.Authenticated(),
		Entitled:        p.session.Entitled(),
		HostConnected:   p.hub.Connected(),
		SelectedProject: id,
	}
}

package directory

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderops/remixbridge/pkg/tenderly"
)

type mockBackend struct {
	projects []tenderly.Project
	err      error
}

func (m *mockBackend) Projects(ctx context.Context) ([]tenderly.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.projects, nil
}

type mockSelectionStore struct {
	id string
}

func (m *mockSelectionStore) SetSelectedProject(ctx context.Context, id string) error {
	m.id = id
	return nil
}

func (m *mockSelectionStore) SelectedProject(ctx context.Context) (string, error) {
	return m.id, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func project(id, slug, owner string) tenderly.Project {
	return tenderly.Project{
		ID:    id,
		Name:  slug,
		Slug:  slug,
		Owner: tenderly.ProjectOwner{Username: owner},
	}
}

func TestRefresh_BuildsListAndMapTogether(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{
		project("p1", "first", "alice"),
		project("p2", "second", "alice"),
	}}
	d := New(backend, &mockSelectionStore{}, testLogger())

	projects, byID, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Len(t, byID, 2)
	assert.Equal(t, "first", byID["p1"].Slug)
}

func TestRefresh_FailureYieldsEmptyState(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{project("p1", "first", "alice")}}
	d := New(backend, &mockSelectionStore{}, testLogger())

	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	backend.err = errors.New("boom")
	projects, byID, err := d.Refresh(context.Background())
	assert.Error(t, err)
	assert.Empty(t, projects)
	assert.Empty(t, byID)
	assert.Empty(t, d.Projects(), "stale cache does not survive a failed refresh")
}

func TestSelect_KnownID(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{project("p1", "first", "alice")}}
	store := &mockSelectionStore{}
	d := New(backend, store, testLogger())
	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	ref, ok := d.Select(context.Background(), "p1")
	assert.True(t, ok)
	assert.Equal(t, tenderly.ProjectRef{Username: "alice", Slug: "first"}, ref)
	assert.Equal(t, "p1", store.id, "selection persisted")

	id, selected := d.Selected()
	assert.Equal(t, "p1", id)
	assert.Equal(t, ref, selected)
}

func TestSelect_UnknownIDClearsSelection(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{project("p1", "first", "alice")}}
	store := &mockSelectionStore{}
	d := New(backend, store, testLogger())
	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	_, ok := d.Select(context.Background(), "p1")
	require.True(t, ok)

	// Unknown id drops to the canonical empty state regardless of the
	// prior selection.
	ref, ok := d.Select(context.Background(), "does-not-exist")
	assert.False(t, ok)
	assert.True(t, ref.IsZero())

	id, selected := d.Selected()
	assert.Empty(t, id)
	assert.True(t, selected.IsZero())
}

func TestSelect_EmptyIDClearsSelection(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{project("p1", "first", "alice")}}
	d := New(backend, &mockSelectionStore{}, testLogger())
	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	ref, ok := d.Select(context.Background(), "")
	assert.False(t, ok)
	assert.True(t, ref.IsZero())
}

func TestDefaultID(t *testing.T) {
	backend := &mockBackend{projects: []tenderly.Project{
		project("p1", "first", "alice"),
		project("p2", "second", "alice"),
	}}
	d := New(backend, &mockSelectionStore{}, testLogger())
	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	// No persisted id: first project wins.
	assert.Equal(t, "p1", d.DefaultID(""))

	// Persisted id that still resolves is kept.
	assert.Equal(t, "p2", d.DefaultID("p2"))

	// Persisted id that no longer resolves falls back to the first.
	assert.Equal(t, "p1", d.DefaultID("gone"))
}

func TestDefaultID_EmptyDirectory(t *testing.T) {
	d := New(&mockBackend{}, &mockSelectionStore{}, testLogger())
	_, _, err := d.Refresh(context.Background())
	require.NoError(t, err)

	assert.Empty(t, d.DefaultID(""))
	assert.Empty(t, d.DefaultID("p1"))
}

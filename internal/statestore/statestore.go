// Package statestore persists the small amount of durable plugin
// state: the access token and the last selected project id.
package statestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tenderops/remixbridge/internal/config"
)

// State keys.
const (
	keyAccessToken     = "access_token"
	keySelectedProject = "selected_project"
)

// Store is the durable key/value state behind the session and project
// selection. Absent values are returned as empty strings, not errors.
type Store interface {
	SetAccessToken(ctx context.Context, token string) error
	AccessToken(ctx context.Context) (string, error)
	SetSelectedProject(ctx context.Context, id string) error
	SelectedProject(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// New creates a store based on the configured storage type.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

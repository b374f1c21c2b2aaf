// Package session holds the access credential and the flags derived
// from it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Backend is the slice of the gateway the session needs: installing
// the credential and probing whether it is accepted.
type Backend interface {
	SetAccessToken(token string)
	CheckToken(ctx context.Context) (bool, error)
}

// TokenStore persists the credential across restarts.
type TokenStore interface {
	SetAccessToken(ctx context.Context, token string) error
	AccessToken(ctx context.Context) (string, error)
}

// Store owns the credential lifecycle. The token itself is never
// logged.
type Store struct {
	backend Backend
	tokens  TokenStore
	logger  *slog.Logger

	mu            sync.RWMutex
	token         string
	authenticated bool
	entitled      bool
}

// New creates a session store.
func New(backend Backend, tokens TokenStore, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		tokens:  tokens,
		logger:  logger,
	}
}

// Restore loads a previously persisted credential, if any, and
// installs it without validating. Returns whether a credential exists.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("restoring credential: %w", err)
	}
	if token == "" {
		return false, nil
	}

	s.install(token)
	return true, nil
}

// SetCredential persists the token, installs it on the gateway, and
// clears all derived state. Validation is a separate step; derived
// state stays cleared until Validate succeeds.
func (s *Store) SetCredential(ctx context.Context, token string) error {
	if err := s.tokens.SetAccessToken(ctx, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	s.install(token)
	return nil
}

func (s *Store) install(token string) {
	s.backend.SetAccessToken(token)

	s.mu.Lock()
	s.token = token
	s.authenticated = false
	s.entitled = false
	s.mu.Unlock()
}

// Validate probes the backend with the current credential. On success
// the session becomes authenticated; on failure (including transport
// errors) it stays unauthenticated.
func (s *Store) Validate(ctx context.Context) bool {
	ok, err := s.backend.CheckToken(ctx)
	if err != nil {
		s.logger.Error("credential check failed", "error", err)
		ok = false
	}

	s.mu.Lock()
	s.authenticated = ok
	if !ok {
		s.entitled = false
	}
	s.mu.Unlock()

	return ok
}

// Authenticated reports whether the current credential was accepted.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// HasCredential reports whether any token is set, valid or not. Token
// entry does not require validation; only the workflows do.
func (s *Store) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// SetEntitled records the private-contract entitlement for the
// selected project.
func (s *Store) SetEntitled(v bool) {
	s.mu.Lock()
	s.entitled = v
	s.mu.Unlock()
}

// Entitled reports the private-contract entitlement.
func (s *Store) Entitled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entitled
}

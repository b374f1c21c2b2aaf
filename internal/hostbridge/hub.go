package hostbridge

import (
	"context"
	"sync"
)

// Hub holds the currently connected host session, if any. The rest of
// the bridge talks to the hub so workflows do not need to care whether
// an IDE is attached at call time.
type Hub struct {
	mu      sync.RWMutex
	session *Session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Attach makes the given session current, replacing any previous one.
func (h *Hub) Attach(s *Session) {
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
}

// Detach clears the session if it is still the current one.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	if h.session == s {
		h.session = nil
	}
	h.mu.Unlock()
}

// Connected reports whether a host is attached.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session != nil
}

func (h *Hub) current() (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session, h.session != nil
}

// CompilationResult implements CompilerHost against the attached session.
func (h *Hub) CompilationResult(ctx context.Context) (*CompilationResult, error) {
	s, ok := h.current()
	if !ok {
		return nil, ErrNoHost
	}
	return s.CompilationResult(ctx)
}

// WriteFile implements Workspace against the attached session.
func (h *Hub) WriteFile(ctx context.Context, path, content string) error {
	s, ok := h.current()
	if !ok {
		return ErrNoHost
	}
	return s.WriteFile(ctx, path, content)
}

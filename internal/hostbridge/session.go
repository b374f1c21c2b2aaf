package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Frame types exchanged with the host.
const (
	frameCall     = "call"
	frameResponse = "response"
	frameEvent    = "event"
)

// Host method and event names, matching the IDE plugin protocol.
const (
	methodCompilationResult = "getCompilationResult"
	methodSetFile           = "setFile"
	eventCompilationDone    = "compilationFinished"
)

// ErrSessionClosed indicates the host connection went away while a
// call was in flight.
var ErrSessionClosed = errors.New("host session closed")

// frame is one websocket message in either direction.
type frame struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// EventHandler receives compilation-finished notifications.
type EventHandler func(ev CompilationEvent)

// Session is one connected IDE host. It serves calls issued by the
// bridge and dispatches events pushed by the host. A session belongs
// to exactly one websocket connection.
type Session struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	onEvent EventHandler

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame
	closed  bool
}

// NewSession wraps an upgraded websocket connection.
func NewSession(conn *websocket.Conn, onEvent EventHandler, logger *slog.Logger) *Session {
	return &Session{
		conn:    conn,
		logger:  logger,
		onEvent: onEvent,
		pending: make(map[string]chan frame),
	}
}

// Run reads frames until the connection closes, dispatching events and
// resolving pending calls. It always returns a non-nil error.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("reading host frame: %w", err)
		}

		switch f.Type {
		case frameResponse:
			s.resolve(f)
		case frameEvent:
			s.dispatch(f)
		default:
			s.logger.Warn("unexpected host frame", "type", f.Type, "method", f.Method)
		}
	}
}

func (s *Session) resolve(f frame) {
	s.mu.Lock()
	ch, ok := s.pending[f.ID]
	if ok {
		delete(s.pending, f.ID)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("response for unknown call", "id", f.ID)
		return
	}
	ch <- f
}

func (s *Session) dispatch(f frame) {
	if f.Method != eventCompilationDone {
		s.logger.Warn("unknown host event", "method", f.Method)
		return
	}

	var ev CompilationEvent
	if err := json.Unmarshal(f.Params, &ev); err != nil {
		s.logger.Error("decoding compilation event", "error", err)
		return
	}

	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

// close fails every pending call and marks the session dead.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, ch := range s.pending {
		delete(s.pending, id)
		close(ch)
	}
}

// call issues one request to the host and waits for its response.
func (s *Session) call(ctx context.Context, method string, params, result any) error {
	id := uuid.NewString()
	ch := make(chan frame, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.pending[id] = ch
	s.mu.Unlock()

	f := frame{ID: id, Type: frameCall, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		f.Params = raw
	}

	s.writeMu.Lock()
	err := s.conn.WriteJSON(f)
	s.writeMu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return fmt.Errorf("writing %s call: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrSessionClosed
		}
		if resp.Error != "" {
			return fmt.Errorf("host %s failed: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// CompilationResult fetches the host's latest compilation result.
func (s *Session) CompilationResult(ctx context.Context) (*CompilationResult, error) {
	var result CompilationResult
	if err := s.call(ctx, methodCompilationResult, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WriteFile writes one file into the host workspace.
func (s *Session) WriteFile(ctx context.Context, path, content string) error {
	params := map[string]string{
		"path":    path,
		"content": content,
	}
	return s.call(ctx, methodSetFile, params, nil)
}

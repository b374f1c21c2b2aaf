//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tenderops/remixbridge/internal/compile"
	"github.com/tenderops/remixbridge/internal/config"
	"github.com/tenderops/remixbridge/internal/directory"
	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/internal/importer"
	"github.com/tenderops/remixbridge/internal/plugin"
	"github.com/tenderops/remixbridge/internal/registry"
	"github.com/tenderops/remixbridge/internal/server"
	"github.com/tenderops/remixbridge/internal/session"
	"github.com/tenderops/remixbridge/internal/statestore"
	"github.com/tenderops/remixbridge/internal/verify"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

const validToken = "e2e-valid-token"

// fakeTenderly is an in-process stand-in for the remote verification
// API, remembering what the bridge submitted.
type fakeTenderly struct {
	mu            sync.Mutex
	verifications []tenderly.Verification
	added         []map[string]string

	server *httptest.Server
}

func newFakeTenderly(t *testing.T) *fakeTenderly {
	t.Helper()
	f := &fakeTenderly{}

	r := chi.NewRouter()
	r.Use(f.requireToken)

	r.Get("/account/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"user": map[string]string{"username": "alice"}})
	})

	r.Get("/account/me/projects", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"projects": []tenderly.Project{
				{
					ID:   "p1",
					Name: "Alpha",
					Slug: "alpha",
					Owner: tenderly.ProjectOwner{
						ID:       "u1",
						Username: "alice",
						Type:     "user",
					},
				},
			},
		})
	})

	r.Get("/public-networks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []tenderly.Network{
			{ID: "3", Name: "Ropsten"},
			{ID: "d5cffec2-af1e-4d7e-9406-feb235a578de", Name: "Hidden"},
			{ID: "1", Name: "Mainnet"},
		})
	})

	r.Post("/account/me/verify-contracts", func(w http.ResponseWriter, r *http.Request) {
		var v tenderly.Verification
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.verifications = append(f.verifications, v)
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	r.Post("/account/{username}/project/{slug}/address", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.added = append(f.added, body)
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	r.Get("/account/{username}/project/{slug}/contracts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []tenderly.Account{storedAccount(false)})
	})

	r.Get("/account/{username}/project/{slug}/contract/{networkID}/{address}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, storedAccount(true))
	})

	r.Get("/account/{username}/project/{slug}/billing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tenderly.Billing{
			Includes: tenderly.BillingIncludes{PrivateContracts: true},
		})
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTenderly) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Key") != validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeTenderly) Verifications() []tenderly.Verification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tenderly.Verification(nil), f.verifications...)
}

func (f *fakeTenderly) Added() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.added...)
}

// storedAccount is the contract record the fake backend serves. The
// full record (with sources) is only returned from the point lookup.
func storedAccount(full bool) tenderly.Account {
	a := tenderly.Account{
		ID: "c1",
		Contract: tenderly.Contract{
			ID:           "c1",
			NetworkID:    "1",
			Address:      "0xstored",
			ContractName: "Stored",
		},
	}
	if full {
		a.Contract.Data = tenderly.ContractData{
			ContractInfo: []tenderly.ContractInfo{
				{ID: 0, Name: "Stored", Path: "contracts/Stored.sol", Source: "contract Stored {}"},
				{ID: 1, Name: "Base", Path: "contracts\\lib\\Base.sol", Source: "contract Base {}"},
			},
		}
	}
	return a
}

// startBridge wires the full daemon stack against the fake backend and
// serves it over httptest.
func startBridge(t *testing.T, fake *fakeTenderly) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{
		Backend: config.BackendConfig{
			APIURL:       fake.server.URL,
			DashboardURL: "https://dashboard.example.com",
		},
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bridge.db")},
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	store, err := statestore.New(cfg.Storage, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	client := tenderly.New(cfg.Backend.APIURL)

	sess := session.New(client, store, logger)
	dir := directory.New(client, store, logger)
	reg := registry.New(client, logger)
	snap := compile.NewSnapshot()
	hub := hostbridge.NewHub()
	verifier := verify.New(client, hub, logger)
	imp := importer.New(reg, hub, logger)
	p := plugin.New(client, sess, dir, reg, snap, hub, verifier, imp, logger)

	srv := server.New(cfg, p, hub, snap, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// fakeHost connects to the bridge websocket and behaves like the IDE:
// it answers getCompilationResult and setFile and can push
// compilationFinished events.
type fakeHost struct {
	conn *websocket.Conn

	mu     sync.Mutex
	writes []hostWrite
}

type hostWrite struct {
	Path    string
	Content string
}

type wsFrame struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func connectHost(t *testing.T, bridgeURL string) *fakeHost {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(bridgeURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	h := &fakeHost{conn: conn}
	t.Cleanup(func() { conn.Close() })
	go h.serve()
	return h
}

// serve answers bridge calls until the connection closes.
func (h *fakeHost) serve() {
	for {
		var f wsFrame
		if err := h.conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Type != "call" {
			continue
		}

		resp := wsFrame{ID: f.ID, Type: "response"}
		switch f.Method {
		case "getCompilationResult":
			raw, err := json.Marshal(sampleCompilation())
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Result = raw
			}
		case "setFile":
			var params struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(f.Params, &params); err != nil {
				resp.Error = err.Error()
			} else {
				h.mu.Lock()
				h.writes = append(h.writes, hostWrite{Path: params.Path, Content: params.Content})
				h.mu.Unlock()
			}
		default:
			resp.Error = "unknown method " + f.Method
		}

		if err := h.conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (h *fakeHost) pushCompilation(t *testing.T) {
	t.Helper()
	result := sampleCompilation()
	params, err := json.Marshal(hostbridge.CompilationEvent{
		FileName: result.Source.Target,
		Source:   result.Source,
		Data:     result.Data,
	})
	require.NoError(t, err)
	require.NoError(t, h.conn.WriteJSON(wsFrame{
		Type:   "event",
		Method: "compilationFinished",
		Params: params,
	}))
}

func (h *fakeHost) Writes() []hostWrite {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hostWrite(nil), h.writes...)
}

func sampleCompilation() *hostbridge.CompilationResult {
	metadata := `{
		"compiler": {"version": "0.8.19+commit.7dd6d404"},
		"settings": {
			"evmVersion": "istanbul",
			"optimizer": {"enabled": true, "runs": 200}
		}
	}`
	return &hostbridge.CompilationResult{
		Data: hostbridge.CompilationData{
			Contracts: map[string]map[string]hostbridge.CompiledContract{
				"browser/Token.sol": {
					"Token": {Metadata: metadata},
				},
			},
		},
		Source: hostbridge.CompilationSource{
			Target: "browser/Token.sol",
			Sources: map[string]hostbridge.SourceContent{
				"browser/Token.sol": {Content: "pragma solidity ^0.8.19; contract Token {}"},
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tenderops/remixbridge/internal/importer"
	"github.com/tenderops/remixbridge/internal/observability/metrics"
	"github.com/tenderops/remixbridge/internal/plugin"
	"github.com/tenderops/remixbridge/internal/verify"
)

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.plugin.Status())
}

func (s *Server) handleSessionSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required")
		return
	}

	if err := s.plugin.SetToken(r.Context(), req.Token); err != nil {
		if errors.Is(err, plugin.ErrInvalidCredential) {
			writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "the access token was rejected")
			return
		}
		s.logger.Error("setting token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to set token")
		return
	}
	writeJSON(w, http.StatusOK, s.plugin.Status())
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if err := s.plugin.Logout(r.Context()); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		list, err := s.plugin.RefreshProjects(r.Context())
		if err != nil {
			s.writePluginError(w, err, "refreshing projects failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": list})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": s.plugin.Projects()})
}

func (s *Server) handleProjectSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if err := s.plugin.SelectProject(r.Context(), req.ID); err != nil {
		s.writePluginError(w, err, "selecting project failed")
		return
	}
	writeJSON(w, http.StatusOK, s.plugin.Status())
}

type contractEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NetworkID     string `json:"network_id"`
	Address       string `json:"address"`
	DashboardLink string `json:"dashboard_link"`
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	ref := s.plugin.SelectedRef()
	accounts := s.plugin.Contracts()
	entries := make([]contractEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, contractEntry{
			ID:        a.ID,
			Name:      a.Name(),
			NetworkID: a.Contract.NetworkID,
			Address:   a.Contract.Address,
			DashboardLink: verify.ProjectContractURL(s.cfg.Backend.DashboardURL,
				ref.Username, ref.Slug, a.Contract.NetworkID, a.Contract.Address),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": entries})
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := s.plugin.Networks(r.Context())
	if err != nil {
		s.writePluginError(w, err, "listing networks failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": networks})
}

func (s *Server) handleCompiled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"host_connected": s.hub.Connected(),
		"contracts":      s.snapshot.Names(),
	})
}

type verifyResponse struct {
	State          string `json:"state"`
	Cause          string `json:"cause,omitempty"`
	Message        string `json:"message,omitempty"`
	DashboardLink  string `json:"dashboard_link,omitempty"`
	AddedToProject bool   `json:"added_to_project"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NetworkID    string `json:"network_id"`
		Address      string `json:"address"`
		ContractName string `json:"contract_name"`
		AddToProject bool   `json:"add_to_project"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	in := verify.Input{
		NetworkID:    req.NetworkID,
		Address:      req.Address,
		ContractName: req.ContractName,
	}
	res, persist, err := s.plugin.Verify(r.Context(), in, req.AddToProject)
	if err != nil {
		s.writePluginError(w, err, "verification failed")
		return
	}

	metrics.VerificationRequest(string(res.State))

	resp := verifyResponse{
		State:          string(res.State),
		Cause:          string(res.Cause),
		AddedToProject: persist.Succeeded,
	}
	if res.Err != nil {
		resp.Message = res.Err.Error()
	}
	if res.Succeeded() {
		resp.DashboardLink = verify.ContractURL(s.cfg.Backend.DashboardURL, req.NetworkID, req.Address)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContractID string `json:"contract_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.ContractID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "contract_id is required")
		return
	}

	err := s.plugin.Import(r.Context(), req.ContractID)
	switch {
	case err == nil:
		metrics.ContractImport("success")
		writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
	case errors.Is(err, importer.ErrUnknownContract):
		metrics.ContractImport("unknown")
		writeError(w, http.StatusNotFound, "NOT_FOUND", "contract is not in the active project")
	default:
		metrics.ContractImport("error")
		s.writePluginError(w, err, "import failed")
	}
}

// writePluginError maps coordinator errors onto HTTP responses.
func (s *Server) writePluginError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, plugin.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no valid access token")
	case errors.Is(err, plugin.ErrNoProject):
		writeError(w, http.StatusConflict, "NO_PROJECT", "no project selected")
	default:
		s.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", logMsg)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/slurmlongrun/internal/errors"
	"github.com/3leaps/slurmlongrun/pkg/runregistry"
)

// RunSource is the read-only registry view the handlers need.
// *runregistry.Store satisfies it.
type RunSource interface {
	List() ([]runregistry.RunRecord, error)
	Get(runID string) (*runregistry.RunRecord, error)
	Resolve(idOrPrefix string) (string, error)
}

// RunsHandler serves the read-only run registry API.
type RunsHandler struct {
	source RunSource
}

// NewRunsHandler creates a runs handler over the given registry.
func NewRunsHandler(source RunSource) *RunsHandler {
	return &RunsHandler{source: source}
}

// List serves GET /api/v1/runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.source.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if runs == nil {
		runs = []runregistry.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Get serves GET /api/v1/runs/{run_id}. Run id prefixes are accepted.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := h.source.Resolve(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	rec, err := h.source.Get(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apperrors.HTTPErrorResponse{
		Error: apperrors.HTTPErrorDetail{Code: code, Message: msg},
	})
}

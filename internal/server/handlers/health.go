// Package handlers implements the HTTP handlers for the status server.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// Checker reports the health of one dependency.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthManager aggregates named health checkers.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewHealthManager creates a health manager reporting the given version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]Checker),
	}
}

// RegisterChecker adds a named checker. Later registrations with the
// same name replace earlier ones.
func (m *HealthManager) RegisterChecker(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler serves the health endpoint: 200 when every checker
// passes, 503 otherwise.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resp := HealthResponse{
		Status:  "healthy",
		Version: m.version,
		Checks:  make(map[string]string, len(m.checkers)),
	}

	status := http.StatusOK
	for name, c := range m.checkers {
		if err := c.CheckHealth(r.Context()); err != nil {
			resp.Checks[name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

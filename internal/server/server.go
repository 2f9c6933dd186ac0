// Package server implements the read-only status HTTP API over the run
// registry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/3leaps/slurmlongrun/internal/errors"
	"github.com/3leaps/slurmlongrun/internal/server/handlers"
)

// Server is the status HTTP server. It exposes only read endpoints; all
// mutation happens through the CLI.
type Server struct {
	host    string
	port    int
	router  chi.Router
	health  *handlers.HealthManager
	version string
}

// New creates a status server over the given run source.
func New(host string, port int, version string, source handlers.RunSource) *Server {
	s := &Server{
		host:    host,
		port:    port,
		version: version,
		health:  handlers.NewHealthManager(version),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/healthz", s.health.HealthHandler)
	r.Get("/version", s.versionHandler)

	runs := handlers.NewRunsHandler(source)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", runs.List)
		r.Get("/runs/{run_id}", runs.Get)
	})

	s.router = r
	return s
}

// Health returns the server's health manager so callers can register
// checkers.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}

// Handler returns the root HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	writeErrorEnvelope(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	writeErrorEnvelope(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func writeErrorEnvelope(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apperrors.HTTPErrorResponse{
		Error: apperrors.HTTPErrorDetail{Code: code, Message: msg},
	})
}

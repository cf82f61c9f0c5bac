// Package server exposes the small operator HTTP surface: a health probe
// and a manual pipeline trigger.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Trigger starts a pipeline run unless one is already in flight.
type Trigger interface {
	TryRunAsync(ctx context.Context) bool
}

// Server is the admin HTTP server.
type Server struct {
	ledger  ledger.Ledger
	trigger Trigger
	log     logging.Logger
	http    *http.Server
}

// New creates the admin server on the given port.
func New(port int, l ledger.Ledger, trigger Trigger, log logging.Logger) *Server {
	s := &Server{
		ledger:  l,
		trigger: trigger,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/api/trigger-reversal-check", s.handleTrigger)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Admin server listening",
		logging.Field{Key: "addr", Value: s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ledger.Ping(ctx); err != nil {
		s.log.WithError(err).Error("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// The run outlives the request; the single-flight guard in the
	// scheduler drops the trigger when a run is already in flight.
	started := s.trigger.TryRunAsync(context.WithoutCancel(r.Context()))
	if !started {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": "already running",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

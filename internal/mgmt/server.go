// Package mgmt is the billing daemon's HTTP surface.
//
// DESIGN: Everything the outside world does to the daemon goes through here:
//   - POST /api/event:    platform lifecycle events (the call feed)
//   - POST /api/command:  manual billing commands addressed at a call
//   - GET  /healthz:      liveness including a ledger round-trip
//   - GET  /metrics:      Prometheus exposition
//   - GET  /dashboard:    localhost-only HTML view of live billing records
//   - GET  /ws/events:    websocket stream of telemetry events
//
// The server owns the call Registry; the billing engine never sees HTTP.
package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/billing"
	"github.com/voxplane/nibblebill/internal/config"
	"github.com/voxplane/nibblebill/internal/journal"
	"github.com/voxplane/nibblebill/internal/ledger"
	"github.com/voxplane/nibblebill/internal/monitoring"
)

// Server is the management HTTP server.
type Server struct {
	cfg     config.ServerConfig
	engine  *billing.Engine
	calls   *Registry
	store   ledger.Client
	tracker *monitoring.Tracker
	journal *journal.Journal

	httpServer *http.Server
	startedAt  time.Time
}

// New wires the management server. tracker and jrnl may be nil; the
// corresponding surfaces degrade gracefully.
func New(cfg config.ServerConfig, engine *billing.Engine, calls *Registry,
	store ledger.Client, tracker *monitoring.Tracker, jrnl *journal.Journal) *Server {

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		calls:     calls,
		store:     store,
		tracker:   tracker,
		journal:   jrnl,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/api/event", s.handleEvent)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/ws/events", s.handleEventStream)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks on ListenAndServe until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Int("port", s.cfg.Port).Msg("management server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports liveness, including a ledger round-trip. A missing
// probe key is a healthy ledger; only transport errors degrade the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":       "ok",
		"time":         time.Now().Format(time.RFC3339),
		"uptime":       time.Since(s.startedAt).Truncate(time.Second).String(),
		"active_calls": s.calls.len(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.store.Balance(ctx, "_health_"); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		health["status"] = "degraded"
		health["ledger_error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if health["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "billing_error"},
	})
}

// isLoopback reports whether the remote address is a loopback interface.
// Inspection surfaces are restricted to localhost.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

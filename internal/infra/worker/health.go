package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer exposes liveness and readiness endpoints for the sweep
// worker so orchestrators can tell a hung worker from a busy one.
type HealthServer struct {
	server *http.Server
	logger *slog.Logger
	ready  atomic.Bool
}

// NewHealthServer creates a health check server on the given port.
func NewHealthServer(port int, logger *slog.Logger) *HealthServer {
	hs := &HealthServer{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /health/ready", hs.handleReady)

	hs.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return hs
}

// Start runs the health server in a goroutine.
func (hs *HealthServer) Start() {
	go func() {
		hs.logger.Info("worker health server starting", slog.String("addr", hs.server.Addr))
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.logger.Error("worker health server failed", slog.Any("error", err))
		}
	}()
}

// SetReady marks the worker as ready to accept scheduled work.
func (hs *HealthServer) SetReady(ready bool) {
	hs.ready.Store(ready)
}

// Shutdown gracefully stops the health server.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

func (hs *HealthServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (hs *HealthServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !hs.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

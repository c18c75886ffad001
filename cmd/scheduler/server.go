package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates the operational HTTP surface: a liveness endpoint and
// a read-only stats snapshot. There is no user-facing API on this service.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := app.reporter.HealthCheck(r.Context())
		status := http.StatusOK
		if !health.DatabaseOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health, app)
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.reporter.CollectStats(r.Context()), app)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, app *application) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.Error("failed to write response", "error", err)
	}
}

// startOpsServer starts the operational HTTP server and blocks until the
// context is canceled or the server fails. Shutdown is graceful: the HTTP
// listener drains first, then the caller's cleanup stops the job driver,
// which waits out any in-flight tick.
func (app *application) startOpsServer(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.setupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting ops server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown failed: %w", err)
	}

	app.logger.Info("Shutdown completed")
	return nil
}

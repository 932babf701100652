// Package server hosts the HTTP API and the periodic cleanup schedule.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/prospector/internal/app"
)

// Server manages the HTTP server, routes, and the cleanup cron
type Server struct {
	app     *app.App
	router  *http.ServeMux
	server  *http.Server
	cleanup *cron.Cron
}

// New creates a new HTTP server with the given app
func New(application *app.App) *Server {
	s := &Server{app: application}
	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving and schedules the stale-job sweep
func (s *Server) Start() error {
	if err := s.startCleanup(); err != nil {
		return err
	}

	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// startCleanup wires the periodic sweep that fails stale running jobs
func (s *Server) startCleanup() error {
	schedule := s.app.Config.Cleanup.Schedule
	if schedule == "" {
		return nil
	}

	s.cleanup = cron.New()
	_, err := s.cleanup.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-s.app.Config.Cleanup.StaleAfter)
		count, err := s.app.StorageManager.JobStorage().FailStaleJobs(ctx, cutoff, "worker stopped responding")
		if err != nil {
			s.app.Logger.Error().Err(err).Msg("Stale job sweep failed")
			return
		}
		if count > 0 {
			s.app.Logger.Info().Int("count", count).Msg("Stale job sweep finished")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	s.cleanup.Start()
	s.app.Logger.Info().Str("schedule", schedule).Msg("Cleanup schedule armed")
	return nil
}

// Shutdown gracefully stops the server and the cleanup schedule
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")

	if s.cleanup != nil {
		s.cleanup.Stop()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}

// Package server exposes the assembled launch feed over HTTP: JSON list and
// detail endpoints, a server-sent event stream of launch updates, and the
// operational health and metrics surfaces.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/launchfeed/launchfeed/internal/config"
	"log/slog"
)

// Server hosts the consumer-facing HTTP endpoints.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	http   *http.Server
}

// New constructs a Server with sane defaults.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		// The event stream holds its response open indefinitely, so the
		// write timeout stays off and slow handlers rely on request
		// contexts instead.
		WriteTimeout: 0,
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		http:   srv,
	}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown gracefully terminates the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

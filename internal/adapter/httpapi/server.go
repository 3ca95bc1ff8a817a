// Package httpapi provides the HTTP scaffolding shared by every service:
// server lifecycle, JSON rendering, request-id and metrics middleware, and
// the mapping from pipeline error kinds to HTTP statuses.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Server wraps an http.Server with the shared timeouts and lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a server for the given handler. The handler should be a
// mux built with NewMux so it carries the shared middleware and routes.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second, // inference responses can be slow
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

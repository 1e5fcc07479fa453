// Package server exposes the aggregator over HTTP: event ingestion, session control,
// engine commands, state queries and a server-sent event stream of snapshots.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sherine-k/schedtrace/pkg/aggregator"
	"github.com/sherine-k/schedtrace/pkg/command"
	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/logging"
)

// DefaultHeartbeat is the interval between SSE heartbeats.
const DefaultHeartbeat = 15 * time.Second

// maxEventBytes bounds an ingested payload.
const maxEventBytes = 4 << 20

// Server is the schedtrace HTTP API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	loop      *aggregator.Loop
	agg       *aggregator.Aggregator
	bus       *events.Bus
	submitter *command.Submitter
	heartbeat time.Duration
}

// Option configures optional Server settings.
type Option func(*Server)

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates a new Server with all routes registered. The loop must be running for
// session and command routes to answer.
func New(loop *aggregator.Loop, bus *events.Bus, submitter *command.Submitter, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.Component(logger, "server"),
		startTime: time.Now(),
		loop:      loop,
		agg:       loop.Aggregator(),
		bus:       bus,
		submitter: submitter,
		heartbeat: DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.logger.Error("server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Engine events
		r.Post("/events/{channel}", s.handleIngestEvent)

		// Session control
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/start", s.handleStartSession)
			r.Post("/reset", s.handleResetSession)
		})

		// Aggregator state
		r.Get("/state", s.handleGetState)
		r.Get("/timeline", s.handleGetTimeline)
		r.Get("/finished", s.handleGetFinished)
		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", s.handleGetMetrics)
			r.Delete("/comparison", s.handleClearComparison)
		})

		// Engine commands
		r.Route("/commands", func(r chi.Router) {
			r.Post("/run_simulation", s.handleRunSimulation)
			r.Post("/run_with_parameters", s.handleRunWithParameters)
		})

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/state", s.handleSSEState)
		})
	})
}

// respondLoopError maps errors returned by loop operations.
func (s *Server) respondLoopError(w http.ResponseWriter, reqID string, err error) {
	if errors.Is(err, aggregator.ErrLoopStopped) {
		respondError(w, reqID, http.StatusServiceUnavailable, newAPIError(ErrUnavailable, "aggregator is not running"))
		return
	}
	s.logger.Error("loop operation failed", "error", err)
	respondError(w, reqID, http.StatusInternalServerError, newAPIError(ErrInternal, "%v", err))
}

// Package session owns the generation token and origin timestamp of a simulation run.
package session

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

// State is the coordinator's lifecycle state.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

func (s State) String() string {
	return string(s)
}

// Session describes one generation.
type Session struct {
	Generation uint64          `json:"generation"`
	RunID      string          `json:"run_id,omitempty"`
	Algorithm  model.Algorithm `json:"algorithm,omitempty"`
	Origin     *time.Time      `json:"origin_timestamp"`
	State      State           `json:"state"`
}

// Running reports whether the session has an origin to measure events against.
func (s Session) Running() bool {
	return s.State == StateRunning && s.Origin != nil
}

// Coordinator governs start and reset. Start, Reset and Current belong to a single
// owner; Generation may be read from any goroutine.
type Coordinator struct {
	generation atomic.Uint64
	current    Session
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now as the source of origin timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates an idle coordinator at generation 0.
func NewCoordinator(logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		current: Session{State: StateIdle},
		now:     time.Now,
		logger:  logging.Component(logger, "session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start bumps the generation and opens a session whose origin is now.
func (c *Coordinator) Start(algorithm model.Algorithm) Session {
	return c.StartAt(algorithm, c.now())
}

// StartAt bumps the generation and opens a session with the given origin.
func (c *Coordinator) StartAt(algorithm model.Algorithm, origin time.Time) Session {
	gen := c.generation.Add(1)
	origin = origin.UTC()
	c.current = Session{
		Generation: gen,
		RunID:      uuid.NewString(),
		Algorithm:  algorithm,
		Origin:     &origin,
		State:      StateRunning,
	}
	c.logger.Info("session started",
		"generation", gen, "run_id", c.current.RunID, "algorithm", algorithm, "origin", origin)
	return c.current
}

// Reset bumps the generation and returns to idle without an origin.
func (c *Coordinator) Reset() Session {
	gen := c.generation.Add(1)
	c.current = Session{Generation: gen, State: StateIdle}
	c.logger.Info("session reset", "generation", gen)
	return c.current
}

// Current returns the active session.
func (c *Coordinator) Current() Session {
	return c.current
}

// Generation returns the current generation token.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// IsCurrent reports whether gen is the current generation.
func (c *Coordinator) IsCurrent(gen uint64) bool {
	return gen == c.generation.Load()
}

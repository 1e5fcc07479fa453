package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
	"github.com/sherine-k/schedtrace/pkg/session"
)

// Envelope is what a dispatcher hands to the engine.
type Envelope struct {
	Command    Name      `json:"command"`
	RunID      string    `json:"run_id,omitempty"`
	Generation uint64    `json:"generation"`
	IssuedAt   time.Time `json:"issued_at"`
	Args       Command   `json:"args"`
}

// Dispatcher delivers commands to the engine. Delivery is fire-and-forget: no
// response from the engine is awaited.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) error
}

// WriterDispatcher writes each envelope as one JSON line.
type WriterDispatcher struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

// NewWriterDispatcher creates a dispatcher writing to w.
func NewWriterDispatcher(w io.Writer, logger *slog.Logger) *WriterDispatcher {
	return &WriterDispatcher{
		enc:    json.NewEncoder(w),
		logger: logging.Component(logger, "dispatcher"),
	}
}

// Dispatch writes env.
func (d *WriterDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enc.Encode(env); err != nil {
		return fmt.Errorf("writing %s command: %w", env.Command, err)
	}
	d.logger.Info("command dispatched", "command", env.Command, "run_id", env.RunID, "generation", env.Generation)
	return nil
}

// Starter opens the session a command's events will belong to.
type Starter interface {
	StartRun(ctx context.Context, algorithm model.Algorithm) (session.Session, error)
}

// StarterFunc adapts a function to Starter.
type StarterFunc func(ctx context.Context, algorithm model.Algorithm) (session.Session, error)

func (f StarterFunc) StartRun(ctx context.Context, algorithm model.Algorithm) (session.Session, error) {
	return f(ctx, algorithm)
}

// Submitter validates a command, starts a new session for it and dispatches it.
type Submitter struct {
	dispatcher Dispatcher
	starter    Starter
	now        func() time.Time
	logger     *slog.Logger
}

// NewSubmitter creates a submitter.
func NewSubmitter(d Dispatcher, s Starter, logger *slog.Logger) *Submitter {
	return &Submitter{
		dispatcher: d,
		starter:    s,
		now:        time.Now,
		logger:     logging.Component(logger, "command"),
	}
}

// Submit validates cmd and, when it is valid, restarts the session and dispatches it.
// A *ValidationError leaves the session untouched.
func (s *Submitter) Submit(ctx context.Context, cmd Command) (Envelope, error) {
	if err := cmd.Validate(); err != nil {
		s.logger.Debug("command rejected", "command", cmd.Name(), "error", err)
		return Envelope{}, err
	}

	sess, err := s.starter.StartRun(ctx, cmd.Algorithm())
	if err != nil {
		return Envelope{}, fmt.Errorf("starting session for %s: %w", cmd.Name(), err)
	}

	env := Envelope{
		Command:    cmd.Name(),
		RunID:      sess.RunID,
		Generation: sess.Generation,
		IssuedAt:   s.now().UTC(),
		Args:       cmd,
	}
	if err := s.dispatcher.Dispatch(ctx, env); err != nil {
		s.logger.Error("command dispatch failed", "command", cmd.Name(), "error", err)
		return env, err
	}
	return env, nil
}

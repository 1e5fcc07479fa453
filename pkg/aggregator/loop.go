package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
	"github.com/sherine-k/schedtrace/pkg/session"
)

// DefaultQueueDepth is the buffer of each inbound channel queue.
const DefaultQueueDepth = 256

// ErrLoopStopped is returned for operations submitted after the loop has exited.
var ErrLoopStopped = errors.New("aggregator loop stopped")

type controlOp struct {
	name  string
	apply func() *State
	reply chan *State
}

// Loop is the aggregator's single execution context. Every inbound channel has its
// own queue, so per-channel order is kept while channels interleave freely. Session
// control goes through the same goroutine, so an event is never applied halfway
// through a reset.
type Loop struct {
	agg     *Aggregator
	queues  map[events.Channel]chan events.Event
	control chan controlOp
	done    chan struct{}
	logger  *slog.Logger
}

// NewLoop creates a loop around agg with queueDepth slots per channel.
func NewLoop(agg *Aggregator, queueDepth int, logger *slog.Logger) *Loop {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	l := &Loop{
		agg:     agg,
		queues:  make(map[events.Channel]chan events.Event),
		control: make(chan controlOp),
		done:    make(chan struct{}),
		logger:  logging.Component(logger, "loop"),
	}
	for _, ch := range events.Channels() {
		l.queues[ch] = make(chan events.Event, queueDepth)
	}
	return l
}

// Aggregator returns the aggregator driven by the loop.
func (l *Loop) Aggregator() *Aggregator {
	return l.agg
}

// Post queues ev on its channel. It blocks while the queue is full and gives up once
// the loop has stopped. Post matches events.Handler.
func (l *Loop) Post(ev events.Event) {
	q, ok := l.queues[ev.Channel]
	if !ok {
		l.logger.Warn("event for unknown channel ignored", "channel", ev.Channel)
		return
	}
	select {
	case q <- ev:
	case <-l.done:
		l.logger.Debug("event posted after loop stopped", "channel", ev.Channel, "seq", ev.Seq)
	}
}

// Run applies queued events and control operations until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	var (
		ready    = l.queues[events.ChannelUpdateProcess]
		stopped  = l.queues[events.ChannelProcessStopped]
		finished = l.queues[events.ChannelFinishedProcess]
		single   = l.queues[events.ChannelSendMetrics]
		mlq      = l.queues[events.ChannelSendMetricsMLQ]
		mlfq     = l.queues[events.ChannelSendMetricsMLFQ]
	)

	l.logger.Info("aggregator loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("aggregator loop stopped")
			return nil
		case op := <-l.control:
			l.logger.Debug("control operation", "op", op.name)
			op.reply <- op.apply()
		case ev := <-ready:
			l.agg.Handle(ev)
		case ev := <-stopped:
			l.agg.Handle(ev)
		case ev := <-finished:
			l.agg.Handle(ev)
		case ev := <-single:
			l.agg.Handle(ev)
		case ev := <-mlq:
			l.agg.Handle(ev)
		case ev := <-mlfq:
			l.agg.Handle(ev)
		}
	}
}

func (l *Loop) submit(ctx context.Context, name string, apply func() *State) (*State, error) {
	op := controlOp{name: name, apply: apply, reply: make(chan *State, 1)}
	select {
	case l.control <- op:
	case <-l.done:
		return nil, ErrLoopStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case st := <-op.reply:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start opens a new session on the loop goroutine.
func (l *Loop) Start(ctx context.Context, algorithm model.Algorithm) (*State, error) {
	return l.submit(ctx, "start", func() *State { return l.agg.Start(algorithm) })
}

// StartAt opens a new session with the given origin on the loop goroutine.
func (l *Loop) StartAt(ctx context.Context, algorithm model.Algorithm, origin time.Time) (*State, error) {
	return l.submit(ctx, "start", func() *State { return l.agg.StartAt(algorithm, origin) })
}

// StartRun opens a new session whose origin is now and returns it. It lets a Loop
// start the sessions of submitted commands.
func (l *Loop) StartRun(ctx context.Context, algorithm model.Algorithm) (session.Session, error) {
	st, err := l.Start(ctx, algorithm)
	if err != nil {
		return session.Session{}, err
	}
	return st.Session, nil
}

// Reset resets the session on the loop goroutine.
func (l *Loop) Reset(ctx context.Context) (*State, error) {
	return l.submit(ctx, "reset", l.agg.Reset)
}

// ClearComparison empties the comparison store on the loop goroutine.
func (l *Loop) ClearComparison(ctx context.Context) (*State, error) {
	return l.submit(ctx, "clear-comparison", l.agg.ClearComparison)
}

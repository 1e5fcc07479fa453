// Package aggregator owns the aggregator state. Typed events are applied one at a time
// by a single writer and every change is published as an immutable State.
package aggregator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/finished"
	"github.com/sherine-k/schedtrace/pkg/ledger"
	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/metrics"
	"github.com/sherine-k/schedtrace/pkg/model"
	"github.com/sherine-k/schedtrace/pkg/session"
	"github.com/sherine-k/schedtrace/pkg/timeline"
)

// Aggregator applies events to the ledger, timeline, finished registry and metrics
// stores. Apply, Start, Reset and ClearComparison must be called from one goroutine
// (see Loop); Snapshot, Subscribe and Generation are safe from any goroutine.
type Aggregator struct {
	coord    *session.Coordinator
	ledger   *ledger.Ledger
	timeline *timeline.Builder
	finished *finished.Registry
	metrics  *metrics.Accumulator
	ready    []model.ProcessSnapshot
	stats    Stats
	version  uint64

	state atomic.Pointer[State]

	subsMu sync.Mutex
	subs   map[chan *State]struct{}

	now    func() time.Time
	logger *slog.Logger
}

// New creates an idle aggregator tracking maxLanes lanes.
func New(maxLanes int, logger *slog.Logger, opts ...session.Option) *Aggregator {
	a := &Aggregator{
		coord:    session.NewCoordinator(logger, opts...),
		ledger:   ledger.New(logger),
		timeline: timeline.New(maxLanes, logger),
		finished: finished.New(logger),
		metrics:  metrics.New(logger),
		subs:     make(map[chan *State]struct{}),
		now:      time.Now,
		logger:   logging.Component(logger, "aggregator"),
	}
	a.publish()
	return a
}

// Generation returns the current generation. Adapters stamp arriving events with it.
func (a *Aggregator) Generation() uint64 {
	return a.coord.Generation()
}

// MaxLanes returns the number of timeline lanes.
func (a *Aggregator) MaxLanes() int {
	return a.timeline.MaxLanes()
}

// Start opens a new session whose origin is now.
func (a *Aggregator) Start(algorithm model.Algorithm) *State {
	s := a.coord.Start(algorithm)
	return a.begin(s)
}

// StartAt opens a new session with the given origin.
func (a *Aggregator) StartAt(algorithm model.Algorithm, origin time.Time) *State {
	s := a.coord.StartAt(algorithm, origin)
	return a.begin(s)
}

func (a *Aggregator) begin(s session.Session) *State {
	a.clearRun(s.Generation, *s.Origin, s.Algorithm)
	return a.publish()
}

// Reset drops every derived entity of the active session together with the current
// run's metrics. The comparison store is kept.
func (a *Aggregator) Reset() *State {
	s := a.coord.Reset()
	a.clearRun(s.Generation, time.Time{}, "")
	a.metrics.ClearCurrent()
	return a.publish()
}

func (a *Aggregator) clearRun(gen uint64, origin time.Time, algorithm model.Algorithm) {
	a.ledger.Reset(gen)
	a.timeline.Reset(origin, algorithm)
	a.finished.Reset(algorithm)
	a.ready = nil
}

// ClearComparison empties the cross-algorithm comparison store.
func (a *Aggregator) ClearComparison() *State {
	a.metrics.ClearComparison()
	a.logger.Info("comparison store cleared")
	return a.publish()
}

// Apply applies one event. Events of another generation, or arriving while no session
// is running, are dropped without error. A processed-time regression is counted and
// applied with a zero delta.
func (a *Aggregator) Apply(ev events.Event) error {
	current := a.coord.Current()
	if ev.Generation != current.Generation || !current.Running() {
		a.stats.Late++
		a.logger.Debug("late event dropped",
			"channel", ev.Channel, "seq", ev.Seq, "generation", ev.Generation, "current", current.Generation)
		a.publish()
		return nil
	}

	if err := a.apply(ev, current); err != nil {
		a.stats.Rejected++
		a.publish()
		return fmt.Errorf("applying %s event %d: %w", ev.Channel, ev.Seq, err)
	}
	a.stats.Applied++
	a.publish()
	return nil
}

func (a *Aggregator) apply(ev events.Event, s session.Session) error {
	algorithm := string(s.Algorithm)

	switch p := ev.Payload.(type) {
	case events.ReadyQueue:
		a.ready = slices.Clone(p.Processes)

	case events.Dispatch:
		// Reject what the timeline cannot place before the ledger moves its baseline
		if _, err := a.timeline.Build(p.Event, 0); err != nil {
			return err
		}
		delta, err := a.ledger.RecordDispatch(ev.Generation, p.Event)
		var anomaly *ledger.AnomalyWarning
		switch {
		case errors.As(err, &anomaly):
			a.stats.Anomalies++
		case err != nil:
			return err
		}
		if _, err := a.timeline.Append(p.Event, delta); err != nil {
			return err
		}

	case events.Finished:
		a.finished.Add(p.Batch)

	case events.Metrics:
		a.metrics.AddSingle(algorithm, p.Snapshot)

	case events.LaneMetrics:
		if _, err := a.metrics.AddBatch(algorithm, p.Snapshots); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported payload %T", ev.Payload)
	}
	return nil
}

// Handle applies ev and logs a failure instead of returning it. It matches
// events.Handler for synchronous use.
func (a *Aggregator) Handle(ev events.Event) {
	if err := a.Apply(ev); err != nil {
		a.logger.Warn("event rejected", "channel", ev.Channel, "error", err)
	}
}

// Snapshot returns the latest published state.
func (a *Aggregator) Snapshot() *State {
	return a.state.Load()
}

// Subscribe returns a channel receiving every published state. A slow subscriber only
// sees the latest one. Call the returned function to unsubscribe.
func (a *Aggregator) Subscribe() (<-chan *State, func()) {
	ch := make(chan *State, 1)

	// publish stores before fanning out under subsMu, so any state newer than the
	// one sent here reaches ch once the lock is released.
	a.subsMu.Lock()
	ch <- a.Snapshot()
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subsMu.Lock()
			delete(a.subs, ch)
			a.subsMu.Unlock()
			close(ch)
		})
	}
}

func (a *Aggregator) publish() *State {
	a.version++
	st := &State{
		Version:     a.version,
		PublishedAt: a.now().UTC(),
		Session:     a.coord.Current(),
		MultiLevel:  a.timeline.MultiLevel(),
		ReadyQueue:  slices.Clip(a.ready),
		Lanes:       a.timeline.Lanes(),
		Finished:    a.finished.Processes(),
		Waves:       a.finished.Waves(),
		Distinct:    a.finished.Distinct(),
		Series:      a.metrics.Series(),
		Comparison:  a.metrics.Comparison(),
		Stats:       a.stats,
	}
	if p, ok := a.metrics.Current(); ok {
		st.Current = &p
	}
	a.state.Store(st)

	a.subsMu.Lock()
	for ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
	a.subsMu.Unlock()
	return st
}

// Attach subscribes h to every channel of bus.
func Attach(bus *events.Bus, h events.Handler) error {
	for _, ch := range events.Channels() {
		if err := bus.Subscribe(ch, h); err != nil {
			return err
		}
	}
	return nil
}

// Package ledger tracks cumulative processed time per process and turns successive
// cumulative readings into per-dispatch deltas.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

// ErrStaleGeneration is returned for readings that belong to an earlier generation.
var ErrStaleGeneration = errors.New("reading belongs to a previous generation")

// AnomalyWarning reports a cumulative processed time lower than the stored baseline.
// The delta returned with it is zero and the baseline is left untouched.
type AnomalyWarning struct {
	Generation uint64
	ProcessID  string
	Baseline   time.Duration
	Observed   time.Duration
}

func (w *AnomalyWarning) Error() string {
	return fmt.Sprintf("processed time regressed for %s: %s < baseline %s (generation %d)",
		w.ProcessID, w.Observed, w.Baseline, w.Generation)
}

// Ledger maps process ids to their last cumulative processed time within one generation.
// It is not safe for concurrent use; the aggregator is its only writer.
type Ledger struct {
	generation uint64
	baselines  map[string]time.Duration
	logger     *slog.Logger
}

// New creates an empty ledger for generation 0.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		baselines: make(map[string]time.Duration),
		logger:    logging.Component(logger, "ledger"),
	}
}

// Reset drops every baseline and scopes the ledger to generation.
func (l *Ledger) Reset(generation uint64) {
	l.generation = generation
	clear(l.baselines)
}

// Generation returns the generation the ledger currently holds baselines for.
func (l *Ledger) Generation() uint64 {
	return l.generation
}

// Len returns the number of processes with a baseline.
func (l *Ledger) Len() int {
	return len(l.baselines)
}

// Baseline returns the stored cumulative processed time for id.
func (l *Ledger) Baseline(id string) (time.Duration, bool) {
	b, ok := l.baselines[id]
	return b, ok
}

// RecordDispatch derives the processed time attributable to one dispatch event.
func (l *Ledger) RecordDispatch(generation uint64, ev model.DispatchEvent) (time.Duration, error) {
	return l.Record(generation, ev.Process.ID, ev.Process.ProcessedTime)
}

// Record stores processed as the new baseline for id and returns the delta to the
// previous one. The first reading of an id is its own delta.
//
// A regression yields a zero delta together with an *AnomalyWarning; the caller keeps
// going with the zero delta.
func (l *Ledger) Record(generation uint64, id string, processed model.Duration) (time.Duration, error) {
	switch {
	case generation < l.generation:
		return 0, ErrStaleGeneration
	case generation > l.generation:
		l.Reset(generation)
	}

	observed := processed.Std()
	baseline, ok := l.baselines[id]
	if !ok {
		l.baselines[id] = observed
		l.logger.Debug("baseline stored", "process_id", id, "processed", observed)
		return observed, nil
	}

	delta := observed - baseline
	if delta < 0 {
		warning := &AnomalyWarning{
			Generation: generation,
			ProcessID:  id,
			Baseline:   baseline,
			Observed:   observed,
		}
		l.logger.Warn("processed time regressed, delta clamped",
			"process_id", id, "baseline", baseline, "observed", observed)
		return 0, warning
	}
	l.baselines[id] = observed
	return delta, nil
}

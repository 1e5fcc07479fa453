// Package timeline turns dispatch events and their deltas into lane-scoped,
// append-only execution segments.
package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

var (
	// ErrNoOrigin is returned when no session origin is set.
	ErrNoOrigin = errors.New("timeline has no origin timestamp")

	// ErrNoLastExecution is returned for dispatch events without a last execution time.
	ErrNoLastExecution = errors.New("process has no last_execution timestamp")
)

// LaneError reports a lane outside the builder's range.
type LaneError struct {
	Lane     int
	MaxLanes int
}

func (e *LaneError) Error() string {
	return fmt.Sprintf("lane %d out of range [0, %d)", e.Lane, e.MaxLanes)
}

// Builder derives timeline segments and keeps one ordered sequence per lane.
//
// Sequences are only ever appended to. Slices handed out by Lane and Lanes are
// clipped to their length, so a caller holding an older slice never observes
// later segments and cannot overwrite them by appending.
type Builder struct {
	maxLanes   int
	multiLevel bool
	origin     time.Time
	hasOrigin  bool
	lanes      [][]model.TimelineSegment
	total      int
	logger     *slog.Logger
}

// New creates a builder with maxLanes lanes and no origin.
func New(maxLanes int, logger *slog.Logger) *Builder {
	if maxLanes <= 0 {
		maxLanes = model.DefaultMaxLanes
	}
	return &Builder{
		maxLanes: maxLanes,
		lanes:    make([][]model.TimelineSegment, maxLanes),
		logger:   logging.Component(logger, "timeline"),
	}
}

// Reset clears every lane and prepares the builder for a new session.
// A zero origin leaves the builder without an origin.
func (b *Builder) Reset(origin time.Time, algorithm model.Algorithm) {
	b.origin = origin
	b.hasOrigin = !origin.IsZero()
	b.multiLevel = algorithm.IsMultiLevel()
	b.lanes = make([][]model.TimelineSegment, b.maxLanes)
	b.total = 0
}

// MultiLevel reports whether segments keep the lane carried by their event.
func (b *Builder) MultiLevel() bool {
	return b.multiLevel
}

// Elapsed returns the milliseconds between the session origin and t.
func (b *Builder) Elapsed(t time.Time) float64 {
	return float64(t.Sub(b.origin)) / float64(time.Millisecond)
}

// Build derives the segment for ev without recording it.
func (b *Builder) Build(ev model.DispatchEvent, delta time.Duration) (model.TimelineSegment, error) {
	if !b.hasOrigin {
		return model.TimelineSegment{}, ErrNoOrigin
	}
	if ev.Process.LastExecution == nil {
		return model.TimelineSegment{}, ErrNoLastExecution
	}
	lane := 0
	if b.multiLevel {
		lane = ev.Lane
	}
	if lane < 0 || lane >= b.maxLanes {
		return model.TimelineSegment{}, &LaneError{Lane: lane, MaxLanes: b.maxLanes}
	}

	start := b.Elapsed(*ev.Process.LastExecution)
	return model.TimelineSegment{
		Lane:      lane,
		ProcessID: ev.Process.ID,
		StartMs:   start,
		EndMs:     start + model.DurationOf(delta).Millis(),
	}, nil
}

// Append builds the segment for ev and appends it to its lane.
func (b *Builder) Append(ev model.DispatchEvent, delta time.Duration) (model.TimelineSegment, error) {
	seg, err := b.Build(ev, delta)
	if err != nil {
		return seg, err
	}
	b.lanes[seg.Lane] = append(b.lanes[seg.Lane], seg)
	b.total++
	b.logger.Debug("segment appended",
		"lane", seg.Lane, "process_id", seg.ProcessID, "start_ms", seg.StartMs, "end_ms", seg.EndMs)
	return seg, nil
}

// Lane returns the segments of lane n in arrival order.
func (b *Builder) Lane(n int) []model.TimelineSegment {
	if n < 0 || n >= len(b.lanes) {
		return nil
	}
	return slices.Clip(b.lanes[n])
}

// Lanes returns every lane's segments, indexed by lane number.
func (b *Builder) Lanes() [][]model.TimelineSegment {
	out := make([][]model.TimelineSegment, len(b.lanes))
	for i := range b.lanes {
		out[i] = slices.Clip(b.lanes[i])
	}
	return out
}

// Len returns the number of segments across all lanes.
func (b *Builder) Len() int {
	return b.total
}

// MaxLanes returns the number of lanes the builder tracks.
func (b *Builder) MaxLanes() int {
	return b.maxLanes
}

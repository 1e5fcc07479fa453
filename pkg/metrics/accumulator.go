// Package metrics merges per-queue metric snapshots into the current run's series and
// into a per-algorithm comparison store.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
)

var (
	// ErrEmptyBatch is returned for a multi-lane batch without members.
	ErrEmptyBatch = errors.New("metrics batch is empty")

	// ErrBatchTooLarge is returned for batches with more members than lanes.
	ErrBatchTooLarge = fmt.Errorf("metrics batch exceeds %d lanes", model.MultiLevelLanes)
)

// Point is one aggregate, millisecond-normalized metrics reading.
type Point struct {
	Algorithm      string  `json:"algorithm"`
	TurnaroundMs   float64 `json:"avg_turnaround_ms"`
	WaitingMs      float64 `json:"avg_waiting_ms"`
	ResponseMs     float64 `json:"avg_response_ms"`
	CPUUtilization float64 `json:"cpu_utilization"`
	Lanes          int     `json:"lanes"`
}

// PointOf normalizes a single snapshot.
func PointOf(algorithm string, s model.MetricsSnapshot) Point {
	if algorithm == "" {
		algorithm = s.QueueDiscipline
	}
	return Point{
		Algorithm:      algorithm,
		TurnaroundMs:   s.AvgTurnaround.Millis(),
		WaitingMs:      s.AvgWaiting.Millis(),
		ResponseMs:     s.AvgResponse.Millis(),
		CPUUtilization: s.CPUUtilization,
		Lanes:          1,
	}
}

// Aggregate averages each field across the batch members. Durations are normalized to
// milliseconds before averaging; utilization percentages are averaged as they are.
func Aggregate(algorithm string, batch []model.MetricsSnapshot) (Point, error) {
	switch {
	case len(batch) == 0:
		return Point{}, ErrEmptyBatch
	case len(batch) > model.MultiLevelLanes:
		return Point{}, fmt.Errorf("%w: got %d", ErrBatchTooLarge, len(batch))
	}

	var sum Point
	for _, s := range batch {
		p := PointOf("", s)
		sum.TurnaroundMs += p.TurnaroundMs
		sum.WaitingMs += p.WaitingMs
		sum.ResponseMs += p.ResponseMs
		sum.CPUUtilization += p.CPUUtilization
	}
	if algorithm == "" {
		algorithm = batch[0].QueueDiscipline
	}
	n := float64(len(batch))
	return Point{
		Algorithm:      algorithm,
		TurnaroundMs:   sum.TurnaroundMs / n,
		WaitingMs:      sum.WaitingMs / n,
		ResponseMs:     sum.ResponseMs / n,
		CPUUtilization: sum.CPUUtilization / n,
		Lanes:          len(batch),
	}, nil
}

// Accumulator holds the current run's points and the latest point per algorithm.
// It is not safe for concurrent use.
type Accumulator struct {
	series     []Point
	comparison map[string]Point
	order      []string
	logger     *slog.Logger
}

// New creates an empty accumulator.
func New(logger *slog.Logger) *Accumulator {
	return &Accumulator{
		comparison: make(map[string]Point),
		logger:     logging.Component(logger, "metrics"),
	}
}

// AddSingle records the snapshot of a single-queue run.
func (a *Accumulator) AddSingle(algorithm string, s model.MetricsSnapshot) Point {
	p := PointOf(algorithm, s)
	a.record(p)
	return p
}

// AddBatch records the averaged snapshot of a multi-level run.
func (a *Accumulator) AddBatch(algorithm string, batch []model.MetricsSnapshot) (Point, error) {
	p, err := Aggregate(algorithm, batch)
	if err != nil {
		return Point{}, err
	}
	a.record(p)
	return p, nil
}

func (a *Accumulator) record(p Point) {
	a.series = append(a.series, p)
	if _, seen := a.comparison[p.Algorithm]; !seen {
		a.order = append(a.order, p.Algorithm)
	}
	a.comparison[p.Algorithm] = p
	a.logger.Info("metrics recorded",
		"algorithm", p.Algorithm, "lanes", p.Lanes,
		"avg_turnaround_ms", p.TurnaroundMs, "cpu_utilization", p.CPUUtilization)
}

// Current returns the latest point of the current run.
func (a *Accumulator) Current() (Point, bool) {
	if len(a.series) == 0 {
		return Point{}, false
	}
	return a.series[len(a.series)-1], true
}

// Series returns the current run's points in arrival order.
func (a *Accumulator) Series() []Point {
	return slices.Clone(a.series)
}

// Comparison returns the latest point per algorithm in first-seen order.
func (a *Accumulator) Comparison() []Point {
	out := make([]Point, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.comparison[name])
	}
	return out
}

// ClearCurrent drops the current run's points. The comparison store is kept.
func (a *Accumulator) ClearCurrent() {
	a.series = nil
}

// ClearComparison empties the comparison store.
func (a *Accumulator) ClearComparison() {
	clear(a.comparison)
	a.order = nil
}

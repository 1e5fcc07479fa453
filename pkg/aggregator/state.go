package aggregator

import (
	"time"

	"github.com/sherine-k/schedtrace/pkg/finished"
	"github.com/sherine-k/schedtrace/pkg/metrics"
	"github.com/sherine-k/schedtrace/pkg/model"
	"github.com/sherine-k/schedtrace/pkg/session"
)

// Stats counts what happened to the events that reached the aggregator.
type Stats struct {
	Applied   uint64 `json:"applied"`
	Late      uint64 `json:"late"`
	Anomalies uint64 `json:"anomalies"`
	Rejected  uint64 `json:"rejected"`
}

// State is an immutable view of the aggregator after a complete event. Consumers must
// treat every slice as read-only; a new State is published for every change.
type State struct {
	Version     uint64    `json:"version"`
	PublishedAt time.Time `json:"published_at"`

	Session    session.Session `json:"session"`
	MultiLevel bool            `json:"multi_level"`

	ReadyQueue []model.ProcessSnapshot   `json:"ready_queue"`
	Lanes      [][]model.TimelineSegment `json:"lanes"`

	Finished []model.ProcessSnapshot `json:"finished"`
	Waves    []finished.Wave         `json:"waves"`
	Distinct []model.ProcessSnapshot `json:"distinct_finished"`

	Current    *metrics.Point  `json:"current_metrics"`
	Series     []metrics.Point `json:"metrics_series"`
	Comparison []metrics.Point `json:"comparison"`

	Stats Stats `json:"stats"`
}

// Lane returns the segments of lane n, or nil when n is out of range.
func (s *State) Lane(n int) []model.TimelineSegment {
	if n < 0 || n >= len(s.Lanes) {
		return nil
	}
	return s.Lanes[n]
}

// Segments returns the number of segments across all lanes.
func (s *State) Segments() int {
	n := 0
	for _, lane := range s.Lanes {
		n += len(lane)
	}
	return n
}

// Span returns the latest segment end across all lanes.
func (s *State) Span() float64 {
	var end float64
	for _, lane := range s.Lanes {
		for _, seg := range lane {
			end = max(end, seg.EndMs)
		}
	}
	return end
}

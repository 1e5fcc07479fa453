// Package events normalizes raw engine channel payloads into typed events stamped with
// the session generation.
package events

import (
	"time"

	"github.com/sherine-k/schedtrace/pkg/model"
)

// Channel names an inbound engine channel.
type Channel string

const (
	ChannelUpdateProcess   Channel = "update_process"
	ChannelProcessStopped  Channel = "process_stopped"
	ChannelFinishedProcess Channel = "finished_process"
	ChannelSendMetrics     Channel = "send_metrics"
	ChannelSendMetricsMLQ  Channel = "send_metrics_mlq"
	ChannelSendMetricsMLFQ Channel = "send_metrics_mlfq"
)

// Channels lists every inbound channel.
func Channels() []Channel {
	return []Channel{
		ChannelUpdateProcess,
		ChannelProcessStopped,
		ChannelFinishedProcess,
		ChannelSendMetrics,
		ChannelSendMetricsMLQ,
		ChannelSendMetricsMLFQ,
	}
}

// ParseChannel resolves a channel name.
func ParseChannel(s string) (Channel, bool) {
	for _, ch := range Channels() {
		if string(ch) == s {
			return ch, true
		}
	}
	return "", false
}

// Kind identifies a payload variant.
type Kind int

const (
	KindReadyQueue Kind = iota
	KindDispatch
	KindFinished
	KindMetrics
	KindLaneMetrics
)

func (k Kind) String() string {
	switch k {
	case KindReadyQueue:
		return "ready-queue"
	case KindDispatch:
		return "dispatch"
	case KindFinished:
		return "finished"
	case KindMetrics:
		return "metrics"
	case KindLaneMetrics:
		return "lane-metrics"
	default:
		return "unknown"
	}
}

// Payload is one decoded channel payload. The concrete types below are the only
// implementations.
type Payload interface {
	Kind() Kind
}

// ReadyQueue replaces the live ready-queue view.
type ReadyQueue struct {
	Processes []model.ProcessSnapshot
}

// Dispatch reports a dispatched or stopped process.
type Dispatch struct {
	Event model.DispatchEvent
}

// Finished is one completion batch.
type Finished struct {
	Batch model.FinishedBatch
}

// Metrics is the snapshot of a single-queue run.
type Metrics struct {
	Snapshot model.MetricsSnapshot
}

// LaneMetrics holds one snapshot per lane of a multi-level run.
type LaneMetrics struct {
	Snapshots []model.MetricsSnapshot
}

func (ReadyQueue) Kind() Kind  { return KindReadyQueue }
func (Dispatch) Kind() Kind    { return KindDispatch }
func (Finished) Kind() Kind    { return KindFinished }
func (Metrics) Kind() Kind     { return KindMetrics }
func (LaneMetrics) Kind() Kind { return KindLaneMetrics }

// Event is a typed payload tagged with its channel, the generation current at arrival
// and its position in the channel's arrival order.
type Event struct {
	Channel    Channel
	Generation uint64
	Seq        uint64
	ReceivedAt time.Time
	Payload    Payload
}

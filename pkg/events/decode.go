package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sherine-k/schedtrace/pkg/model"
)

// ErrUnknownChannel is returned for channel names the adapter does not know.
var ErrUnknownChannel = errors.New("unknown channel")

// MalformedEventError reports a payload that could not be turned into a typed event.
type MalformedEventError struct {
	Channel Channel
	Reason  string
	Err     error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s event: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s event: %s", e.Channel, e.Reason)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

func malformed(ch Channel, reason string, err error) error {
	return &MalformedEventError{Channel: ch, Reason: reason, Err: err}
}

// Decode resolves raw into the payload variant of ch. Lanes must fall in [0, maxLanes).
func Decode(ch Channel, raw []byte, maxLanes int) (Payload, error) {
	if _, ok := ParseChannel(string(ch)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, malformed(ch, "empty payload", nil)
	}

	switch ch {
	case ChannelUpdateProcess:
		procs, err := decodeProcesses(ch, raw)
		if err != nil {
			return nil, err
		}
		return ReadyQueue{Processes: procs}, nil

	case ChannelProcessStopped:
		ev, err := decodeDispatch(ch, raw, maxLanes)
		if err != nil {
			return nil, err
		}
		return Dispatch{Event: ev}, nil

	case ChannelFinishedProcess:
		procs, err := decodeProcesses(ch, raw)
		if err != nil {
			return nil, err
		}
		for _, p := range procs {
			if !p.Status.IsFinished() {
				return nil, malformed(ch, fmt.Sprintf("process %s has status %q", p.ID, p.Status), nil)
			}
		}
		return Finished{Batch: procs}, nil

	case ChannelSendMetrics:
		if raw[0] == '[' {
			return decodeLaneMetrics(ch, raw)
		}
		snap, err := decodeMetrics(ch, raw)
		if err != nil {
			return nil, err
		}
		return Metrics{Snapshot: snap}, nil

	case ChannelSendMetricsMLQ, ChannelSendMetricsMLFQ:
		if raw[0] != '[' {
			return nil, malformed(ch, "expected an array of lane metrics", nil)
		}
		return decodeLaneMetrics(ch, raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

func decodeProcesses(ch Channel, raw []byte) ([]model.ProcessSnapshot, error) {
	var procs []model.ProcessSnapshot
	if err := json.Unmarshal(raw, &procs); err != nil {
		return nil, malformed(ch, "expected an array of processes", err)
	}
	for i, p := range procs {
		if p.ID == "" {
			return nil, malformed(ch, fmt.Sprintf("process %d has no id", i), nil)
		}
	}
	return procs, nil
}

// decodeDispatch accepts the [lane, process] tuple; a bare process object is lane 0.
func decodeDispatch(ch Channel, raw []byte, maxLanes int) (model.DispatchEvent, error) {
	var ev model.DispatchEvent
	procRaw := raw
	if raw[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil {
			return ev, malformed(ch, "expected [lane, process]", err)
		}
		if len(tuple) != 2 {
			return ev, malformed(ch, fmt.Sprintf("expected [lane, process], got %d elements", len(tuple)), nil)
		}
		if err := json.Unmarshal(tuple[0], &ev.Lane); err != nil {
			return ev, malformed(ch, "lane is not an integer", err)
		}
		procRaw = tuple[1]
	}
	if err := json.Unmarshal(procRaw, &ev.Process); err != nil {
		return ev, malformed(ch, "invalid process", err)
	}

	switch {
	case ev.Lane < 0 || ev.Lane >= maxLanes:
		return ev, malformed(ch, fmt.Sprintf("lane %d out of range [0, %d)", ev.Lane, maxLanes), nil)
	case ev.Process.ID == "":
		return ev, malformed(ch, "process has no id", nil)
	case ev.Process.LastExecution == nil:
		return ev, malformed(ch, fmt.Sprintf("process %s has no last_execution", ev.Process.ID), nil)
	}
	return ev, nil
}

func decodeLaneMetrics(ch Channel, raw []byte) (Payload, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(ch, "expected an array of lane metrics", err)
	}
	if len(items) == 0 || len(items) > model.MultiLevelLanes {
		return nil, malformed(ch, fmt.Sprintf("expected 1 to %d lane metrics, got %d", model.MultiLevelLanes, len(items)), nil)
	}
	snaps := make([]model.MetricsSnapshot, 0, len(items))
	for _, item := range items {
		snap, err := decodeMetrics(ch, item)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return LaneMetrics{Snapshots: snaps}, nil
}

// metricsWire accepts the engine's field names as well as the short ones.
type metricsWire struct {
	QueueDiscipline string `json:"queue_discipline"`

	AverageTurnaround *metricValue `json:"average_turnaround_time"`
	AverageWaiting    *metricValue `json:"average_waiting_time"`
	AverageResponse   *metricValue `json:"average_response_time"`

	AvgTurnaround *metricValue `json:"avg_turnaround"`
	AvgWaiting    *metricValue `json:"avg_waiting"`
	AvgResponse   *metricValue `json:"avg_response"`

	CPUUtilization *metricValue `json:"cpu_utilization"`
}

func decodeMetrics(ch Channel, raw []byte) (model.MetricsSnapshot, error) {
	var w metricsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.MetricsSnapshot{}, malformed(ch, "invalid metrics object", err)
	}

	snap := model.MetricsSnapshot{QueueDiscipline: w.QueueDiscipline}
	fields := []struct {
		name string
		long *metricValue
		abbr *metricValue
		dst  *model.Duration
	}{
		{"average_turnaround_time", w.AverageTurnaround, w.AvgTurnaround, &snap.AvgTurnaround},
		{"average_waiting_time", w.AverageWaiting, w.AvgWaiting, &snap.AvgWaiting},
		{"average_response_time", w.AverageResponse, w.AvgResponse, &snap.AvgResponse},
	}
	for _, f := range fields {
		v := f.long
		if v == nil {
			v = f.abbr
		}
		if v == nil || v.duration == nil {
			return snap, malformed(ch, "missing duration field "+f.name, nil)
		}
		*f.dst = *v.duration
	}
	if w.CPUUtilization == nil || w.CPUUtilization.percent == nil {
		return snap, malformed(ch, "missing percentage field cpu_utilization", nil)
	}
	snap.CPUUtilization = *w.CPUUtilization.percent
	return snap, nil
}

// metricValue decodes the engine's tagged values ({"DurationValue": {...}},
// {"PercentageValue": x}) as well as plain durations and plain numbers.
type metricValue struct {
	duration *model.Duration
	percent  *float64
}

func (v *metricValue) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		v.percent = &n
		return nil
	}

	var tagged struct {
		DurationValue   *model.Duration `json:"DurationValue"`
		PercentageValue *float64        `json:"PercentageValue"`
		IntegerValue    *int64          `json:"IntegerValue"`
		Secs            *uint64         `json:"secs"`
		Nanos           *uint32         `json:"nanos"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch {
	case tagged.DurationValue != nil:
		v.duration = tagged.DurationValue
	case tagged.PercentageValue != nil:
		v.percent = tagged.PercentageValue
	case tagged.IntegerValue != nil:
		f := float64(*tagged.IntegerValue)
		v.percent = &f
	case tagged.Secs != nil || tagged.Nanos != nil:
		var d model.Duration
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		v.duration = &d
	default:
		return fmt.Errorf("unrecognized metric value %s", data)
	}
	return nil
}

package events

import (
	"errors"
	"fmt"
	"testing"
)

func processJSON(id, status string, processedMs int, lastExec string) string {
	le := "null"
	if lastExec != "" {
		le = fmt.Sprintf("%q", lastExec)
	}
	return fmt.Sprintf(`{"id":%q,"arrival_time":"2025-09-14T09:00:00Z",`+
		`"cpu_burst_time":{"secs":1,"nanos":0},"processed_time":{"secs":0,"nanos":%d},`+
		`"waiting_time":{"secs":0,"nanos":0},"status":%q,"process_type":"SystemProcess",`+
		`"last_execution":%s}`, id, processedMs*1_000_000, status, le)
}

const engineMetrics = `{
	"average_turnaround_time": {"DurationValue": {"secs": 0, "nanos": 10000000}},
	"average_waiting_time": {"DurationValue": {"secs": 1, "nanos": 0}},
	"average_response_time": {"DurationValue": {"secs": 0, "nanos": 500000}},
	"cpu_utilization": {"PercentageValue": 87.5}
}`

func TestDecode_Dispatch(t *testing.T) {
	raw := fmt.Sprintf(`[2, %s]`, processJSON("p1", "Running", 5, "2025-09-14T09:00:00.050Z"))
	payload, err := Decode(ChannelProcessStopped, []byte(raw), 5)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := payload.(Dispatch)
	if !ok {
		t.Fatalf("payload = %T, want Dispatch", payload)
	}
	if d.Event.Lane != 2 || d.Event.Process.ID != "p1" || d.Event.Process.ProcessedTime.Millis() != 5 {
		t.Errorf("dispatch = %+v", d.Event)
	}
}

func TestDecode_DispatchBareObjectIsLaneZero(t *testing.T) {
	raw := processJSON("p1", "Waiting", 5, "2025-09-14T09:00:00Z")
	payload, err := Decode(ChannelProcessStopped, []byte(raw), 5)
	if err != nil {
		t.Fatal(err)
	}
	if lane := payload.(Dispatch).Event.Lane; lane != 0 {
		t.Errorf("lane = %d, want 0", lane)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ch   Channel
		raw  string
	}{
		{"empty", ChannelUpdateProcess, ``},
		{"null", ChannelFinishedProcess, `null`},
		{"dispatch lane out of range", ChannelProcessStopped, fmt.Sprintf(`[5, %s]`, processJSON("p1", "Running", 1, "2025-09-14T09:00:00Z"))},
		{"dispatch negative lane", ChannelProcessStopped, fmt.Sprintf(`[-1, %s]`, processJSON("p1", "Running", 1, "2025-09-14T09:00:00Z"))},
		{"dispatch short tuple", ChannelProcessStopped, `[1]`},
		{"dispatch lane not int", ChannelProcessStopped, fmt.Sprintf(`["x", %s]`, processJSON("p1", "Running", 1, "2025-09-14T09:00:00Z"))},
		{"dispatch without last_execution", ChannelProcessStopped, fmt.Sprintf(`[0, %s]`, processJSON("p1", "Running", 1, ""))},
		{"dispatch without id", ChannelProcessStopped, fmt.Sprintf(`[0, %s]`, processJSON("", "Running", 1, "2025-09-14T09:00:00Z"))},
		{"ready queue not array", ChannelUpdateProcess, `{"id":"p1"}`},
		{"finished not finished", ChannelFinishedProcess, fmt.Sprintf(`[%s]`, processJSON("p1", "Running", 1, ""))},
		{"metrics missing field", ChannelSendMetrics, `{"average_turnaround_time":{"DurationValue":{"secs":0,"nanos":1}}}`},
		{"metrics bad nanos", ChannelSendMetrics, `{"average_turnaround_time":{"secs":0,"nanos":1000000000},"average_waiting_time":{"secs":0,"nanos":0},"average_response_time":{"secs":0,"nanos":0},"cpu_utilization":1}`},
		{"mlq object", ChannelSendMetricsMLQ, engineMetrics},
		{"mlfq empty", ChannelSendMetricsMLFQ, `[]`},
		{"mlfq five lanes", ChannelSendMetricsMLFQ, fmt.Sprintf(`[%s,%s,%s,%s,%s]`, engineMetrics, engineMetrics, engineMetrics, engineMetrics, engineMetrics)},
	}
	for _, tt := range tests {
		_, err := Decode(tt.ch, []byte(tt.raw), 5)
		var me *MalformedEventError
		if !errors.As(err, &me) {
			t.Errorf("%s: expected *MalformedEventError, got %v", tt.name, err)
			continue
		}
		if me.Channel != tt.ch {
			t.Errorf("%s: channel = %q", tt.name, me.Channel)
		}
	}
}

func TestDecode_UnknownChannel(t *testing.T) {
	if _, err := Decode("greet", []byte(`{}`), 5); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestDecode_ReadyQueueAndFinished(t *testing.T) {
	raw := fmt.Sprintf(`[%s, %s]`,
		processJSON("a", "Ready", 0, ""), processJSON("b", "Waiting", 3, "2025-09-14T09:00:01Z"))
	payload, err := Decode(ChannelUpdateProcess, []byte(raw), 5)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(payload.(ReadyQueue).Processes); n != 2 {
		t.Errorf("ready queue size = %d, want 2", n)
	}

	if _, err = Decode(ChannelUpdateProcess, []byte(`[]`), 5); err != nil {
		t.Fatalf("empty ready queue should decode: %v", err)
	}

	raw = fmt.Sprintf(`[%s, %s]`,
		processJSON("a", "Terminated", 10, "2025-09-14T09:00:00Z"), processJSON("b", "Finished", 3, "2025-09-14T09:00:01Z"))
	payload, err = Decode(ChannelFinishedProcess, []byte(raw), 5)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(payload.(Finished).Batch); n != 2 {
		t.Errorf("finished batch size = %d, want 2", n)
	}
}

func TestDecode_MetricsVariants(t *testing.T) {
	payload, err := Decode(ChannelSendMetrics, []byte(engineMetrics), 5)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := payload.(Metrics)
	if !ok {
		t.Fatalf("payload = %T, want Metrics", payload)
	}
	if m.Snapshot.AvgTurnaround.Millis() != 10 || m.Snapshot.AvgWaiting.Millis() != 1000 ||
		m.Snapshot.AvgResponse.Millis() != 0.5 || m.Snapshot.CPUUtilization != 87.5 {
		t.Errorf("snapshot = %+v", m.Snapshot)
	}

	short := `{"queue_discipline":"RR","avg_turnaround":{"secs":0,"nanos":2000000},` +
		`"avg_waiting":{"secs":0,"nanos":0},"avg_response":{"nanos":1000000},"cpu_utilization":50}`
	payload, err = Decode(ChannelSendMetrics, []byte(short), 5)
	if err != nil {
		t.Fatal(err)
	}
	if s := payload.(Metrics).Snapshot; s.QueueDiscipline != "RR" || s.AvgTurnaround.Millis() != 2 || s.AvgResponse.Millis() != 1 {
		t.Errorf("short snapshot = %+v", s)
	}

	// arrays on send_metrics are resolved as lane batches at the boundary
	batch := fmt.Sprintf(`[%s, %s, %s]`, engineMetrics, engineMetrics, engineMetrics)
	for _, ch := range []Channel{ChannelSendMetrics, ChannelSendMetricsMLQ, ChannelSendMetricsMLFQ} {
		payload, err = Decode(ch, []byte(batch), 5)
		if err != nil {
			t.Fatalf("%s: %v", ch, err)
		}
		lm, ok := payload.(LaneMetrics)
		if !ok || len(lm.Snapshots) != 3 {
			t.Errorf("%s: payload = %#v", ch, payload)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindDispatch.String() != "dispatch" || Kind(42).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
}

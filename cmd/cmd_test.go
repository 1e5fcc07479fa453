package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sherine-k/schedtrace/pkg/aggregator"
	"github.com/sherine-k/schedtrace/pkg/config"
	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/model"
)

const sampleRecording = `# RR run with a late event after reset
{"control":"start","algorithm":"RR","at":"2025-09-14T09:00:00Z"}
{"channel":"process_stopped","payload":[0,{"id":"p1","arrival_time":"2025-09-14T09:00:00Z","cpu_burst_time":{"secs":0,"nanos":20000000},"processed_time":{"secs":0,"nanos":5000000},"waiting_time":{"secs":0,"nanos":0},"status":"Running","process_type":"SystemProcess","last_execution":"2025-09-14T09:00:00Z"}]}
{"channel":"process_stopped","payload":[0,{"id":"p1","arrival_time":"2025-09-14T09:00:00Z","cpu_burst_time":{"secs":0,"nanos":20000000},"processed_time":{"secs":0,"nanos":20000000},"waiting_time":{"secs":0,"nanos":0},"status":"Finished","process_type":"SystemProcess","last_execution":"2025-09-14T09:00:00.05Z"}]}
{"channel":"send_metrics","payload":{"average_turnaround_time":{"DurationValue":{"secs":0,"nanos":65000000}},"average_waiting_time":{"DurationValue":{"secs":0,"nanos":45000000}},"average_response_time":{"DurationValue":{"secs":0,"nanos":0}},"cpu_utilization":{"PercentageValue":40}}}
{"channel":"send_metrics","payload":{"cpu_utilization":1}}
{"channel":"greet","payload":{}}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayCommand(t *testing.T) {
	path := writeFile(t, "run.jsonl", sampleRecording)
	rootCmd.SetArgs([]string{"replay", "-r", path, "--log-level", "error"})
	if err := Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}

	bad := writeFile(t, "bad.jsonl", `{"control":"start","algorithm":"LOTTERY"}`+"\n")
	rootCmd.SetArgs([]string{"replay", "-r", bad, "--log-level", "error"})
	if err := Execute(); err == nil || !strings.Contains(err.Error(), "unknown algorithm") {
		t.Errorf("expected unknown algorithm error, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	valid := writeFile(t, "ok.yaml", "command: run_simulation\natLambda: 2\ncbtLambda: 1\nnumOfProcesses: 10\ncontextSwitch: 5\nqueue: SRTF\ntimeQuantum: 20\n")
	rootCmd.SetArgs([]string{"validate", "-f", valid})
	if err := Execute(); err != nil {
		t.Errorf("validate valid request: %v", err)
	}

	invalid := writeFile(t, "bad.yaml", "command: run_simulation\natLambda: 1000.01\ncbtLambda: 1\nnumOfProcesses: 10\ncontextSwitch: 5\nqueue: SRTF\n")
	rootCmd.SetArgs([]string{"validate", "-f", invalid})
	if err := Execute(); err == nil || !strings.Contains(err.Error(), "2 invalid parameter(s)") {
		t.Errorf("expected 2 invalid parameters, got %v", err)
	}
}

func TestApplyControl(t *testing.T) {
	agg := aggregator.New(5, nil)
	at := time.Date(2025, 9, 14, 9, 0, 0, 0, time.UTC)
	if err := applyControl(agg, events.Record{Control: events.ControlStart, Algorithm: "mlfq", At: &at}); err != nil {
		t.Fatal(err)
	}
	st := agg.Snapshot()
	if st.Session.Algorithm != model.AlgorithmMLFQ || !st.Session.Origin.Equal(at) {
		t.Errorf("session = %+v", st.Session)
	}
	applyControl(agg, events.Record{Control: events.ControlReset})
	if agg.Snapshot().Session.Running() {
		t.Error("reset record should stop the session")
	}
}

func TestOpenCommandLog(t *testing.T) {
	w, err := openCommandLog(config.StdoutCommandLog)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("closing stdout wrapper: %v", err)
	}

	path := filepath.Join(t.TempDir(), "commands.jsonl")
	w, err = openCommandLog(path)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("{}\n"))
	w.Close()
	if data, _ := os.ReadFile(path); string(data) != "{}\n" {
		t.Errorf("command log = %q", data)
	}
}

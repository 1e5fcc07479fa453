package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/model"
)

func waitFor(t *testing.T, a *Aggregator, cond func(*State) bool) *State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		st := a.Snapshot()
		if cond(st) {
			return st
		}
		select {
		case <-deadline:
			t.Fatalf("condition not reached, last state: %+v", st.Stats)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func stoppedPayload(id string, processedMs, offsetMs int) []byte {
	last := t0.Add(time.Duration(offsetMs) * time.Millisecond).Format(time.RFC3339Nano)
	return []byte(fmt.Sprintf(`[0, {"id":%q,"arrival_time":"2025-09-14T09:00:00Z",`+
		`"cpu_burst_time":{"secs":1,"nanos":0},"processed_time":{"secs":0,"nanos":%d},`+
		`"waiting_time":{"secs":0,"nanos":0},"status":"Running","process_type":"SystemProcess",`+
		`"last_execution":%q}]`, id, processedMs*1_000_000, last))
}

func TestLoop_BusToState(t *testing.T) {
	agg := New(5, nil)
	loop := NewLoop(agg, 4, nil)
	bus := events.NewBus(agg, agg.MaxLanes(), nil)
	if err := Attach(bus, loop.Post); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	if _, err := loop.StartAt(ctx, model.AlgorithmRR, t0); err != nil {
		t.Fatal(err)
	}
	for i, offset := range []int{0, 50, 120} {
		if err := bus.OnEvent("process_stopped", stoppedPayload("p1", []int{5, 10, 20}[i], offset)); err != nil {
			t.Fatal(err)
		}
	}
	st := waitFor(t, agg, func(s *State) bool { return s.Stats.Applied == 3 })
	if lane := st.Lane(0); len(lane) != 3 || lane[2].StartMs != 120 || lane[2].DurationMs() != 10 {
		t.Errorf("lane 0 = %+v", lane)
	}

	if _, err := loop.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	bus.OnEvent("process_stopped", stoppedPayload("p1", 30, 200))
	st = waitFor(t, agg, func(s *State) bool { return s.Stats.Late == 1 })
	if st.Segments() != 0 {
		t.Errorf("event after reset was applied: %d segments", st.Segments())
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if _, err := loop.Start(context.Background(), model.AlgorithmRR); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Start after stop: expected ErrLoopStopped, got %v", err)
	}
}

func TestLoop_QueuedEventDroppedAfterRestart(t *testing.T) {
	agg := New(5, nil)
	loop := NewLoop(agg, 4, nil)
	bus := events.NewBus(agg, agg.MaxLanes(), nil)
	if err := Attach(bus, loop.Post); err != nil {
		t.Fatal(err)
	}

	// The loop is not running yet, so the event waits in its queue stamped with
	// the first generation while the session restarts.
	first := agg.StartAt(model.AlgorithmRR, t0).Session.Generation
	if err := bus.OnEvent("process_stopped", stoppedPayload("p1", 5, 0)); err != nil {
		t.Fatal(err)
	}
	second := agg.StartAt(model.AlgorithmRR, t0).Session.Generation
	if second == first {
		t.Fatal("restart did not bump the generation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	st := waitFor(t, agg, func(s *State) bool { return s.Stats.Late == 1 })
	if !st.Session.Running() || st.Stats.Applied != 0 || st.Segments() != 0 {
		t.Errorf("queued event of generation %d applied: session=%+v stats=%+v segments=%d",
			first, st.Session, st.Stats, st.Segments())
	}
}

func TestLoop_PostAfterStopDoesNotBlock(t *testing.T) {
	agg := New(5, nil)
	loop := NewLoop(agg, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		ev := events.Event{Channel: events.ChannelUpdateProcess, Payload: events.ReadyQueue{}}
		loop.Post(ev)
		loop.Post(ev)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked after the loop stopped")
	}
}

package aggregator

import (
	"testing"
	"time"

	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/model"
)

var t0 = time.Date(2025, 9, 14, 9, 0, 0, 0, time.UTC)

func proc(id string, processedMs int, lastExec time.Time, status model.ProcessStatus) model.ProcessSnapshot {
	return model.ProcessSnapshot{
		ID:            id,
		ArrivalTime:   t0,
		CPUBurstTime:  model.DurationOf(time.Second),
		ProcessedTime: model.DurationOf(time.Duration(processedMs) * time.Millisecond),
		Status:        status,
		ProcessType:   model.ProcessTypeSystem,
		LastExecution: &lastExec,
	}
}

func dispatch(gen uint64, lane int, id string, processedMs int, offsetMs int) events.Event {
	last := t0.Add(time.Duration(offsetMs) * time.Millisecond)
	return events.Event{
		Channel:    events.ChannelProcessStopped,
		Generation: gen,
		Payload: events.Dispatch{Event: model.DispatchEvent{
			Lane:    lane,
			Process: proc(id, processedMs, last, model.StatusRunning),
		}},
	}
}

func finishedBatch(gen uint64, ids ...string) events.Event {
	batch := make(model.FinishedBatch, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, proc(id, 100, t0, model.StatusFinished))
	}
	return events.Event{Channel: events.ChannelFinishedProcess, Generation: gen, Payload: events.Finished{Batch: batch}}
}

func snapshotMs(turnaroundMs int, cpu float64) model.MetricsSnapshot {
	return model.MetricsSnapshot{
		AvgTurnaround:  model.DurationOf(time.Duration(turnaroundMs) * time.Millisecond),
		AvgWaiting:     model.DurationOf(time.Millisecond),
		AvgResponse:    model.DurationOf(time.Millisecond),
		CPUUtilization: cpu,
	}
}

func mustApply(t *testing.T, a *Aggregator, ev events.Event) {
	t.Helper()
	if err := a.Apply(ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestAggregator_EndToEndTimeline(t *testing.T) {
	a := New(5, nil)
	st := a.StartAt(model.AlgorithmRR, t0)
	gen := st.Session.Generation

	mustApply(t, a, dispatch(gen, 0, "p1", 5, 0))
	mustApply(t, a, dispatch(gen, 0, "p1", 10, 50))
	mustApply(t, a, dispatch(gen, 0, "p1", 20, 120))

	lane := a.Snapshot().Lane(0)
	if len(lane) != 3 {
		t.Fatalf("lane 0 has %d segments, want 3", len(lane))
	}
	starts := []float64{0, 50, 120}
	durations := []float64{5, 5, 10}
	for i, seg := range lane {
		if seg.StartMs != starts[i] || seg.DurationMs() != durations[i] {
			t.Errorf("segment %d = [%v, %v], want start %v duration %v",
				i, seg.StartMs, seg.EndMs, starts[i], durations[i])
		}
	}
	if got := a.Snapshot().Stats.Applied; got != 3 {
		t.Errorf("Applied = %d, want 3", got)
	}
}

func TestAggregator_GenerationIsolation(t *testing.T) {
	a := New(5, nil)
	old := a.StartAt(model.AlgorithmFCFS, t0).Session.Generation
	mustApply(t, a, dispatch(old, 0, "p1", 5, 0))

	current := a.StartAt(model.AlgorithmFCFS, t0).Session.Generation
	if current != old+1 {
		t.Fatalf("generation = %d, want %d", current, old+1)
	}
	before := a.Snapshot()

	mustApply(t, a, dispatch(old, 0, "p1", 50, 10))
	mustApply(t, a, finishedBatch(old, "p1"))

	after := a.Snapshot()
	if after.Segments() != 0 || len(after.Finished) != 0 {
		t.Errorf("stale events mutated state: %d segments, %d finished", after.Segments(), len(after.Finished))
	}
	if after.Stats.Late != before.Stats.Late+2 {
		t.Errorf("Late = %d, want %d", after.Stats.Late, before.Stats.Late+2)
	}
}

func TestAggregator_IdleEventsAreLate(t *testing.T) {
	a := New(5, nil)
	mustApply(t, a, dispatch(a.Generation(), 0, "p1", 5, 0))
	st := a.Snapshot()
	if st.Segments() != 0 || st.Stats.Late != 1 {
		t.Errorf("idle event applied: segments=%d late=%d", st.Segments(), st.Stats.Late)
	}
}

func TestAggregator_ResetIdempotence(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmMLQ, t0).Session.Generation
	mustApply(t, a, dispatch(gen, 1, "p1", 5, 0))
	mustApply(t, a, finishedBatch(gen, "p1", "p2"))
	mustApply(t, a, events.Event{Channel: events.ChannelUpdateProcess, Generation: gen,
		Payload: events.ReadyQueue{Processes: []model.ProcessSnapshot{proc("p3", 0, t0, model.StatusReady)}}})
	mustApply(t, a, events.Event{Channel: events.ChannelSendMetricsMLQ, Generation: gen,
		Payload: events.LaneMetrics{Snapshots: []model.MetricsSnapshot{snapshotMs(10, 50)}}})

	for i := 0; i < 2; i++ {
		st := a.Reset()
		if st.Segments() != 0 || len(st.Finished) != 0 || len(st.ReadyQueue) != 0 {
			t.Errorf("reset %d left state: segments=%d finished=%d ready=%d",
				i, st.Segments(), len(st.Finished), len(st.ReadyQueue))
		}
		if st.Current != nil || len(st.Series) != 0 {
			t.Errorf("reset %d kept the current metrics point", i)
		}
		if len(st.Comparison) != 1 || st.Comparison[0].Algorithm != "MLQ" {
			t.Errorf("reset %d touched the comparison store: %+v", i, st.Comparison)
		}
		if st.Session.Running() || st.Session.Origin != nil {
			t.Errorf("reset %d left the session running", i)
		}
	}
}

func TestAggregator_StartKeepsCurrentMetrics(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmSPN, t0).Session.Generation
	mustApply(t, a, events.Event{Channel: events.ChannelSendMetrics, Generation: gen,
		Payload: events.Metrics{Snapshot: snapshotMs(40, 90)}})

	st := a.StartAt(model.AlgorithmHRRN, t0)
	if st.Current == nil || st.Current.Algorithm != "SPN" {
		t.Errorf("start dropped the current point: %+v", st.Current)
	}
}

func TestAggregator_AnomalyClampsDelta(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmSRTF, t0).Session.Generation
	mustApply(t, a, dispatch(gen, 0, "p1", 100, 0))
	mustApply(t, a, dispatch(gen, 0, "p1", 90, 200))

	st := a.Snapshot()
	if st.Stats.Anomalies != 1 {
		t.Errorf("Anomalies = %d, want 1", st.Stats.Anomalies)
	}
	lane := st.Lane(0)
	if len(lane) != 2 || lane[1].DurationMs() != 0 {
		t.Errorf("clamped segment = %+v", lane)
	}
}

func TestAggregator_RejectedDispatchLeavesLedger(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmMLFQ, t0).Session.Generation

	if err := a.Apply(dispatch(gen, 7, "p1", 5, 0)); err == nil {
		t.Fatal("lane 7 should be rejected with 5 lanes")
	}
	p := proc("p1", 8, t0, model.StatusRunning)
	p.LastExecution = nil
	noExec := events.Event{
		Channel:    events.ChannelProcessStopped,
		Generation: gen,
		Payload:    events.Dispatch{Event: model.DispatchEvent{Lane: 1, Process: p}},
	}
	if err := a.Apply(noExec); err == nil {
		t.Fatal("dispatch without last_execution should be rejected")
	}
	if n := a.ledger.Len(); n != 0 {
		t.Fatalf("rejected dispatches stored %d baselines", n)
	}

	mustApply(t, a, dispatch(gen, 1, "p1", 12, 0))
	st := a.Snapshot()
	if st.Stats.Rejected != 2 || st.Stats.Applied != 1 {
		t.Errorf("stats = %+v", st.Stats)
	}
	if lane := st.Lane(1); len(lane) != 1 || lane[0].DurationMs() != 12 {
		t.Errorf("lane 1 = %+v, want one 12ms segment", lane)
	}
}

func TestAggregator_LanePartitioning(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmMLFQ, t0).Session.Generation
	mustApply(t, a, dispatch(gen, 2, "p1", 5, 0))
	mustApply(t, a, dispatch(gen, 4, "p2", 5, 10))
	st := a.Snapshot()
	if !st.MultiLevel || len(st.Lane(2)) != 1 || len(st.Lane(4)) != 1 || len(st.Lane(0)) != 0 {
		t.Errorf("multi-level lanes = %+v", st.Lanes)
	}

	gen = a.StartAt(model.AlgorithmRR, t0).Session.Generation
	mustApply(t, a, dispatch(gen, 2, "p1", 5, 0))
	st = a.Snapshot()
	if st.MultiLevel || len(st.Lane(0)) != 1 || len(st.Lane(2)) != 0 {
		t.Errorf("single-queue lanes = %+v", st.Lanes)
	}
}

func TestAggregator_FinishedPolicy(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmMLQ, t0).Session.Generation
	mustApply(t, a, finishedBatch(gen, "a", "b"))
	mustApply(t, a, finishedBatch(gen, "c", "d"))
	if n := len(a.Snapshot().Finished); n != 4 {
		t.Errorf("multi-level registry size = %d, want 4", n)
	}

	gen = a.StartAt(model.AlgorithmSJF, t0).Session.Generation
	mustApply(t, a, finishedBatch(gen, "a", "b"))
	mustApply(t, a, finishedBatch(gen, "a", "b", "c"))
	if n := len(a.Snapshot().Finished); n != 3 {
		t.Errorf("single-queue registry size = %d, want 3", n)
	}
}

func TestAggregator_LaneMetricsAveraged(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmMLFQ, t0).Session.Generation
	batch := []model.MetricsSnapshot{
		snapshotMs(10, 60), snapshotMs(20, 70), snapshotMs(30, 80), snapshotMs(40, 70),
	}
	mustApply(t, a, events.Event{Channel: events.ChannelSendMetricsMLFQ, Generation: gen,
		Payload: events.LaneMetrics{Snapshots: batch}})

	st := a.Snapshot()
	if st.Current == nil {
		t.Fatal("no current metrics point")
	}
	if st.Current.TurnaroundMs != 25 || st.Current.CPUUtilization != 70 || st.Current.Lanes != 4 {
		t.Errorf("current point = %+v", *st.Current)
	}
	if len(st.Comparison) != 1 || st.Comparison[0].Algorithm != "MLFQ" {
		t.Errorf("comparison = %+v", st.Comparison)
	}

	st = a.ClearComparison()
	if len(st.Comparison) != 0 || st.Current == nil {
		t.Errorf("ClearComparison: comparison=%d current=%v", len(st.Comparison), st.Current)
	}
}

func TestAggregator_SnapshotsAreStable(t *testing.T) {
	a := New(5, nil)
	gen := a.StartAt(model.AlgorithmFCFS, t0).Session.Generation
	mustApply(t, a, dispatch(gen, 0, "p1", 5, 0))
	held := a.Snapshot()
	heldLane := held.Lane(0)

	mustApply(t, a, dispatch(gen, 0, "p2", 5, 10))
	mustApply(t, a, finishedBatch(gen, "p1"))

	if len(held.Lane(0)) != 1 || len(heldLane) != 1 || len(held.Finished) != 0 {
		t.Error("a published state changed after later events")
	}
	if held.Version >= a.Snapshot().Version {
		t.Error("versions must increase")
	}
}

func TestAggregator_Subscribe(t *testing.T) {
	a := New(5, nil)
	ch, cancel := a.Subscribe()
	defer cancel()

	if st := <-ch; st.Session.Running() {
		t.Fatal("initial state should be idle")
	}
	a.StartAt(model.AlgorithmRR, t0)
	a.Reset()
	a.StartAt(model.AlgorithmMLQ, t0)

	st := <-ch
	if st.Session.Algorithm != model.AlgorithmMLQ {
		t.Errorf("subscriber got %s, want the latest state", st.Session.Algorithm)
	}
	cancel()
	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
}

func TestAggregator_SubscribeDuringPublishSeesLatest(t *testing.T) {
	a := New(5, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			a.ClearComparison()
		}
	}()

	var subs []<-chan *State
	for i := 0; i < 50; i++ {
		ch, cancel := a.Subscribe()
		defer cancel()
		subs = append(subs, ch)
	}
	<-done

	want := a.Snapshot().Version
	for i, ch := range subs {
		if st := <-ch; st.Version != want {
			t.Errorf("subscriber %d holds version %d, want %d", i, st.Version, want)
		}
	}
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sherine-k/schedtrace/pkg/aggregator"
	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/model"
	"github.com/spf13/cobra"
)

var (
	recordingFile  string
	showTimeline   bool
	timelineLimit  int
	showSummary    bool
	showReadyQueue bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded event stream and chart the result",
	Long: `Replay reads a JSON-lines recording of engine events and session control
records, feeds it through the aggregator and prints the resulting timeline,
finished processes, metrics and warnings.

Each line is either an event:
  {"channel": "process_stopped", "payload": [1, {...}]}
or a control record:
  {"control": "start", "algorithm": "MLFQ", "at": "2025-09-14T09:00:00Z"}
  {"control": "reset"}`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&recordingFile, "recording", "r", "", "Path to the JSON-lines recording")
	replayCmd.Flags().BoolVarP(&showTimeline, "timeline", "t", false, "Show detailed timeline of segments")
	replayCmd.Flags().IntVarP(&timelineLimit, "timeline-limit", "l", 50, "Limit number of timeline segments to display")
	replayCmd.Flags().BoolVarP(&showSummary, "summary", "s", true, "Show session summary")
	replayCmd.Flags().BoolVar(&showReadyQueue, "ready-queue", false, "Show the last ready queue")
	replayCmd.MarkFlagRequired("recording")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	f, err := os.Open(recordingFile)
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	records, err := events.ReadRecording(f)
	if err != nil {
		return fmt.Errorf("failed to read recording %s: %w", recordingFile, err)
	}

	// Replay is single-threaded, so events are applied as they are decoded
	agg := aggregator.New(cfg.MaxLanes, logger)
	bus := events.NewBus(agg, cfg.MaxLanes, logger)
	if err := aggregator.Attach(bus, agg.Handle); err != nil {
		return err
	}

	for _, rec := range records {
		if rec.IsControl() {
			if err := applyControl(agg, rec); err != nil {
				return err
			}
			continue
		}
		// Malformed payloads are counted by the bus and reported with the warnings
		err := bus.OnEvent(rec.Channel, rec.Payload)
		if errors.Is(err, events.ErrUnknownChannel) {
			logger.Warn("recording line skipped", "line", rec.Line, "error", err)
		}
	}

	st := agg.Snapshot()
	chartGen := newChartGenerator(cfg)

	fmt.Printf("Replayed %d records from %s\n", len(records), recordingFile)

	// Display session summary
	if showSummary {
		fmt.Println(chartGen.GenerateSessionSummary(st))
	}

	// Display timeline chart
	fmt.Println(chartGen.GenerateTimelineChart(st))

	if showReadyQueue {
		fmt.Println(chartGen.GenerateReadyQueue(st))
	}

	fmt.Println(chartGen.GenerateFinished(st))
	fmt.Println(chartGen.GenerateMetrics(st))

	// Display warnings
	fmt.Println(chartGen.GenerateWarnings(st, bus.Malformed()))

	// Display detailed timeline if requested
	if showTimeline {
		fmt.Println(chartGen.GenerateDetailedTimeline(st, timelineLimit))
	}

	return nil
}

// applyControl performs a start or reset record
func applyControl(agg *aggregator.Aggregator, rec events.Record) error {
	switch rec.Control {
	case events.ControlStart:
		algorithm, ok := model.ParseAlgorithm(rec.Algorithm)
		if !ok {
			return fmt.Errorf("line %d: unknown algorithm %q", rec.Line, rec.Algorithm)
		}
		if rec.At != nil {
			agg.StartAt(algorithm, *rec.At)
		} else {
			agg.Start(algorithm)
		}
	case events.ControlReset:
		agg.Reset()
	}
	return nil
}

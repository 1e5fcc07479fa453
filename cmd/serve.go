package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sherine-k/schedtrace/pkg/aggregator"
	"github.com/sherine-k/schedtrace/pkg/chart"
	"github.com/sherine-k/schedtrace/pkg/command"
	"github.com/sherine-k/schedtrace/pkg/config"
	"github.com/sherine-k/schedtrace/pkg/events"
	"github.com/sherine-k/schedtrace/pkg/server"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	watch      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive engine events over HTTP",
	Long: `Serve starts the HTTP API: engine events are posted to /api/v1/events/{channel},
sessions are controlled under /api/v1/session and engine commands are validated
and dispatched from /api/v1/commands. Aggregated state is available as JSON and
as a server-sent event stream.

With --watch the timeline and metrics are also printed on the configured
renderSchedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "a", "", "Listen address (overrides the configuration)")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Print charts on the configured render schedule")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	out, err := openCommandLog(cfg.CommandLog)
	if err != nil {
		return err
	}
	defer out.Close()

	agg := aggregator.New(cfg.MaxLanes, logger)
	loop := aggregator.NewLoop(agg, cfg.QueueDepth, logger)
	bus := events.NewBus(agg, cfg.MaxLanes, logger)
	if err := aggregator.Attach(bus, loop.Post); err != nil {
		return err
	}
	submitter := command.NewSubmitter(command.NewWriterDispatcher(out, logger), loop, logger)
	srv := server.New(loop, bus, submitter, logger, server.WithHeartbeat(cfg.HeartbeatInterval))

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if watch {
		c, err := startRenderer(cfg, agg, bus, logger)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		defer c.Stop()
	}

	err = srv.ListenAndServe(ctx, cfg.ListenAddr, cfg.ShutdownTimeout)
	stop()
	wg.Wait()
	return err
}

// startRenderer prints the timeline and metrics whenever the schedule fires and the
// state changed since the last print
func startRenderer(cfg *config.Config, agg *aggregator.Aggregator, bus *events.Bus, logger *slog.Logger) (*cron.Cron, error) {
	chartGen := newChartGenerator(cfg)

	var (
		mu          sync.Mutex
		lastVersion uint64
	)
	render := func() {
		mu.Lock()
		defer mu.Unlock()
		st := agg.Snapshot()
		if st.Version == lastVersion {
			return
		}
		lastVersion = st.Version
		printLive(os.Stdout, chartGen, st, bus.Malformed())
	}

	c := cron.New(cron.WithParser(config.ScheduleParser))
	if _, err := c.AddFunc(cfg.RenderSchedule, render); err != nil {
		return nil, fmt.Errorf("invalid renderSchedule: %w", err)
	}
	c.Start()
	logger.Info("chart rendering scheduled", "schedule", cfg.RenderSchedule)
	return c, nil
}

func printLive(w io.Writer, chartGen *chart.Generator, st *aggregator.State, malformed uint64) {
	fmt.Fprintln(w, chartGen.GenerateTimelineChart(st))
	fmt.Fprintln(w, chartGen.GenerateMetrics(st))
	fmt.Fprintln(w, chartGen.GenerateWarnings(st, malformed))
}

// openCommandLog opens the destination of dispatched commands; "-" is stdout
func openCommandLog(path string) (io.WriteCloser, error) {
	if path == config.StdoutCommandLog {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open command log: %w", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

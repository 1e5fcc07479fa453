package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sherine-k/schedtrace/pkg/chart"
	"github.com/sherine-k/schedtrace/pkg/config"
	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "schedtrace",
	Short: "CPU scheduling telemetry aggregator",
	Long: `A CLI tool that reconstructs CPU scheduling runs from a simulation engine's
event stream.

Dispatch, finish and metrics events are turned into a per-lane execution timeline,
a finished-process ledger and metrics compared across scheduling algorithms.
Events can be replayed from a recording or received live over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides the configuration)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug")
}

// setup loads the configuration and builds the logger, applying flag overrides
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	if configFile != "" {
		logger.Debug("configuration loaded", "file", configFile)
	}
	return cfg, logger, nil
}

// newChartGenerator sizes charts to the terminal when stdout is one
func newChartGenerator(cfg *config.Config) *chart.Generator {
	width := cfg.ChartWidth
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w >= config.MinChartWidth {
			width = w
		}
	}
	return chart.NewGenerator(width, cfg.DisplayIDLength)
}

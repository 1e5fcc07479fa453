package config

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/sherine-k/schedtrace/pkg/logging"
	"github.com/sherine-k/schedtrace/pkg/model"
	"gopkg.in/yaml.v3"
)

// ScheduleParser parses renderSchedule: five-field cron expressions and descriptors
// such as "@every 2s".
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// LoadConfig loads and parses the configuration file. Keys missing from the file keep
// their default value.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Load returns the defaults when filename is empty, or the loaded file otherwise
func Load(filename string) (*Config, error) {
	if filename == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(filename)
}

// Validate validates a configuration built in code
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.ListenAddr == "" {
		return fmt.Errorf("listenAddr is required")
	}

	if !logging.ValidFormat(config.LogFormat) {
		return fmt.Errorf("logFormat must be either 'text' or 'json'")
	}

	// Lane 0 plus every multi-level lane must fit
	if config.MaxLanes < model.DefaultMaxLanes || config.MaxLanes > MaxLanesLimit {
		return fmt.Errorf("maxLanes must be between %d and %d", model.DefaultMaxLanes, MaxLanesLimit)
	}

	if config.QueueDepth <= 0 {
		return fmt.Errorf("queueDepth must be greater than 0")
	}

	if _, err := ScheduleParser.Parse(config.RenderSchedule); err != nil {
		return fmt.Errorf("renderSchedule %q: %w", config.RenderSchedule, err)
	}

	if config.ChartWidth < MinChartWidth {
		return fmt.Errorf("chartWidth must be at least %d", MinChartWidth)
	}

	if config.CommandLog == "" {
		return fmt.Errorf("commandLog is required (use '-' for stdout)")
	}

	if config.DisplayIDLength < 4 || config.DisplayIDLength > 36 {
		return fmt.Errorf("displayIDLength must be between 4 and 36")
	}

	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeatInterval must be greater than 0")
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdownTimeout must be greater than 0")
	}

	return nil
}

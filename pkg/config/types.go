package config

import (
	"time"
)

// Config represents the entire configuration for the telemetry aggregator
type Config struct {
	ListenAddr        string        `yaml:"listenAddr"`
	LogLevel          string        `yaml:"logLevel"`
	LogFormat         string        `yaml:"logFormat"`
	MaxLanes          int           `yaml:"maxLanes"`
	QueueDepth        int           `yaml:"queueDepth"`
	RenderSchedule    string        `yaml:"renderSchedule"`
	ChartWidth        int           `yaml:"chartWidth"`
	CommandLog        string        `yaml:"commandLog"`
	DisplayIDLength   int           `yaml:"displayIDLength"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// Defaults
const (
	DefaultListenAddr        = ":8090"
	DefaultMaxLanes          = 5
	DefaultQueueDepth        = 256
	DefaultRenderSchedule    = "@every 2s"
	DefaultChartWidth        = 100
	DefaultDisplayIDLength   = 8
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second

	// StdoutCommandLog writes dispatched commands to standard output
	StdoutCommandLog = "-"

	MinChartWidth = 40
	MaxLanesLimit = 16
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        DefaultListenAddr,
		LogLevel:          "info",
		LogFormat:         "text",
		MaxLanes:          DefaultMaxLanes,
		QueueDepth:        DefaultQueueDepth,
		RenderSchedule:    DefaultRenderSchedule,
		ChartWidth:        DefaultChartWidth,
		CommandLog:        StdoutCommandLog,
		DisplayIDLength:   DefaultDisplayIDLength,
		HeartbeatInterval: DefaultHeartbeatInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

package config

import "time"

// Config is the root configuration for a feed client instance.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Queue     QueueConfig     `yaml:"queue"`
	Symbols   []string        `yaml:"symbols"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FeedConfig holds the feed endpoint settings.
type FeedConfig struct {
	URL            string        `yaml:"url"`
	TokenEnv       string        `yaml:"token_env"` // env var holding the bearer token
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// HeartbeatConfig holds ping/pong liveness settings.
type HeartbeatConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

// ReconnectConfig holds the backoff policy for unexpected closes.
type ReconnectConfig struct {
	InitialDelay   time.Duration `yaml:"initial_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	MaxAttempts    int           `yaml:"max_attempts"`
	JitterFraction float64       `yaml:"jitter_fraction"`
	ResetDelay     time.Duration `yaml:"reset_delay"`
}

// QueueConfig bounds the offline command queue.
type QueueConfig struct {
	MaxPending int `yaml:"max_pending"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

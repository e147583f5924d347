package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTokenEnv       = "MARKETFEED_TOKEN"
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultPingInterval   = 15 * time.Second
	DefaultPongTimeout    = 30 * time.Second
	DefaultInitialDelay   = 1 * time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultBackoffFactor  = 2.0
	DefaultMaxAttempts    = 10
	DefaultJitterFraction = 0.3
	DefaultResetDelay     = 500 * time.Millisecond
	DefaultMaxPending     = 100
	DefaultMetricsPort    = 9090
	DefaultMetricsPath    = "/metrics"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

func (c *Config) applyDefaults() {
	// Feed defaults
	if c.Feed.TokenEnv == "" {
		c.Feed.TokenEnv = DefaultTokenEnv
	}
	if c.Feed.ConnectTimeout == 0 {
		c.Feed.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}

	// Heartbeat defaults
	if c.Heartbeat.PingInterval == 0 {
		c.Heartbeat.PingInterval = DefaultPingInterval
	}
	if c.Heartbeat.PongTimeout == 0 {
		c.Heartbeat.PongTimeout = DefaultPongTimeout
	}

	// Reconnect defaults
	if c.Reconnect.InitialDelay == 0 {
		c.Reconnect.InitialDelay = DefaultInitialDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if c.Reconnect.BackoffFactor == 0 {
		c.Reconnect.BackoffFactor = DefaultBackoffFactor
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.JitterFraction == 0 {
		c.Reconnect.JitterFraction = DefaultJitterFraction
	}
	if c.Reconnect.ResetDelay == 0 {
		c.Reconnect.ResetDelay = DefaultResetDelay
	}

	// Queue defaults
	if c.Queue.MaxPending == 0 {
		c.Queue.MaxPending = DefaultMaxPending
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

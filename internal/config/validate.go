package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return fmt.Errorf("feed.url must use ws:// or wss://, got %q", c.Feed.URL)
	}
	if c.Feed.TokenEnv == "" {
		return errors.New("feed.token_env is required")
	}

	if c.Heartbeat.PongTimeout < c.Heartbeat.PingInterval {
		return fmt.Errorf("heartbeat.pong_timeout (%v) cannot be shorter than ping_interval (%v)",
			c.Heartbeat.PongTimeout, c.Heartbeat.PingInterval)
	}

	if c.Reconnect.BackoffFactor < 1 {
		return fmt.Errorf("reconnect.backoff_factor must be >= 1, got %g", c.Reconnect.BackoffFactor)
	}
	if c.Reconnect.JitterFraction < 0 || c.Reconnect.JitterFraction >= 1 {
		return fmt.Errorf("reconnect.jitter_fraction must be in [0, 1), got %g", c.Reconnect.JitterFraction)
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be shorter than initial_delay (%v)",
			c.Reconnect.MaxDelay, c.Reconnect.InitialDelay)
	}

	if c.Queue.MaxPending < 1 {
		return errors.New("queue.max_pending must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
feed:
  url: wss://feed.example.com/stream
  token_env: FEED_TOKEN
symbols:
  - BTCUSDT
  - ETHUSDT
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/stream" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://feed.example.com/stream")
	}
	if cfg.Feed.TokenEnv != "FEED_TOKEN" {
		t.Errorf("Feed.TokenEnv = %q, want %q", cfg.Feed.TokenEnv, "FEED_TOKEN")
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "BTCUSDT" {
		t.Errorf("Symbols = %v, want [BTCUSDT ETHUSDT]", cfg.Symbols)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "wss://staging.example.com/stream")

	yaml := `
feed:
  url: ${TEST_FEED_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://staging.example.com/stream" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://staging.example.com/stream")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
feed:
  url: wss://feed.example.com/stream
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Feed.TokenEnv != DefaultTokenEnv {
		t.Errorf("Feed.TokenEnv = %q, want default %q", cfg.Feed.TokenEnv, DefaultTokenEnv)
	}
	if cfg.Heartbeat.PingInterval != DefaultPingInterval {
		t.Errorf("Heartbeat.PingInterval = %v, want default %v", cfg.Heartbeat.PingInterval, DefaultPingInterval)
	}
	if cfg.Reconnect.BackoffFactor != DefaultBackoffFactor {
		t.Errorf("Reconnect.BackoffFactor = %g, want default %g", cfg.Reconnect.BackoffFactor, DefaultBackoffFactor)
	}
	if cfg.Queue.MaxPending != DefaultMaxPending {
		t.Errorf("Queue.MaxPending = %d, want default %d", cfg.Queue.MaxPending, DefaultMaxPending)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Feed: FeedConfig{URL: "wss://feed.example.com/stream", TokenEnv: "FEED_TOKEN"},
			Heartbeat: HeartbeatConfig{
				PingInterval: 15 * time.Second,
				PongTimeout:  30 * time.Second,
			},
			Reconnect: ReconnectConfig{
				InitialDelay:   time.Second,
				MaxDelay:       30 * time.Second,
				BackoffFactor:  2.0,
				MaxAttempts:    10,
				JitterFraction: 0.3,
			},
			Queue:   QueueConfig{MaxPending: 100},
			Metrics: MetricsConfig{Port: 9090, Path: "/metrics"},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Feed.URL = "" },
			wantErr: "feed.url is required",
		},
		{
			name:    "non-websocket url",
			mutate:  func(c *Config) { c.Feed.URL = "https://feed.example.com" },
			wantErr: `feed.url must use ws:// or wss://, got "https://feed.example.com"`,
		},
		{
			name:    "pong timeout shorter than ping interval",
			mutate:  func(c *Config) { c.Heartbeat.PongTimeout = time.Second },
			wantErr: "heartbeat.pong_timeout (1s) cannot be shorter than ping_interval (15s)",
		},
		{
			name:    "backoff factor below one",
			mutate:  func(c *Config) { c.Reconnect.BackoffFactor = 0.5 },
			wantErr: "reconnect.backoff_factor must be >= 1, got 0.5",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.Reconnect.JitterFraction = 1.0 },
			wantErr: "reconnect.jitter_fraction must be in [0, 1), got 1",
		},
		{
			name:    "zero queue bound",
			mutate:  func(c *Config) { c.Queue.MaxPending = 0 },
			wantErr: "queue.max_pending must be >= 1",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be debug, info, warn or error, got "trace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// Command feedwatch connects to a market-data feed, maintains the
// configured subscriptions, and logs decoded updates. It exposes
// Prometheus metrics and a health endpoint for operators.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/enigmaview/marketfeed/internal/config"
	"github.com/enigmaview/marketfeed/internal/dispatch"
	"github.com/enigmaview/marketfeed/internal/metrics"
	"github.com/enigmaview/marketfeed/internal/session"
	"github.com/enigmaview/marketfeed/internal/subs"
	"github.com/enigmaview/marketfeed/internal/version"
	"github.com/enigmaview/marketfeed/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/feedwatch.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting feedwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"feed_url", cfg.Feed.URL,
	)

	metrics.Register()

	// Create context with cancellation on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	disp := dispatch.New(logger)
	sess := session.New(sessionConfig(cfg), tokenProvider(cfg.Feed.TokenEnv), disp, logger)
	registry := subs.NewRegistry(sess, logger)

	wireListeners(disp, sess, logger)

	// Health and metrics server
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := sess.Stats()
		status := "healthy"
		code := http.StatusOK
		if stats.State != session.StateOpen {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":            status,
			"session_state":     stats.State.String(),
			"messages_received": stats.MessagesReceived,
			"queue_length":      stats.QueueLength,
			"subscriptions":     len(registry.Symbols()),
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := sess.Connect(ctx); err != nil {
			// Reconnection is already scheduled unless the token is
			// missing; that one is fatal.
			if err == session.ErrNoToken {
				return fmt.Errorf("connect: %w (set %s)", err, cfg.Feed.TokenEnv)
			}
			logger.Warn("initial connect failed, retrying in background", "error", err)
		}

		for _, sym := range cfg.Symbols {
			registry.Acquire(sym)
		}
		logger.Info("subscriptions requested", "symbols", cfg.Symbols)

		<-ctx.Done()
		sess.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("feedwatch failed", "error", err)
		os.Exit(1)
	}

	logger.Info("feedwatch stopped")
}

// newLogger builds the slog logger described by the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// sessionConfig maps the file configuration onto session tuning.
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		URL:                   cfg.Feed.URL,
		ConnectTimeout:        cfg.Feed.ConnectTimeout,
		WriteTimeout:          cfg.Feed.WriteTimeout,
		PingInterval:          cfg.Heartbeat.PingInterval,
		PongTimeout:           cfg.Heartbeat.PongTimeout,
		MaxPendingMessages:    cfg.Queue.MaxPending,
		InitialReconnectDelay: cfg.Reconnect.InitialDelay,
		MaxReconnectDelay:     cfg.Reconnect.MaxDelay,
		BackoffFactor:         cfg.Reconnect.BackoffFactor,
		MaxReconnectAttempts:  cfg.Reconnect.MaxAttempts,
		JitterFraction:        cfg.Reconnect.JitterFraction,
		ResetDelay:            cfg.Reconnect.ResetDelay,
	}
}

// tokenProvider reads the bearer token from the environment on every
// connect, so a rotated token is picked up without a restart.
func tokenProvider(envVar string) session.TokenProvider {
	return func() string {
		return os.Getenv(envVar)
	}
}

// wireListeners attaches the logging consumers: quote updates, feed
// notices, and session lifecycle.
func wireListeners(disp *dispatch.Dispatcher, sess *session.Session, logger *slog.Logger) {
	disp.On(wire.EventPriceUpdate, func(ev wire.Event) {
		u := ev.(wire.PriceUpdate)
		logger.Info("price",
			"symbol", u.Symbol,
			"price", u.Price,
			"bid", u.Bid,
			"ask", u.Ask,
			"change_pct", u.ChangePercent,
		)
	})
	disp.On(wire.EventEnigmaUpdate, func(ev wire.Event) {
		u := ev.(wire.EnigmaUpdate)
		logger.Info("enigma",
			"symbol", u.Symbol,
			"level", u.Level,
			"ath", u.ATH,
			"atl", u.ATL,
		)
	})
	disp.On(wire.EventSymbolRemoved, func(ev wire.Event) {
		u := ev.(wire.SymbolRemoved)
		logger.Warn("symbol removed from feed", "symbol", u.Symbol)
	})
	disp.On(wire.EventError, func(ev wire.Event) {
		u := ev.(wire.ErrorEvent)
		logger.Warn("feed error", "message", u.Message)
	})

	sess.OnStateChange(func(st session.State) {
		logger.Info("session state", "state", st.String())
	})
	sess.OnError(func(err error) {
		logger.Error("session error", "error", err)
	})
}

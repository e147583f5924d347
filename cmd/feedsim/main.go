// Command feedsim runs a simulated market-data feed server. Point a
// feedwatch instance (or a browser dashboard) at ws://<addr>/stream to
// receive plausible streaming quotes without a production feed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/enigmaview/marketfeed/internal/feedsim"
	"github.com/enigmaview/marketfeed/internal/version"
)

func main() {
	addr := flag.String("addr", ":8765", "listen address")
	token := flag.String("token", "", "required bearer token (empty disables auth)")
	tick := flag.Duration("tick", 500*time.Millisecond, "price push interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedsim",
		"version", version.Version,
		"addr", *addr,
		"tick", *tick,
		"auth", *token != "",
	)

	sim := feedsim.New(feedsim.Config{
		Token:        *token,
		TickInterval: *tick,
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/stream", sim.Handler())

	server := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("feedsim failed", "error", err)
		os.Exit(1)
	}

	logger.Info("feedsim stopped")
}

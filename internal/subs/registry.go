// Package subs implements symbol-level subscription reference counting.
//
// Several independent consumers (a watchlist row, a chart overlay, a
// datafeed adapter) may each need the same symbol's live feed. The
// registry tells the server to start streaming only on the first
// acquire and to stop only when the last consumer releases, so a feed
// still needed elsewhere is never torn down early.
//
// The registry is a client-local optimization, not the source of truth:
// a re-established session's server side auto-resubscribes from
// persisted session identity, so acquires are never replayed on
// reconnect.
package subs

import (
	"log/slog"
	"sync"

	"github.com/enigmaview/marketfeed/internal/session"
)

// Sender delivers outbound feed commands. Satisfied by *session.Session.
type Sender interface {
	Send(cmd session.Command)
}

// Registry tracks per-symbol consumer counts.
type Registry struct {
	sender Sender
	logger *slog.Logger

	mu   sync.Mutex
	refs map[string]int
}

// NewRegistry creates a Registry. A nil logger falls back to slog.Default().
func NewRegistry(sender Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sender: sender,
		logger: logger.With("component", "subs"),
		refs:   make(map[string]int),
	}
}

// Acquire registers one more consumer for symbol. The 0→1 transition
// sends a subscribe command; further acquires only bump the count.
func (r *Registry) Acquire(symbol string) {
	r.mu.Lock()
	r.refs[symbol]++
	first := r.refs[symbol] == 1
	r.mu.Unlock()

	if first {
		r.logger.Debug("subscribing", "symbol", symbol)
		r.sender.Send(session.SubscribeCommand(symbol))
	}
}

// Release drops one consumer for symbol. The 1→0 transition sends an
// unsubscribe command and removes the entry. Releasing a symbol that
// was never acquired is a no-op.
func (r *Registry) Release(symbol string) {
	r.mu.Lock()
	n, ok := r.refs[symbol]
	if !ok {
		r.mu.Unlock()
		return
	}
	n--
	last := n == 0
	if last {
		delete(r.refs, symbol)
	} else {
		r.refs[symbol] = n
	}
	r.mu.Unlock()

	if last {
		r.logger.Debug("unsubscribing", "symbol", symbol)
		r.sender.Send(session.UnsubscribeCommand(symbol))
	}
}

// Count returns the current consumer count for symbol.
func (r *Registry) Count(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[symbol]
}

// Symbols returns the symbols with at least one consumer.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.refs))
	for s := range r.refs {
		out = append(out, s)
	}
	return out
}

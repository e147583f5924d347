package subs

import (
	"testing"

	"github.com/enigmaview/marketfeed/internal/session"
)

// recordingSender captures commands for assertions.
type recordingSender struct {
	commands []session.Command
}

func (s *recordingSender) Send(cmd session.Command) {
	s.commands = append(s.commands, cmd)
}

func (s *recordingSender) count(cmdType string, symbol string) int {
	n := 0
	for _, cmd := range s.commands {
		if cmd.Type != cmdType {
			continue
		}
		for _, sym := range cmd.Symbols {
			if sym == symbol {
				n++
			}
		}
	}
	return n
}

func TestAcquire_SubscribesOnce(t *testing.T) {
	sender := &recordingSender{}
	r := NewRegistry(sender, nil)

	const n = 5
	for i := 0; i < n; i++ {
		r.Acquire("BTCUSDT")
	}

	if got := sender.count(session.CommandSubscribe, "BTCUSDT"); got != 1 {
		t.Errorf("subscribe sent %d times, want 1", got)
	}
	if got := r.Count("BTCUSDT"); got != n {
		t.Errorf("Count = %d, want %d", got, n)
	}

	// N-1 releases keep the feed alive.
	for i := 0; i < n-1; i++ {
		r.Release("BTCUSDT")
	}
	if got := sender.count(session.CommandUnsubscribe, "BTCUSDT"); got != 0 {
		t.Errorf("unsubscribe sent %d times before last release, want 0", got)
	}

	// The Nth release unsubscribes exactly once.
	r.Release("BTCUSDT")
	if got := sender.count(session.CommandUnsubscribe, "BTCUSDT"); got != 1 {
		t.Errorf("unsubscribe sent %d times, want 1", got)
	}
	if got := r.Count("BTCUSDT"); got != 0 {
		t.Errorf("Count = %d after final release, want 0", got)
	}
}

func TestRelease_TwoConsumers(t *testing.T) {
	sender := &recordingSender{}
	r := NewRegistry(sender, nil)

	// Two independent consumers acquire the same symbol.
	r.Acquire("ETHUSDT")
	r.Acquire("ETHUSDT")

	// First release must not unsubscribe.
	r.Release("ETHUSDT")
	if got := sender.count(session.CommandUnsubscribe, "ETHUSDT"); got != 0 {
		t.Errorf("unsubscribe sent %d times after first release, want 0", got)
	}

	// Second release unsubscribes exactly once.
	r.Release("ETHUSDT")
	if got := sender.count(session.CommandUnsubscribe, "ETHUSDT"); got != 1 {
		t.Errorf("unsubscribe sent %d times after second release, want 1", got)
	}
}

func TestRelease_UnknownSymbolIsNoop(t *testing.T) {
	sender := &recordingSender{}
	r := NewRegistry(sender, nil)

	r.Release("NEVERSEEN")

	if len(sender.commands) != 0 {
		t.Errorf("commands sent for unknown symbol: %v", sender.commands)
	}
}

func TestSymbols(t *testing.T) {
	sender := &recordingSender{}
	r := NewRegistry(sender, nil)

	r.Acquire("BTCUSDT")
	r.Acquire("ETHUSDT")
	r.Acquire("ETHUSDT")
	r.Release("BTCUSDT")

	syms := r.Symbols()
	if len(syms) != 1 || syms[0] != "ETHUSDT" {
		t.Errorf("Symbols = %v, want [ETHUSDT]", syms)
	}
}

// Package dispatch implements typed publish/subscribe fan-out for
// decoded feed events. Handlers register under an event-type key or the
// wildcard key and are removed through the disposer returned at
// registration. A panicking handler never stops delivery to the rest.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/enigmaview/marketfeed/internal/wire"
)

// Wildcard receives every event regardless of type.
const Wildcard = "*"

// Handler consumes one decoded event.
type Handler func(ev wire.Event)

// DiagnosticFunc is called when a handler panics. The dispatcher has
// already recovered; this is purely informational.
type DiagnosticFunc func(eventType string, recovered any)

// Dispatcher fans decoded events out to registered listeners.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]map[uuid.UUID]Handler
	diag     DiagnosticFunc
}

// New creates a Dispatcher. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger.With("component", "dispatcher"),
		handlers: make(map[string]map[uuid.UUID]Handler),
	}
}

// SetDiagnostic installs a callback for recovered handler panics.
func (d *Dispatcher) SetDiagnostic(fn DiagnosticFunc) {
	d.mu.Lock()
	d.diag = fn
	d.mu.Unlock()
}

// On registers handler under eventType (or Wildcard) and returns a
// disposer that removes exactly this registration. The disposer is safe
// to call more than once.
func (d *Dispatcher) On(eventType string, handler Handler) func() {
	id := uuid.New()

	d.mu.Lock()
	set, ok := d.handlers[eventType]
	if !ok {
		set = make(map[uuid.UUID]Handler)
		d.handlers[eventType] = set
	}
	set[id] = handler
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		if set, ok := d.handlers[eventType]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(d.handlers, eventType)
			}
		}
		d.mu.Unlock()
	}
}

// Dispatch invokes all handlers for the event's exact type, then all
// wildcard handlers, synchronously on the caller's goroutine. Order
// within a class is unspecified.
func (d *Dispatcher) Dispatch(ev wire.Event) {
	key := ev.EventType()

	d.mu.RLock()
	exact := collect(d.handlers[key])
	wild := collect(d.handlers[Wildcard])
	diag := d.diag
	d.mu.RUnlock()

	for _, h := range exact {
		d.invoke(key, h, ev, diag)
	}
	for _, h := range wild {
		d.invoke(key, h, ev, diag)
	}
}

// ListenerCount returns the number of handlers registered for a key.
func (d *Dispatcher) ListenerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType])
}

// invoke runs one handler, isolating panics so remaining handlers of
// this dispatch still run.
func (d *Dispatcher) invoke(key string, h Handler, ev wire.Event, diag DiagnosticFunc) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event_type", key,
				"panic", r,
			)
			if diag != nil {
				diag(key, r)
			}
		}
	}()
	h(ev)
}

// collect snapshots a handler set so dispatch runs without the lock and
// handlers may unsubscribe themselves mid-dispatch.
func collect(set map[uuid.UUID]Handler) []Handler {
	if len(set) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

package session

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNoToken            = errors.New("no bearer token available")
	ErrPongTimeout        = errors.New("heartbeat timed out (no pong)")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnectScheduled
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	default:
		return "unknown"
	}
}

// Command types understood by the server.
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandPing        = "ping"
)

// Command is an outbound control message, sent as JSON text.
type Command struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

// SubscribeCommand asks the server to start streaming the symbols.
func SubscribeCommand(symbols ...string) Command {
	return Command{Type: CommandSubscribe, Symbols: symbols}
}

// UnsubscribeCommand asks the server to stop streaming the symbols.
func UnsubscribeCommand(symbols ...string) Command {
	return Command{Type: CommandUnsubscribe, Symbols: symbols}
}

// PingCommand is the heartbeat probe; the server answers with a
// Heartbeat frame.
func PingCommand() Command {
	return Command{Type: CommandPing}
}

// TokenProvider supplies the current bearer token, or "" when the user
// is not authenticated. Auth internals live outside this package.
type TokenProvider func() string

// Config tunes one session.
type Config struct {
	URL                   string        // WebSocket feed URL
	ConnectTimeout        time.Duration // Handshake deadline per attempt
	WriteTimeout          time.Duration // Write deadline for sends
	PingInterval          time.Duration // Heartbeat probe interval
	PongTimeout           time.Duration // Max wait for the pong before force-closing
	MaxPendingMessages    int           // Pending queue bound (oldest dropped when full)
	InitialReconnectDelay time.Duration // Backoff base delay
	MaxReconnectDelay     time.Duration // Backoff clamp
	BackoffFactor         float64       // Backoff multiplier per attempt
	MaxReconnectAttempts  int           // Attempts before surfacing a terminal error
	JitterFraction        float64       // Random extra delay, as a fraction of the base
	ResetDelay            time.Duration // Pause between disconnect and reconnect in Reset
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:        10 * time.Second,
		WriteTimeout:          5 * time.Second,
		PingInterval:          15 * time.Second,
		PongTimeout:           30 * time.Second,
		MaxPendingMessages:    100,
		InitialReconnectDelay: 1 * time.Second,
		MaxReconnectDelay:     30 * time.Second,
		BackoffFactor:         2.0,
		MaxReconnectAttempts:  10,
		JitterFraction:        0.3,
		ResetDelay:            500 * time.Millisecond,
	}
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	State             State
	ReconnectAttempts int
	MessagesSent      int64
	MessagesReceived  int64
	QueueLength       int
	QueueDropped      int64
	LastLatency       time.Duration
	LastError         error
}

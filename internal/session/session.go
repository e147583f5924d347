package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/enigmaview/marketfeed/internal/dispatch"
	"github.com/enigmaview/marketfeed/internal/metrics"
	"github.com/enigmaview/marketfeed/internal/wire"
)

// Session is the single feed connection for one authenticated user
// context. Construct it once at the composition root and hand it to
// consumers; external code mutates it only through these methods.
type Session struct {
	cfg    Config
	token  TokenProvider
	disp   *dispatch.Dispatcher
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	mu              sync.Mutex
	state           State
	conn            *websocket.Conn
	gen             uint64 // bumped whenever the current connection is superseded
	shouldReconnect bool
	attempts        int
	queue           *pendingQueue
	reconnectTimer  *time.Timer
	heartbeatStop   chan struct{}
	lastPingSent    time.Time
	awaitingPong    bool
	sent            int64
	received        int64
	lastLatency     time.Duration
	lastErr         error

	stateListeners map[uuid.UUID]func(State)
	errorListeners map[uuid.UUID]func(error)
}

// New creates a Session. A nil logger falls back to slog.Default().
func New(cfg Config, token TokenProvider, disp *dispatch.Dispatcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:            cfg,
		token:          token,
		disp:           disp,
		logger:         logger.With("component", "session"),
		state:          StateDisconnected,
		queue:          newPendingQueue(cfg.MaxPendingMessages),
		stateListeners: make(map[uuid.UUID]func(State)),
		errorListeners: make(map[uuid.UUID]func(error)),
	}
}

// Connect establishes the feed connection. It fails fast without any
// network I/O when no bearer token is available, and is idempotent
// while a connection is being established or already open. A failed
// handshake (including timeout) feeds the reconnect policy.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}

	var tok string
	if s.token != nil {
		tok = s.token()
	}
	if tok == "" {
		// Auth failure: surface immediately, never auto-retry without
		// a fresh token.
		s.lastErr = ErrNoToken
		s.mu.Unlock()
		s.notifyError(ErrNoToken)
		return ErrNoToken
	}

	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.shouldReconnect = true
	s.state = StateConnecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.ConnectTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, s.cfg.URL, header)

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		// Superseded by Disconnect while dialing: abandon the result.
		s.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return nil
	}

	if err != nil {
		s.lastErr = err
		terminal := s.scheduleReconnectLocked()
		st := s.state
		s.mu.Unlock()

		s.logger.Warn("connect failed", "url", s.cfg.URL, "error", err)
		s.notifyState(st)
		if terminal {
			s.notifyError(ErrReconnectExhausted)
		}
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.lastErr = nil
	s.awaitingPong = false
	s.heartbeatStop = make(chan struct{})
	stop := s.heartbeatStop
	pending := s.queue.drain()
	s.mu.Unlock()

	metrics.ConnectsTotal.Inc()
	metrics.ConnectionState.Set(1)
	s.logger.Info("connected", "url", s.cfg.URL)
	s.notifyState(StateOpen)

	go s.readLoop(conn, gen)
	go s.heartbeatLoop(conn, gen, stop)

	// Flush queued commands in FIFO order.
	for _, cmd := range pending {
		s.Send(cmd)
	}

	return nil
}

// Send transmits cmd immediately when the session is open; otherwise
// the command joins the bounded pending queue for the next flush.
// Failures never surface to the caller.
func (s *Session) Send(cmd Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		// Queue the command itself; marshalling is retried on flush.
		s.logger.Warn("command marshal failed, queueing", "type", cmd.Type, "error", err)
		s.enqueue(cmd)
		return
	}

	s.mu.Lock()
	if s.state != StateOpen || s.conn == nil {
		if s.queue.push(cmd) {
			metrics.QueueDrops.Inc()
		}
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()

	if err := s.writeText(conn, data); err != nil {
		s.logger.Warn("send failed, queueing", "type", cmd.Type, "error", err)
		s.enqueue(cmd)
		return
	}

	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	metrics.MessagesSent.Inc()
}

// Disconnect closes the session on purpose: reconnection is disabled,
// any scheduled reconnect is cancelled, the heartbeat stops, and the
// pending queue is cleared.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.shouldReconnect = false
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.gen++ // abandon in-flight connect attempts and running loops
	s.stopHeartbeatLocked()
	conn := s.conn
	s.conn = nil
	s.queue.clear()
	wasOpen := s.state == StateOpen
	s.state = StateClosing
	s.mu.Unlock()

	if wasOpen {
		s.notifyState(StateClosing)
	}

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	metrics.ConnectionState.Set(0)
	s.logger.Info("disconnected")
	s.notifyState(StateDisconnected)
}

// Reset disconnects, re-enables reconnection, and connects again after
// a short fixed delay. This is the manual recovery path once automatic
// retries are exhausted.
func (s *Session) Reset(ctx context.Context) error {
	s.Disconnect()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.ResetDelay):
	}

	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()

	return s.Connect(ctx)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:             s.state,
		ReconnectAttempts: s.attempts,
		MessagesSent:      s.sent,
		MessagesReceived:  s.received,
		QueueLength:       s.queue.len(),
		QueueDropped:      s.queue.dropped,
		LastLatency:       s.lastLatency,
		LastError:         s.lastErr,
	}
}

// OnStateChange registers a listener for lifecycle transitions and
// returns its disposer. Notifications are fire-and-forget.
func (s *Session) OnStateChange(fn func(State)) func() {
	id := uuid.New()
	s.mu.Lock()
	s.stateListeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.stateListeners, id)
		s.mu.Unlock()
	}
}

// OnError registers a listener for errors that require caller action
// (missing token, exhausted retries) and returns its disposer.
func (s *Session) OnError(fn func(error)) func() {
	id := uuid.New()
	s.mu.Lock()
	s.errorListeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.errorListeners, id)
		s.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------
// Internal machinery
// -----------------------------------------------------------------------------

// readLoop reads frames until the connection dies, then hands control
// to the reconnect path. Text messages are server acks and are ignored.
func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.connectionLost(gen, err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		s.mu.Lock()
		s.received++
		s.mu.Unlock()
		metrics.MessagesReceived.Inc()

		ev, derr := wire.Decode(data)
		if derr != nil {
			// One bad frame never tears down the connection.
			metrics.DecodeErrors.Inc()
			s.logger.Debug("frame dropped", "error", derr, "bytes", len(data))
			continue
		}
		s.handleEvent(ev)
	}
}

// handleEvent routes one decoded event. Heartbeats update the latency
// measurement and stop here; a batch dispatches the batch event first,
// then one PriceUpdate per record in array order.
func (s *Session) handleEvent(ev wire.Event) {
	switch e := ev.(type) {
	case wire.Heartbeat:
		s.mu.Lock()
		if s.awaitingPong {
			s.lastLatency = time.Since(s.lastPingSent)
			s.awaitingPong = false
			metrics.HeartbeatLatency.Observe(s.lastLatency.Seconds())
		}
		s.mu.Unlock()

	case wire.BatchPriceUpdate:
		s.disp.Dispatch(e)
		for _, u := range e.Updates {
			s.disp.Dispatch(u)
		}

	default:
		s.disp.Dispatch(ev)
	}
}

// heartbeatLoop sends a ping every PingInterval and force-closes the
// connection when a pong is overdue. This catches sockets that died
// without a close event.
func (s *Session) heartbeatLoop(conn *websocket.Conn, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(PingCommand())

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if gen != s.gen || s.state != StateOpen {
				s.mu.Unlock()
				return
			}
			if s.awaitingPong && time.Since(s.lastPingSent) > s.cfg.PongTimeout {
				s.mu.Unlock()
				s.logger.Warn("pong overdue, closing connection",
					"timeout", s.cfg.PongTimeout,
				)
				s.connectionLost(gen, ErrPongTimeout)
				return
			}
			if !s.awaitingPong {
				s.lastPingSent = time.Now()
				s.awaitingPong = true
				s.mu.Unlock()
				if err := s.writeText(conn, ping); err != nil {
					s.logger.Debug("ping write failed", "error", err)
				}
				continue
			}
			s.mu.Unlock()
		}
	}
}

// connectionLost handles an unexpected close exactly once per
// connection generation: both the read loop and the heartbeat funnel
// here, and the generation bump makes the second caller a no-op.
func (s *Session) connectionLost(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.stopHeartbeatLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.lastErr = err
	terminal := s.scheduleReconnectLocked()
	st := s.state
	s.mu.Unlock()

	metrics.ConnectionState.Set(0)
	s.logger.Warn("connection lost", "error", err, "next_state", st.String())
	s.notifyState(st)
	if terminal {
		s.notifyError(ErrReconnectExhausted)
	}
}

// scheduleReconnectLocked arms the reconnect timer for the next
// attempt, or reports a terminal failure when attempts are exhausted.
// Caller holds s.mu.
func (s *Session) scheduleReconnectLocked() (terminal bool) {
	if !s.shouldReconnect {
		s.state = StateDisconnected
		return false
	}
	if s.cfg.MaxReconnectAttempts > 0 && s.attempts >= s.cfg.MaxReconnectAttempts {
		s.shouldReconnect = false
		s.state = StateDisconnected
		s.lastErr = ErrReconnectExhausted
		return true
	}

	s.attempts++
	delay := s.delayForAttempt(s.attempts)
	s.state = StateReconnectScheduled
	metrics.ReconnectsScheduled.Inc()
	s.logger.Info("reconnect scheduled",
		"attempt", s.attempts,
		"delay", delay,
	)
	s.reconnectTimer = time.AfterFunc(delay, func() {
		if err := s.Connect(context.Background()); err != nil {
			s.logger.Debug("reconnect attempt failed", "error", err)
		}
	})
	return false
}

// delayForAttempt computes min(maxDelay, initial × factor^(attempt−1))
// plus random jitter in [0, JitterFraction) of that base, so many
// clients losing one server do not reconnect in lockstep.
func (s *Session) delayForAttempt(attempt int) time.Duration {
	base := float64(s.cfg.InitialReconnectDelay) * math.Pow(s.cfg.BackoffFactor, float64(attempt-1))
	if max := float64(s.cfg.MaxReconnectDelay); base > max {
		base = max
	}
	jitter := base * s.cfg.JitterFraction * rand.Float64()
	return time.Duration(base + jitter)
}

func (s *Session) stopHeartbeatLocked() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

func (s *Session) enqueue(cmd Command) {
	s.mu.Lock()
	if s.queue.push(cmd) {
		metrics.QueueDrops.Inc()
	}
	s.mu.Unlock()
}

func (s *Session) writeText(conn *websocket.Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) notifyState(st State) {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.stateListeners))
	for _, fn := range s.stateListeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (s *Session) notifyError(err error) {
	s.mu.Lock()
	fns := make([]func(error), 0, len(s.errorListeners))
	for _, fn := range s.errorListeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

package feedsim

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/enigmaview/marketfeed/internal/session"
	"github.com/enigmaview/marketfeed/internal/wire"
)

// Config tunes the simulator.
type Config struct {
	Token        string        // expected bearer token; empty disables auth
	TickInterval time.Duration // price push cadence
	EnigmaEvery  int           // emit an EnigmaUpdate every N ticks per symbol
}

// DefaultConfig returns simulator defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: 500 * time.Millisecond,
		EnigmaEvery:  10,
	}
}

// Server is a simulated feed endpoint. One Server handles any number of
// concurrent client connections, each with its own subscription set.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	quotes map[string]*quote
}

// quote is the walk state for one symbol.
type quote struct {
	price  float64
	open   float64
	high   float64
	low    float64
	ath    float64
	atl    float64
	volume float64
}

// New creates a simulator. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.EnigmaEvery <= 0 {
		cfg.EnigmaEvery = DefaultConfig().EnigmaEvery
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("component", "feedsim"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		quotes: make(map[string]*quote),
	}
}

// Handler returns the HTTP handler for the feed endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Token != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{srv: s, conn: conn, subs: make(map[string]bool)}
	s.logger.Info("client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go c.pushLoop(done)
	c.readLoop()
	close(done)
	conn.Close()
	s.logger.Info("client disconnected", "remote", r.RemoteAddr)
}

// client is one connected consumer.
type client struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex
	subMu   sync.Mutex
	subs    map[string]bool
	ticks   int
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd session.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.srv.logger.Debug("bad command", "error", err)
			continue
		}

		switch cmd.Type {
		case session.CommandSubscribe:
			c.subMu.Lock()
			for _, sym := range cmd.Symbols {
				c.subs[sym] = true
			}
			c.subMu.Unlock()
		case session.CommandUnsubscribe:
			c.subMu.Lock()
			for _, sym := range cmd.Symbols {
				delete(c.subs, sym)
			}
			c.subMu.Unlock()
		case session.CommandPing:
			c.writeFrame(wire.Heartbeat{Timestamp: time.Now().UnixMilli()})
		default:
			c.srv.logger.Debug("unknown command", "type", cmd.Type)
		}
	}
}

func (c *client) pushLoop(done <-chan struct{}) {
	ticker := time.NewTicker(c.srv.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.pushTick()
		}
	}
}

// pushTick emits one round of updates for the current subscription set:
// a batch frame when more than one symbol is subscribed, a plain price
// frame otherwise, and a periodic oscillator frame per symbol.
func (c *client) pushTick() {
	c.subMu.Lock()
	symbols := make([]string, 0, len(c.subs))
	for sym := range c.subs {
		symbols = append(symbols, sym)
	}
	c.ticks++
	tick := c.ticks
	c.subMu.Unlock()

	if len(symbols) == 0 {
		return
	}

	now := time.Now().UnixMilli()
	updates := make([]wire.PriceUpdate, 0, len(symbols))
	for _, sym := range symbols {
		updates = append(updates, c.srv.step(sym, now))
	}

	if len(updates) == 1 {
		c.writeFrame(updates[0])
	} else {
		c.writeFrame(wire.BatchPriceUpdate{Timestamp: now, Updates: updates})
	}

	if tick%c.srv.cfg.EnigmaEvery == 0 {
		for _, sym := range symbols {
			c.writeFrame(c.srv.enigma(sym, now))
		}
	}
}

func (c *client) writeFrame(ev wire.Event) {
	frame, err := wire.Encode(ev)
	if err != nil {
		c.srv.logger.Warn("encode failed", "event", ev.EventType(), "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.srv.logger.Debug("write failed", "error", err)
	}
}

// step advances the random walk for sym and returns the resulting quote.
func (s *Server) step(sym string, now int64) wire.PriceUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotes[sym]
	if q == nil {
		start := 100 + rand.Float64()*900
		q = &quote{price: start, open: start, high: start, low: start, ath: start, atl: start}
		s.quotes[sym] = q
	}

	// Bounded walk: at most ±0.5% per tick.
	q.price *= 1 + (rand.Float64()-0.5)*0.01
	if q.price > q.high {
		q.high = q.price
	}
	if q.price < q.low {
		q.low = q.price
	}
	if q.price > q.ath {
		q.ath = q.price
	}
	if q.price < q.atl {
		q.atl = q.price
	}
	q.volume += rand.Float64() * 10

	change := q.price - q.open
	spread := q.price * 0.0002
	return wire.PriceUpdate{
		Symbol:        sym,
		Timestamp:     now,
		Price:         q.price,
		Bid:           q.price - spread,
		Ask:           q.price + spread,
		Volume:        q.volume,
		Change24h:     change,
		ChangePercent: change / q.open * 100,
		Open24h:       q.open,
		High24h:       q.high,
		Low24h:        q.low,
	}
}

// enigma derives the 0-100 oscillator and retracement levels for sym.
func (s *Server) enigma(sym string, now int64) wire.EnigmaUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotes[sym]
	if q == nil {
		return wire.EnigmaUpdate{Symbol: sym, Timestamp: now}
	}

	span := q.ath - q.atl
	level := 50.0
	if span > 0 {
		level = (q.price - q.atl) / span * 100
	}
	fib := func(ratio float64) float64 { return q.atl + span*ratio }

	return wire.EnigmaUpdate{
		Symbol:    sym,
		Timestamp: now,
		Level:     level,
		ATH:       q.ath,
		ATL:       q.atl,
		Fib: wire.FibLevels{
			L0:   fib(0),
			L236: fib(0.236),
			L382: fib(0.382),
			L500: fib(0.5),
			L618: fib(0.618),
			L786: fib(0.786),
			L100: fib(1),
		},
	}
}

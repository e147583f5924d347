package wire

// Type codes for the low 15 bits of the frame type field.
const (
	TypePriceUpdate   uint16 = 0x0001
	TypeEnigmaUpdate  uint16 = 0x0002
	TypeSessionChange uint16 = 0x0003
	TypeMarketWatch   uint16 = 0x0004
	TypeHeartbeat     uint16 = 0x0005
	TypeSyncProgress  uint16 = 0x0006
	TypeSyncComplete  uint16 = 0x0007
	TypeSyncError     uint16 = 0x0008
	TypeSymbolRemoved uint16 = 0x0009
	TypeError         uint16 = 0x00FF

	// BatchFlag marks a frame carrying multiple price records.
	BatchFlag uint16 = 0x8000
)

// Event type keys used by the dispatcher.
const (
	EventPriceUpdate   = "price_update"
	EventPriceBatch    = "price_batch"
	EventEnigmaUpdate  = "enigma_update"
	EventSessionChange = "session_change"
	EventMarketWatch   = "market_watch"
	EventHeartbeat     = "heartbeat"
	EventSyncProgress  = "sync_progress"
	EventSyncComplete  = "sync_complete"
	EventSyncError     = "sync_error"
	EventSymbolRemoved = "symbol_removed"
	EventError         = "error"
	EventUnknown       = "unknown"
)

// Event is the closed set of decoded frame variants. Concrete types are
// value structs and are immutable once decoded. The sealed marker keeps
// the set closed to this package.
type Event interface {
	// EventType returns the dispatcher key for this variant.
	EventType() string

	sealed()
}

// PriceUpdate is a live quote for one symbol. Timestamp is milliseconds
// since epoch (the wire carries whole seconds).
type PriceUpdate struct {
	Symbol        string
	Timestamp     int64
	Price         float64
	Bid           float64
	Ask           float64
	Volume        float64
	Change24h     float64
	ChangePercent float64
	Open24h       float64
	High24h       float64
	Low24h        float64
}

// BatchPriceUpdate is an ordered sequence of price records sharing one
// timestamp. Consumers may listen at batch or per-record granularity.
type BatchPriceUpdate struct {
	Timestamp int64
	Updates   []PriceUpdate
}

// FibLevels are Fibonacci retracement levels between the all-time low
// and all-time high, keyed 0 / 23.6 / 38.2 / 50 / 61.8 / 78.6 / 100.
type FibLevels struct {
	L0   float64
	L236 float64
	L382 float64
	L500 float64
	L618 float64
	L786 float64
	L100 float64
}

// EnigmaUpdate carries the derived 0-100 oscillator for one symbol:
// the current price's position between all-time low and all-time high,
// plus the retracement band levels.
type EnigmaUpdate struct {
	Symbol    string
	Timestamp int64
	Level     float64
	ATH       float64
	ATL       float64
	Fib       FibLevels
}

// SessionChange notifies that the server-side session identity changed
// (e.g. the same account logged in elsewhere).
type SessionChange struct {
	SessionID string
	Timestamp int64
	Active    bool
}

// MarketWatch is a compact watchlist row push.
type MarketWatch struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Change24h float64
	High24h   float64
	Low24h    float64
}

// Heartbeat is the server's reply to a ping command. The session uses
// it for latency measurement; it is never forwarded to listeners.
type Heartbeat struct {
	Timestamp int64
}

// SyncProgress reports server-side backfill progress for a symbol,
// in percent [0,100].
type SyncProgress struct {
	Symbol    string
	Timestamp int64
	Progress  float64
}

// SyncComplete marks the end of a server-side backfill for a symbol.
type SyncComplete struct {
	Symbol    string
	Timestamp int64
}

// SyncError reports a failed server-side backfill.
type SyncError struct {
	Symbol    string
	Timestamp int64
	Message   string
}

// SymbolRemoved notifies that a symbol was delisted from the feed.
type SymbolRemoved struct {
	Symbol    string
	Timestamp int64
}

// ErrorEvent carries a human-readable server error.
type ErrorEvent struct {
	Timestamp int64
	Message   string
}

// Unknown preserves a structurally valid frame whose type code this
// codec version does not understand. New layouts get new type codes,
// never a silent re-reading of existing ones.
type Unknown struct {
	TypeCode uint16
	Payload  []byte
}

func (PriceUpdate) EventType() string      { return EventPriceUpdate }
func (BatchPriceUpdate) EventType() string { return EventPriceBatch }
func (EnigmaUpdate) EventType() string     { return EventEnigmaUpdate }
func (SessionChange) EventType() string    { return EventSessionChange }
func (MarketWatch) EventType() string      { return EventMarketWatch }
func (Heartbeat) EventType() string        { return EventHeartbeat }
func (SyncProgress) EventType() string     { return EventSyncProgress }
func (SyncComplete) EventType() string     { return EventSyncComplete }
func (SyncError) EventType() string        { return EventSyncError }
func (SymbolRemoved) EventType() string    { return EventSymbolRemoved }
func (ErrorEvent) EventType() string       { return EventError }
func (Unknown) EventType() string          { return EventUnknown }

func (PriceUpdate) sealed()      {}
func (BatchPriceUpdate) sealed() {}
func (EnigmaUpdate) sealed()     {}
func (SessionChange) sealed()    {}
func (MarketWatch) sealed()      {}
func (Heartbeat) sealed()        {}
func (SyncProgress) sealed()     {}
func (SyncComplete) sealed()     {}
func (SyncError) sealed()        {}
func (SymbolRemoved) sealed()    {}
func (ErrorEvent) sealed()       {}
func (Unknown) sealed()          {}

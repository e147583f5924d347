package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// Errors
var (
	ErrFrameTooShort = errors.New("frame shorter than minimum header")
	ErrChecksum      = errors.New("frame checksum mismatch")
	ErrTruncated     = errors.New("frame payload truncated")
)

// minFrameLen is the type field plus the trailing checksum.
const minFrameLen = 2 + 4

// Decode translates one frame into a typed event. Checks run in order:
// length, checksum, then the fixed per-type layout. Unknown type codes
// are not an error — they decode to Unknown so the stream keeps flowing.
func Decode(frame []byte) (Event, error) {
	if len(frame) < minFrameLen {
		return nil, ErrFrameTooShort
	}

	body := frame[:len(frame)-4]
	want := binary.LittleEndian.Uint32(frame[len(frame)-4:])
	if crc32.ChecksumIEEE(body) != want {
		return nil, ErrChecksum
	}

	typ := binary.LittleEndian.Uint16(body[:2])
	r := &reader{buf: body, off: 2}

	if typ&BatchFlag != 0 {
		if typ&^BatchFlag != TypePriceUpdate {
			return Unknown{TypeCode: typ, Payload: cloneBytes(body[2:])}, nil
		}
		return decodeBatch(r)
	}

	var ev Event
	switch typ {
	case TypePriceUpdate:
		ev = decodePrice(r)
	case TypeEnigmaUpdate:
		ev = decodeEnigma(r)
	case TypeSessionChange:
		sym, ts := r.header()
		ev = SessionChange{SessionID: sym, Timestamp: ts, Active: r.f64() != 0}
	case TypeMarketWatch:
		sym, ts := r.header()
		ev = MarketWatch{Symbol: sym, Timestamp: ts, Price: r.f64(), Change24h: r.f64(), High24h: r.f64(), Low24h: r.f64()}
	case TypeHeartbeat:
		_, ts := r.header()
		ev = Heartbeat{Timestamp: ts}
	case TypeSyncProgress:
		sym, ts := r.header()
		ev = SyncProgress{Symbol: sym, Timestamp: ts, Progress: r.f64()}
	case TypeSyncComplete:
		sym, ts := r.header()
		ev = SyncComplete{Symbol: sym, Timestamp: ts}
	case TypeSyncError:
		sym, ts := r.header()
		ev = SyncError{Symbol: sym, Timestamp: ts, Message: r.str()}
	case TypeSymbolRemoved:
		sym, ts := r.header()
		ev = SymbolRemoved{Symbol: sym, Timestamp: ts}
	case TypeError:
		_, ts := r.header()
		ev = ErrorEvent{Timestamp: ts, Message: r.str()}
	default:
		return Unknown{TypeCode: typ, Payload: cloneBytes(body[2:])}, nil
	}

	if r.err != nil {
		return nil, r.err
	}
	return ev, nil
}

// Encode is the inverse of Decode. Millisecond timestamps are written
// as whole seconds on the wire.
func Encode(ev Event) ([]byte, error) {
	w := &writer{}

	switch e := ev.(type) {
	case PriceUpdate:
		w.u16(TypePriceUpdate)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}
		w.f64(e.Price, e.Bid, e.Ask, e.Volume, e.Change24h, e.ChangePercent, e.Open24h, e.High24h, e.Low24h)

	case BatchPriceUpdate:
		if len(e.Updates) > math.MaxUint16 {
			return nil, fmt.Errorf("batch of %d records exceeds uint16 count", len(e.Updates))
		}
		w.u16(TypePriceUpdate | BatchFlag)
		w.u16(uint16(len(e.Updates)))
		w.u32(uint32(e.Timestamp / 1000))
		for _, u := range e.Updates {
			if err := w.str(u.Symbol); err != nil {
				return nil, err
			}
			w.f64(u.Price, u.Bid, u.Ask, u.Volume, u.Change24h, u.ChangePercent, u.Open24h, u.High24h, u.Low24h)
		}

	case EnigmaUpdate:
		w.u16(TypeEnigmaUpdate)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}
		w.f64(e.Level, e.ATH, e.ATL, e.Fib.L0, e.Fib.L236, e.Fib.L382, e.Fib.L500, e.Fib.L618, e.Fib.L786, e.Fib.L100)

	case SessionChange:
		w.u16(TypeSessionChange)
		if err := w.header(e.SessionID, e.Timestamp); err != nil {
			return nil, err
		}
		active := 0.0
		if e.Active {
			active = 1.0
		}
		w.f64(active)

	case MarketWatch:
		w.u16(TypeMarketWatch)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}
		w.f64(e.Price, e.Change24h, e.High24h, e.Low24h)

	case Heartbeat:
		w.u16(TypeHeartbeat)
		if err := w.header("", e.Timestamp); err != nil {
			return nil, err
		}

	case SyncProgress:
		w.u16(TypeSyncProgress)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}
		w.f64(e.Progress)

	case SyncComplete:
		w.u16(TypeSyncComplete)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}

	case SyncError:
		w.u16(TypeSyncError)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}
		if err := w.str(e.Message); err != nil {
			return nil, err
		}

	case SymbolRemoved:
		w.u16(TypeSymbolRemoved)
		if err := w.header(e.Symbol, e.Timestamp); err != nil {
			return nil, err
		}

	case ErrorEvent:
		w.u16(TypeError)
		if err := w.header("", e.Timestamp); err != nil {
			return nil, err
		}
		if err := w.str(e.Message); err != nil {
			return nil, err
		}

	case Unknown:
		w.u16(e.TypeCode)
		w.buf = append(w.buf, e.Payload...)

	default:
		return nil, fmt.Errorf("unencodable event type %T", ev)
	}

	sum := crc32.ChecksumIEEE(w.buf)
	w.u32(sum)
	return w.buf, nil
}

func decodePrice(r *reader) PriceUpdate {
	sym, ts := r.header()
	return PriceUpdate{
		Symbol: sym, Timestamp: ts,
		Price: r.f64(), Bid: r.f64(), Ask: r.f64(), Volume: r.f64(),
		Change24h: r.f64(), ChangePercent: r.f64(),
		Open24h: r.f64(), High24h: r.f64(), Low24h: r.f64(),
	}
}

func decodeEnigma(r *reader) EnigmaUpdate {
	sym, ts := r.header()
	return EnigmaUpdate{
		Symbol: sym, Timestamp: ts,
		Level: r.f64(), ATH: r.f64(), ATL: r.f64(),
		Fib: FibLevels{
			L0: r.f64(), L236: r.f64(), L382: r.f64(),
			L500: r.f64(), L618: r.f64(), L786: r.f64(), L100: r.f64(),
		},
	}
}

// decodeBatch reads count:uint16, timestamp:uint32, then count records of
// (symbolLen, symbol, 9 doubles). The batch timestamp applies to every record.
func decodeBatch(r *reader) (Event, error) {
	count := int(r.u16())
	ts := int64(r.u32()) * 1000

	updates := make([]PriceUpdate, 0, count)
	for i := 0; i < count; i++ {
		u := PriceUpdate{
			Symbol: r.str(), Timestamp: ts,
			Price: r.f64(), Bid: r.f64(), Ask: r.f64(), Volume: r.f64(),
			Change24h: r.f64(), ChangePercent: r.f64(),
			Open24h: r.f64(), High24h: r.f64(), Low24h: r.f64(),
		}
		if r.err != nil {
			return nil, r.err
		}
		updates = append(updates, u)
	}

	if r.err != nil {
		return nil, r.err
	}
	return BatchPriceUpdate{Timestamp: ts, Updates: updates}, nil
}

// -----------------------------------------------------------------------------
// Byte cursor helpers
// -----------------------------------------------------------------------------

// reader walks a frame body. The first short read latches ErrTruncated
// and every later read returns zero values, so decoders stay linear.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// str reads a 2-byte length followed by that many UTF-8 bytes.
func (r *reader) str() string {
	n := int(r.u16())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// header reads the common symbolLen/timestamp/symbol prefix and converts
// the wire's whole seconds to milliseconds.
func (r *reader) header() (string, int64) {
	n := int(r.u16())
	ts := int64(r.u32()) * 1000
	b := r.take(n)
	if b == nil {
		return "", ts
	}
	return string(b), ts
}

// writer builds a frame body.
type writer struct {
	buf []byte
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) f64(vs ...float64) {
	for _, v := range vs {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
	}
}

func (w *writer) str(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds uint16 length prefix", len(s))
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *writer) header(sym string, tsMillis int64) error {
	if len(sym) > math.MaxUint16 {
		return fmt.Errorf("symbol of %d bytes exceeds uint16 length prefix", len(sym))
	}
	w.u16(uint16(len(sym)))
	w.u32(uint32(tsMillis / 1000))
	w.buf = append(w.buf, sym...)
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Package wire implements the binary feed protocol.
//
// A frame is a little-endian byte sequence:
//
//	┌──────────────┬─────────┬───────────────┐
//	│ type (2B)    │ payload │ CRC-32 (4B)   │
//	└──────────────┴─────────┴───────────────┘
//
// The high bit of the type field marks a batch frame; the low 15 bits
// are the type code. The checksum covers every byte before the trailing
// four. Decoding is pure and stateless: corrupt or truncated frames
// produce a typed error, unknown type codes produce an Unknown event,
// and nothing ever panics outward — the transport keeps reading the
// stream either way.
package wire

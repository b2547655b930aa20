// Package binio is a transport-agnostic binary I/O engine. It decodes and
// encodes primitives, length-prefixed blocks and encoded text over three
// kinds of backing store: byte streams (io.Reader/io.Writer), in-memory
// chunked sequences, and pipe-like segment transports. Payloads are never
// assumed to arrive contiguously; every decode path tolerates element
// boundaries landing anywhere between chunks.
package binio

import "encoding/binary"

var (
	BE = binary.BigEndian
	LE = binary.LittleEndian
	// Order is the default byte order for new readers and writers. Little
	// endian matches the host order everywhere this is expected to run.
	Order binary.ByteOrder = LE
)

// LengthFormat selects the wire representation of a block length prefix.
type LengthFormat uint8

const (
	// Raw is a 4-byte signed length in the reader's or writer's byte order.
	Raw LengthFormat = iota
	// RawLittleEndian is a 4-byte signed little-endian length.
	RawLittleEndian
	// RawBigEndian is a 4-byte signed big-endian length.
	RawBigEndian
	// Compressed is a 7-bit variable-length unsigned encoding, 1 to 5 bytes.
	Compressed
)

func (f LengthFormat) valid() bool { return f <= Compressed }

// order resolves the concrete byte order for a Raw prefix. Compressed has
// no byte order; callers must not ask for one.
func (f LengthFormat) order(instance binary.ByteOrder) binary.ByteOrder {
	switch f {
	case RawLittleEndian:
		return LE
	case RawBigEndian:
		return BE
	default:
		return instance
	}
}

func (f LengthFormat) String() string {
	switch f {
	case Raw:
		return "raw"
	case RawLittleEndian:
		return "raw-little-endian"
	case RawBigEndian:
		return "raw-big-endian"
	case Compressed:
		return "compressed"
	default:
		return "invalid"
	}
}

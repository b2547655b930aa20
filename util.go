package binio

import (
	"io"
	"math"

	"golang.org/x/exp/constraints"
)

// BUFFER_SIZE is the default size of the pooled buffer behind Buffered and
// the stream chunk source.
const BUFFER_SIZE = 4096

// maxBufferSize caps every internal buffer growth. Requests beyond it fail
// with ErrInsufficientMemory before any allocation is attempted.
const maxBufferSize = math.MaxInt >> 1

var (
	empty   [BUFFER_SIZE]byte
	discard [BUFFER_SIZE]byte
)

// Roundup rounds n up to the nearest multiple of align.
func Roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// grownCap returns the next capacity for a buffer of capacity have that must
// hold need bytes: doubling growth from a small base, refused past the ceiling.
func grownCap(have, need int) (int, error) {
	if need > maxBufferSize {
		return 0, ErrInsufficientMemory
	}
	c := have
	if c < 64 {
		c = 64
	}
	for c < need {
		c <<= 1
	}
	if c > maxBufferSize {
		c = maxBufferSize
	}
	return c, nil
}

// Discard reads and drops n bytes from r.
func Discard(r io.Reader, n int64) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 {
		return 0, ErrDiscardNegative
	}
	if n <= BUFFER_SIZE {
		skip, err := io.ReadFull(r, discard[:n])
		return int64(skip), err
	}
	return io.CopyN(io.Discard, r, n)
}

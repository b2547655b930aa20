package binio

import "errors"

var (
	// ErrNilIO indicates that a constructor was called with a nil reader, writer or store.
	ErrNilIO = errors.New("binio: constructed with a nil io.Reader/io.Writer")

	// ErrTruncated indicates that the input ended partway through an element:
	// a primitive, a length prefix, or the body of a length-prefixed block.
	// It is distinct from io.EOF, which marks a clean end between elements.
	ErrTruncated = errors.New("binio: truncated input")

	// ErrMalformedVarint indicates a compressed length whose encoding is invalid:
	// a fifth byte with the continuation bit set, or payload bits beyond bit 31.
	ErrMalformedVarint = errors.New("binio: malformed 7-bit encoded length")

	// ErrLengthOutOfRange indicates a decoded or requested length that is
	// negative or does not fit a 32-bit signed length prefix.
	ErrLengthOutOfRange = errors.New("binio: length out of range")

	// ErrInvalidLengthFormat indicates an unknown LengthFormat value.
	ErrInvalidLengthFormat = errors.New("binio: invalid length format")

	// ErrBufferTooSmall indicates a caller-supplied buffer that cannot hold
	// the value being encoded or decoded.
	ErrBufferTooSmall = errors.New("binio: buffer too small")

	// ErrInsufficientMemory indicates a buffer growth request beyond the
	// supported ceiling. The request is refused before any allocation.
	ErrInsufficientMemory = errors.New("binio: buffer growth over limit")

	// ErrBufferOverflow indicates that more buffered data was requested than
	// the buffer can ever hold without the caller draining it first. This is
	// a caller protocol violation, not an input error.
	ErrBufferOverflow = errors.New("binio: internal buffer full and undrained")

	// ErrClosed indicates use of a Buffered, file reader/writer or pipe end
	// after Close.
	ErrClosed = errors.New("binio: closed")

	// ErrInvalidSeek indicates a seek to an invalid position.
	ErrInvalidSeek = errors.New("binio: seek to an invalid position")

	// ErrUnsupportedNegativeSeek indicates a backward seek was attempted on a forward-only seeker.
	ErrUnsupportedNegativeSeek = errors.New("binio: unsupported negative offset for forward-only seeker")

	// ErrInvalidWhence indicates that an invalid 'whence' parameter was provided to a Seek operation.
	ErrInvalidWhence = errors.New("binio: unsupported whence")

	// ErrInvalidWrite indicates that an io.Writer returned an invalid (negative) count from Write.
	ErrInvalidWrite = errors.New("binio: writer returned invalid count from Write")

	// ErrDiscardNegative indicates a Skip or Discard with a negative byte count.
	ErrDiscardNegative = errors.New("binio: cannot discard negative number of bytes")
)

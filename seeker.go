package binio

import (
	"fmt"
	"io"
)

// forwardSeeker simulates forward-only seeking over a plain reader by
// discarding bytes. Backward seeks fail with ErrUnsupportedNegativeSeek.
type forwardSeeker struct {
	r   io.Reader
	off int64
}

// ForwardSeeker adds forward-only Seek to r, so stream inputs can sit
// under layers that reposition, like Buffered. A reader that already
// seeks is returned unchanged.
func ForwardSeeker(r io.Reader) io.ReadSeeker {
	if r == nil {
		panic("binio: ForwardSeeker called with a nil io.Reader")
	}
	if s, ok := r.(io.ReadSeeker); ok {
		return s
	}
	return &forwardSeeker{r: r}
}

// ForwardSeekCloser is ForwardSeeker for inputs that must also be closed.
func ForwardSeekCloser(r io.ReadCloser) io.ReadSeekCloser {
	if r == nil {
		panic("binio: ForwardSeekCloser called with a nil io.ReadCloser")
	}
	if s, ok := r.(io.ReadSeekCloser); ok {
		return s
	}
	return &forwardSeekCloser{forwardSeeker{r: r}, r}
}

type forwardSeekCloser struct {
	forwardSeeker
	c io.Closer
}

func (s *forwardSeekCloser) Close() error { return s.c.Close() }

func (s *forwardSeeker) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.off += int64(n)
	return n, err
}

// Seek supports io.SeekStart and io.SeekCurrent targets at or past the
// current position. The skipped bytes are read and dropped.
func (s *forwardSeeker) Seek(offset int64, whence int) (int64, error) {
	var skip int64
	switch whence {
	case io.SeekCurrent:
		skip = offset
	case io.SeekStart:
		skip = offset - s.off
	default:
		return s.off, fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}
	if skip < 0 {
		return s.off, fmt.Errorf("%w: %d bytes behind position %d", ErrUnsupportedNegativeSeek, -skip, s.off)
	}
	if skip == 0 {
		return s.off, nil
	}
	n, err := Discard(s.r, skip)
	s.off += n
	return s.off, err
}

package binio

import (
	"errors"
	"fmt"
	"io"
)

const minBufferedSize = 16

// Buffered wraps a byte store with one pooled buffer that serves both
// read-ahead and write coalescing. The buffer is rented lazily on the first
// operation that needs it and returned to the pool the moment it empties,
// so idle instances hold no memory.
//
// The two modes are exclusive: pending coalesced writes imply an empty read
// window, and vice versa. Reading flushes pending writes first; writing
// while read-ahead is pending seeks the store back by the unread amount and
// discards the window, so the logical position never drifts.
type Buffered struct {
	r      io.Reader
	w      io.Writer
	seeker io.Seeker
	closer io.Closer

	size  int
	slab  *[]byte
	class int
	buf   []byte // (*slab)[:size], nil while released

	rpos, rlen int   // read window cursors; unread data is buf[rpos:rlen]
	wpos       int   // pending coalesced writes are buf[:wpos]
	off        int64 // underlying store position
	closed     bool
}

var _ Source = (*Buffered)(nil)

// NewBuffered buffers a read-write store. Seek and Close capabilities are
// picked up when the store has them.
func NewBuffered(rw io.ReadWriter, size int) (*Buffered, error) {
	if rw == nil {
		return nil, ErrNilIO
	}
	return newBuffered(rw, rw, rw, size), nil
}

// NewBufferedReader buffers a read-only store.
func NewBufferedReader(r io.Reader, size int) (*Buffered, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	return newBuffered(r, nil, r, size), nil
}

// NewBufferedWriter buffers a write-only store.
func NewBufferedWriter(w io.Writer, size int) (*Buffered, error) {
	if w == nil {
		return nil, ErrNilIO
	}
	return newBuffered(nil, w, w, size), nil
}

func newBuffered(r io.Reader, w io.Writer, inner any, size int) *Buffered {
	if size <= 0 {
		size = BUFFER_SIZE
	}
	if size < minBufferedSize {
		size = minBufferedSize
	}
	b := &Buffered{r: r, w: w, size: size}
	b.seeker, _ = inner.(io.Seeker)
	b.closer, _ = inner.(io.Closer)
	if b.seeker != nil {
		// Buffer coordinates are absolute store positions. A store whose
		// Seek does not work is treated as forward-only from here on.
		if pos, err := b.seeker.Seek(0, io.SeekCurrent); err == nil {
			b.off = pos
		} else {
			b.seeker = nil
		}
	}
	return b
}

// Size returns the buffer capacity.
func (b *Buffered) Size() int { return b.size }

// Buffered returns the number of unread bytes in the read window.
func (b *Buffered) Buffered() int { return b.rlen - b.rpos }

// Pending returns the number of coalesced bytes not yet written through.
func (b *Buffered) Pending() int { return b.wpos }

// retained reports whether the instance currently holds a pooled buffer.
func (b *Buffered) retained() bool { return b.slab != nil }

func (b *Buffered) ensure() {
	if b.slab == nil {
		b.slab, b.class = rentSlab(b.size)
		b.buf = (*b.slab)[:b.size]
	}
}

// maybeRelease returns the buffer to the pool once both modes are idle.
func (b *Buffered) maybeRelease() {
	if b.slab != nil && b.rpos == b.rlen && b.wpos == 0 {
		b.rpos, b.rlen = 0, 0
		returnSlab(b.slab, b.class)
		b.slab = nil
		b.buf = nil
	}
}

// flushPending writes the coalesced bytes through to the store.
func (b *Buffered) flushPending() error {
	if b.wpos == 0 {
		return nil
	}
	if b.w == nil {
		return errors.ErrUnsupported
	}
	n, err := b.w.Write(b.buf[:b.wpos])
	if n < 0 {
		return ErrInvalidWrite
	}
	if err == nil && n < b.wpos {
		err = io.ErrShortWrite
	}
	if err != nil {
		// Keep the unwritten tail so a retry does not lose data.
		copy(b.buf, b.buf[n:b.wpos])
		b.wpos -= n
		b.off += int64(n)
		return err
	}
	b.off += int64(n)
	b.wpos = 0
	b.maybeRelease()
	return nil
}

// Flush pushes pending writes through to the store.
func (b *Buffered) Flush() error {
	if b.closed {
		return ErrClosed
	}
	return b.flushPending()
}

// startWrite switches to write mode, reconciling any read-ahead by seeking
// the store back to the logical position.
func (b *Buffered) startWrite() error {
	if unread := b.rlen - b.rpos; unread > 0 {
		if b.seeker == nil {
			return fmt.Errorf("%w: cannot reposition non-seekable store over read-ahead", ErrInvalidSeek)
		}
		if _, err := b.seeker.Seek(int64(-unread), io.SeekCurrent); err != nil {
			return err
		}
		b.off -= int64(unread)
	}
	b.rpos, b.rlen = 0, 0
	return nil
}

// fill reads once from the store into the empty read window.
func (b *Buffered) fill() error {
	if b.r == nil {
		return errors.ErrUnsupported
	}
	if b.rlen == b.size && b.rpos == 0 {
		return ErrBufferOverflow
	}
	if b.rpos == b.rlen {
		b.rpos, b.rlen = 0, 0
	} else if b.rlen == b.size {
		// Compact so the window can keep growing for Peek.
		copy(b.buf, b.buf[b.rpos:b.rlen])
		b.rlen -= b.rpos
		b.rpos = 0
	}
	b.ensure()
	for range maxEmptyReads {
		n, err := b.r.Read(b.buf[b.rlen:])
		if n > 0 {
			b.rlen += n
			b.off += int64(n)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return io.ErrNoProgress
}

// Read implements io.Reader. Reads larger than the buffer bypass it and go
// straight into p.
func (b *Buffered) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := b.flushPending(); err != nil {
		return 0, err
	}
	if b.rpos == b.rlen {
		if len(p) >= b.size {
			if b.r == nil {
				return 0, errors.ErrUnsupported
			}
			// Drop any window retained after a full drain: the direct
			// read moves the store past the range it mirrors.
			b.maybeRelease()
			n, err := b.r.Read(p)
			if n > 0 {
				b.off += int64(n)
			}
			return n, err
		}
		if err := b.fill(); err != nil {
			b.maybeRelease()
			return 0, err
		}
	}
	n := copy(p, b.buf[b.rpos:b.rlen])
	b.rpos += n
	b.maybeRelease()
	return n, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffered) ReadByte() (byte, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if err := b.flushPending(); err != nil {
		return 0, err
	}
	if b.rpos == b.rlen {
		if err := b.fill(); err != nil {
			b.maybeRelease()
			return 0, err
		}
	}
	c := b.buf[b.rpos]
	b.rpos++
	b.maybeRelease()
	return c, nil
}

// Peek returns the next n unread bytes without consuming them, filling the
// window as needed. Requests beyond the buffer capacity fail with
// ErrBufferOverflow.
func (b *Buffered) Peek(n int) ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if n > b.size {
		return nil, ErrBufferOverflow
	}
	if err := b.flushPending(); err != nil {
		return nil, err
	}
	for b.rlen-b.rpos < n {
		if err := b.fill(); err != nil {
			return b.buf[b.rpos:b.rlen], err
		}
	}
	return b.buf[b.rpos : b.rpos+n], nil
}

// Discard consumes n bytes from the read side without copying them out.
func (b *Buffered) Discard(n int) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, ErrDiscardNegative
	}
	if err := b.flushPending(); err != nil {
		return 0, err
	}
	discarded := 0
	for discarded < n {
		if b.rpos == b.rlen {
			if err := b.fill(); err != nil {
				b.maybeRelease()
				return discarded, err
			}
		}
		m := min(b.rlen-b.rpos, n-discarded)
		b.rpos += m
		discarded += m
	}
	b.maybeRelease()
	return discarded, nil
}

// Chunk implements Source, exposing the read window directly.
func (b *Buffered) Chunk() ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if err := b.flushPending(); err != nil {
		return nil, err
	}
	if b.rpos == b.rlen {
		// The previous chunk dies here, so a drained window can go back
		// to the pool before the refill rents again.
		b.maybeRelease()
		if err := b.fill(); err != nil {
			b.maybeRelease()
			return nil, err
		}
	}
	return b.buf[b.rpos:b.rlen], nil
}

// Advance implements Source. The buffer is deliberately not released here:
// the slice handed out by Chunk must stay readable until the next Chunk
// call.
func (b *Buffered) Advance(n int) {
	b.rpos += n
}

// Write implements io.Writer, coalescing small writes. Writes at least as
// large as the buffer are flushed through directly without renting.
func (b *Buffered) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := b.startWrite(); err != nil {
		return 0, err
	}
	written := 0
	for len(p) > 0 {
		if b.wpos == 0 && len(p) >= b.size {
			if b.w == nil {
				return written, errors.ErrUnsupported
			}
			n, err := b.w.Write(p)
			if n < 0 {
				return written, ErrInvalidWrite
			}
			b.off += int64(n)
			written += n
			if err == nil && n < len(p) {
				err = io.ErrShortWrite
			}
			if err != nil {
				return written, err
			}
			b.maybeRelease()
			return written, nil
		}
		b.ensure()
		n := copy(b.buf[b.wpos:b.size], p)
		b.wpos += n
		written += n
		p = p[n:]
		if b.wpos == b.size {
			if err := b.flushPending(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// WriteByte implements io.ByteWriter.
func (b *Buffered) WriteByte(c byte) error {
	if b.closed {
		return ErrClosed
	}
	if err := b.startWrite(); err != nil {
		return err
	}
	b.ensure()
	b.buf[b.wpos] = c
	b.wpos++
	if b.wpos == b.size {
		return b.flushPending()
	}
	return nil
}

// WriteString implements io.StringWriter.
func (b *Buffered) WriteString(s string) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(s) == 0 {
		return 0, nil
	}
	if err := b.startWrite(); err != nil {
		return 0, err
	}
	written := 0
	for len(s) > 0 {
		b.ensure()
		n := copy(b.buf[b.wpos:b.size], s)
		b.wpos += n
		written += n
		s = s[n:]
		if b.wpos == b.size {
			if err := b.flushPending(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Seek implements io.Seeker. Pending writes are flushed first. A target that
// lands inside the current read window moves the cursor without touching
// the store; anything else repositions the store exactly.
func (b *Buffered) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if err := b.flushPending(); err != nil {
		return 0, err
	}
	logical := b.off - int64(b.rlen-b.rpos)
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = logical + offset
	case io.SeekEnd:
		if b.seeker == nil {
			return logical, ErrInvalidWhence
		}
		end, err := b.seeker.Seek(offset, io.SeekEnd)
		if err != nil {
			return logical, err
		}
		b.off = end
		b.rpos, b.rlen = 0, 0
		b.maybeRelease()
		return end, nil
	default:
		return logical, ErrInvalidWhence
	}
	if abs < 0 {
		return logical, ErrInvalidSeek
	}
	// Window reuse: buf[0:rlen] mirrors store range [off-rlen, off).
	if start := b.off - int64(b.rlen); abs >= start && abs <= b.off && b.rlen > 0 {
		b.rpos = int(abs - start)
		b.maybeRelease()
		return abs, nil
	}
	if b.seeker == nil {
		if abs < logical {
			return logical, ErrUnsupportedNegativeSeek
		}
		// Forward-only stores seek by discarding.
		if _, err := b.Discard(int(abs - logical)); err != nil {
			return b.off - int64(b.rlen-b.rpos), err
		}
		return abs, nil
	}
	if _, err := b.seeker.Seek(abs, io.SeekStart); err != nil {
		return logical, err
	}
	b.off = abs
	b.rpos, b.rlen = 0, 0
	b.maybeRelease()
	return abs, nil
}

// ReadFrom implements io.ReaderFrom, filling and flushing the buffer in
// store-sized batches.
func (b *Buffered) ReadFrom(r io.Reader) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if r == nil {
		return 0, ErrNilIO
	}
	if err := b.startWrite(); err != nil {
		return 0, err
	}
	var total int64
	emptyReads := 0
	for {
		b.ensure()
		n, err := r.Read(b.buf[b.wpos:b.size])
		if n > 0 {
			emptyReads = 0
			b.wpos += n
			total += int64(n)
			if b.wpos == b.size {
				if ferr := b.flushPending(); ferr != nil {
					return total, ferr
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			if emptyReads++; emptyReads >= maxEmptyReads {
				return total, io.ErrNoProgress
			}
		}
	}
}

// WriteTo implements io.WriterTo, draining the read window and then the
// store into w.
func (b *Buffered) WriteTo(w io.Writer) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if w == nil {
		return 0, ErrNilIO
	}
	if err := b.flushPending(); err != nil {
		return 0, err
	}
	var total int64
	if unread := b.rlen - b.rpos; unread > 0 {
		n, err := w.Write(b.buf[b.rpos:b.rlen])
		if n < 0 {
			return 0, ErrInvalidWrite
		}
		b.rpos += n
		total += int64(n)
		b.maybeRelease()
		if err != nil {
			return total, err
		}
		if n < unread {
			return total, io.ErrShortWrite
		}
	}
	if b.r == nil {
		return total, nil
	}
	// Same rule as the bypassing Read: the copy below moves the store, so
	// a drained window cannot stay behind to mirror it.
	b.maybeRelease()
	n, err := io.Copy(w, b.r)
	b.off += n
	total += n
	return total, err
}

// Close flushes pending writes, returns the buffer to the pool and closes
// the store when it is a Closer. Operations after Close fail with
// ErrClosed.
func (b *Buffered) Close() error {
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	err := b.flushPending()
	b.rpos, b.rlen, b.wpos = 0, 0, 0
	b.maybeRelease()
	if b.closer != nil {
		if cerr := b.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

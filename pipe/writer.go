package pipe

import (
	"context"
	"io"

	"github.com/jackc/puddle/v2"
)

// Writer is the producing end of a pipe. Bytes accumulate in a rented
// segment; a full segment is delivered to the reader and a fresh one is
// acquired, blocking while the reader holds them all.
//
// Writer is not safe for concurrent use.
type Writer struct {
	p      *Pipe
	ctx    context.Context
	cur    *puddle.Resource[*segment]
	err    error
	closed bool
}

var (
	_ io.WriteCloser = (*Writer)(nil)
	_ io.ByteWriter  = (*Writer)(nil)
)

// WithContext bounds every blocking wait on ctx, returning the writer for
// chaining.
func (w *Writer) WithContext(ctx context.Context) *Writer {
	w.ctx = ctx
	return w
}

// acquire rents the next segment, honoring both the writer's context and
// the reader going away.
func (w *Writer) acquire() error {
	if w.p.readCtx.Err() != nil {
		return w.p.readErr()
	}
	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()
	stop := context.AfterFunc(w.p.readCtx, cancel)
	defer stop()
	res, err := w.p.pool.Acquire(ctx)
	if err != nil {
		if w.p.readCtx.Err() != nil {
			return w.p.readErr()
		}
		return err
	}
	res.Value().n = 0
	w.cur = res
	return nil
}

// Write copies p into segments, delivering each one as it fills.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	total := 0
	for len(p) > 0 {
		if w.cur == nil {
			if err := w.acquire(); err != nil {
				w.err = err
				return total, err
			}
		}
		seg := w.cur.Value()
		n := copy(seg.buf[seg.n:], p)
		seg.n += n
		p = p[n:]
		total += n
		if seg.n == len(seg.buf) {
			if err := w.deliver(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// WriteByte implements io.ByteWriter.
func (w *Writer) WriteByte(c byte) error {
	if w.err != nil {
		return w.err
	}
	if w.cur == nil {
		if err := w.acquire(); err != nil {
			w.err = err
			return err
		}
	}
	seg := w.cur.Value()
	seg.buf[seg.n] = c
	seg.n++
	if seg.n == len(seg.buf) {
		return w.deliver()
	}
	return nil
}

// deliver hands the current segment to the reader. An empty segment stays
// with the writer.
func (w *Writer) deliver() error {
	seg := w.cur.Value()
	if seg.n == 0 {
		return nil
	}
	// An already-closed reader must fail the write; the select below would
	// otherwise race it against a free queue slot.
	if w.p.readCtx.Err() != nil {
		w.err = w.p.readErr()
		w.cur.Release()
		w.cur = nil
		return w.err
	}
	select {
	case w.p.filled <- w.cur:
		w.cur = nil
		return nil
	case <-w.p.readCtx.Done():
		w.err = w.p.readErr()
		w.cur.Release()
		w.cur = nil
		return w.err
	}
}

// Flush delivers the partially filled segment, if any. Readers see data
// only after a segment fills or is flushed.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.cur == nil {
		return nil
	}
	return w.deliver()
}

// Close delivers what remains and reports a clean end of stream to the
// reader.
func (w *Writer) Close() error { return w.CloseWithError(nil) }

// CloseWithError delivers what remains; once the reader drains it, it
// observes err. A nil err reads as io.EOF. A non-nil flush failure means
// the final bytes were dropped and is returned here.
func (w *Writer) CloseWithError(err error) error {
	if w.closed {
		return nil
	}
	w.closed = true
	ferr := w.Flush()
	if w.cur != nil {
		w.cur.Release()
		w.cur = nil
	}
	w.p.closeWrite(err)
	if w.err == nil {
		w.err = io.ErrClosedPipe
	}
	return ferr
}

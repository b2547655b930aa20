package pipe

import (
	"context"
	"io"

	"github.com/jackc/puddle/v2"
)

// Reader is the consuming end of a pipe. It hands out each delivered
// segment as one chunk and releases the segment back to the pool once it
// is drained, which is what unblocks a lagging writer.
//
// Reader is not safe for concurrent use.
type Reader struct {
	p   *Pipe
	ctx context.Context
	cur *puddle.Resource[*segment]
	off int
	err error
}

var (
	_ io.ReadCloser = (*Reader)(nil)
	_ io.WriterTo   = (*Reader)(nil)
)

// WithContext bounds every blocking wait on ctx, returning the reader for
// chaining. A cancelled wait leaves the pipe intact.
func (r *Reader) WithContext(ctx context.Context) *Reader {
	r.ctx = ctx
	return r
}

// Chunk returns the unread window of the current segment, waiting for the
// next delivery once it is drained. After a clean writer close Chunk
// reports io.EOF; after CloseWithError it reports the writer's reason.
func (r *Reader) Chunk() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	for {
		if r.cur != nil {
			seg := r.cur.Value()
			if r.off < seg.n {
				return seg.buf[r.off:seg.n], nil
			}
			r.recycle()
		}
		select {
		case res, ok := <-r.p.filled:
			if !ok {
				r.err = r.p.werr
				return nil, r.err
			}
			r.cur, r.off = res, 0
		case <-r.p.readCtx.Done():
			r.err = io.ErrClosedPipe
			return nil, r.err
		case <-r.ctx.Done():
			// The wait was cancelled, not the pipe.
			return nil, r.ctx.Err()
		}
	}
}

// Advance consumes n bytes of the current chunk.
func (r *Reader) Advance(n int) {
	r.off += n
}

func (r *Reader) recycle() {
	r.cur.Release()
	r.cur = nil
	r.off = 0
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk, err := r.Chunk()
	if err != nil {
		return 0, err
	}
	n := copy(p, chunk)
	r.Advance(n)
	return n, nil
}

// WriteTo drains the pipe into w segment by segment.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := r.Chunk()
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		n, werr := w.Write(chunk)
		if n > 0 {
			r.Advance(n)
			total += int64(n)
		}
		if werr != nil {
			return total, werr
		}
		if n < len(chunk) {
			return total, io.ErrShortWrite
		}
	}
}

// Close makes future writes fail with io.ErrClosedPipe.
func (r *Reader) Close() error { return r.CloseWithError(nil) }

// CloseWithError makes future writes fail with err. Delivered but unread
// segments are discarded.
func (r *Reader) CloseWithError(err error) error {
	r.p.closeRead(err)
	if r.cur != nil {
		r.recycle()
	}
	if r.err == nil {
		r.err = io.ErrClosedPipe
	}
	for {
		select {
		case res, ok := <-r.p.filled:
			if !ok {
				return nil
			}
			res.Release()
		default:
			return nil
		}
	}
}

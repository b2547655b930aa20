package binio

import (
	"context"
	"io"
)

// FileReader decodes sequentially from an io.ReaderAt with double-buffered
// prefetch: while the caller drains one pooled buffer, a persistent worker
// goroutine fills the other. Handoff runs through a Completion slot, so
// steady-state operation allocates nothing. FileReader is a Source, so a
// Reader runs over files unchanged.
//
// FileReader is not safe for concurrent use.
type FileReader struct {
	f    io.ReaderAt
	ctx  context.Context
	cmpl *Completion
	reqs chan readRequest

	bufs  [2]*[]byte
	class int
	size  int

	cur     int    // buffer being drained; the in-flight fill targets cur^1
	data    []byte // unconsumed window of bufs[cur]
	off     int64  // offset of the next unrequested byte
	token   uint64
	pending bool
	eof     bool
	err     error
	closed  bool
}

type readRequest struct {
	buf []byte
	off int64
}

var (
	_ Source        = (*FileReader)(nil)
	_ io.ReadCloser = (*FileReader)(nil)
)

// NewFileReader reads from the start of f in CHUNK_SIZE pieces.
func NewFileReader(ctx context.Context, f io.ReaderAt) (*FileReader, error) {
	return NewFileReaderAt(ctx, f, 0, CHUNK_SIZE)
}

// NewFileReaderAt reads from f starting at off with the given prefetch
// buffer size. The context bounds every wait on an in-flight read; the
// first read is requested immediately.
func NewFileReaderAt(ctx context.Context, f io.ReaderAt, off int64, size int) (*FileReader, error) {
	if f == nil {
		return nil, ErrNilIO
	}
	if off < 0 {
		return nil, ErrInvalidSeek
	}
	if size < minBufferedSize {
		size = minBufferedSize
	}
	r := &FileReader{
		f:    f,
		ctx:  ctx,
		cmpl: NewCompletion(),
		reqs: make(chan readRequest, 1),
		size: size,
		off:  off,
		cur:  1,
	}
	r.bufs[0], r.class = rentSlab(size)
	r.bufs[1], _ = rentSlab(size)
	go r.work()
	r.prefetch()
	return r, nil
}

func (r *FileReader) work() {
	for req := range r.reqs {
		n, err := r.f.ReadAt(req.buf, req.off)
		r.cmpl.Complete(n, err)
	}
}

// prefetch arms the slot and hands the idle buffer to the worker.
func (r *FileReader) prefetch() {
	r.token = r.cmpl.Arm()
	r.pending = true
	r.reqs <- readRequest{buf: (*r.bufs[r.cur^1])[:r.size], off: r.off}
}

// Chunk returns the unconsumed window of the current buffer, swapping in
// the prefetched one when the window is drained.
func (r *FileReader) Chunk() ([]byte, error) {
	if len(r.data) > 0 {
		return r.data, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	if !r.pending {
		return nil, io.EOF
	}
	n, err := r.cmpl.Result(r.ctx, r.token)
	if r.cmpl.Pending() {
		// Cancelled with the read still in flight; Close joins it later.
		r.err = err
		return nil, r.err
	}
	r.pending = false
	if n > 0 {
		r.cur ^= 1
		r.data = (*r.bufs[r.cur])[:n]
		r.off += int64(n)
	}
	switch {
	case err == nil:
		r.prefetch()
	case err == io.EOF:
		r.eof = true
	default:
		r.err = err
		return nil, r.err
	}
	if len(r.data) > 0 {
		return r.data, nil
	}
	if r.eof {
		return nil, io.EOF
	}
	r.err = io.ErrNoProgress
	return nil, r.err
}

// Advance consumes n bytes of the current chunk.
func (r *FileReader) Advance(n int) {
	r.data = r.data[n:]
}

// Read implements io.Reader over the prefetch windows.
func (r *FileReader) Read(p []byte) (int, error) {
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

// Offset returns the file position of the next byte Chunk will hand out.
func (r *FileReader) Offset() int64 {
	return r.off - int64(len(r.data))
}

// Close joins any in-flight read, returns the prefetch buffers to the
// pool, and closes f when it implements io.Closer.
func (r *FileReader) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	if r.pending {
		r.cmpl.Wait(r.token)
		r.pending = false
	}
	close(r.reqs)
	returnSlab(r.bufs[0], r.class)
	returnSlab(r.bufs[1], r.class)
	r.bufs[0], r.bufs[1] = nil, nil
	r.data = nil
	if r.err == nil {
		r.err = ErrClosed
	}
	if c, ok := r.f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// fileWriterBatch caps the segments handed to the worker in one vectored
// write.
const fileWriterBatch = 8

// segment is one sealed write-behind piece awaiting retirement.
type segment struct {
	slab *[]byte
	n    int
}

type writeBatch struct {
	segs []segment
	off  int64
}

// FileWriter coalesces writes into pooled segments and retires them to an
// io.WriterAt through one persistent worker goroutine, so encoding runs
// ahead of the storage. Sealed segments are batched and written with one
// positioned vectored call where the platform supports it. FileWriter
// satisfies the Writer's sink contract.
//
// FileWriter is not safe for concurrent use.
type FileWriter struct {
	f    io.WriterAt
	ctx  context.Context
	cmpl *Completion
	reqs chan writeBatch

	segSize int
	class   int

	cur     *[]byte // segment being filled
	curLen  int
	filling []segment // sealed, not yet handed off
	writing []segment // owned by the worker while a batch is in flight
	iovecs  [][]byte  // worker scratch

	off     int64 // file offset of the next handed-off byte
	token   uint64
	pending bool
	err     error
	closed  bool
}

var (
	_ sink      = (*FileWriter)(nil)
	_ io.Closer = (*FileWriter)(nil)
)

// NewFileWriter retires writes to f in CHUNK_SIZE segments.
func NewFileWriter(ctx context.Context, f io.WriterAt) (*FileWriter, error) {
	return NewFileWriterAt(ctx, f, 0, CHUNK_SIZE)
}

// NewFileWriterAt writes to f starting at off with the given segment size.
// The context bounds every wait on an in-flight batch.
func NewFileWriterAt(ctx context.Context, f io.WriterAt, off int64, size int) (*FileWriter, error) {
	if f == nil {
		return nil, ErrNilIO
	}
	if off < 0 {
		return nil, ErrInvalidSeek
	}
	if size < minBufferedSize {
		size = minBufferedSize
	}
	w := &FileWriter{
		f:       f,
		ctx:     ctx,
		cmpl:    NewCompletion(),
		reqs:    make(chan writeBatch, 1),
		segSize: size,
		class:   slabClass(size),
		off:     off,
	}
	go w.work()
	return w, nil
}

func (w *FileWriter) work() {
	for b := range w.reqs {
		w.iovecs = w.iovecs[:0]
		for _, s := range b.segs {
			w.iovecs = append(w.iovecs, (*s.slab)[:s.n])
		}
		n, err := writevAt(w.f, w.iovecs, b.off)
		for _, s := range b.segs {
			returnSlab(s.slab, w.class)
		}
		w.cmpl.Complete(n, err)
	}
}

// Write copies p into pooled segments, retiring full batches behind the
// caller's back.
func (w *FileWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	total := len(p)
	for len(p) > 0 {
		if w.cur == nil {
			w.cur, _ = rentSlab(w.segSize)
		}
		n := copy((*w.cur)[w.curLen:w.segSize], p)
		w.curLen += n
		p = p[n:]
		if w.curLen == w.segSize {
			if err := w.seal(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

// WriteByte implements io.ByteWriter.
func (w *FileWriter) WriteByte(c byte) error {
	if w.err != nil {
		return w.err
	}
	if w.cur == nil {
		w.cur, _ = rentSlab(w.segSize)
	}
	(*w.cur)[w.curLen] = c
	w.curLen++
	if w.curLen == w.segSize {
		return w.seal()
	}
	return nil
}

// seal moves the current segment onto the staged list and kicks the worker
// once a full batch has accumulated.
func (w *FileWriter) seal() error {
	if w.curLen == 0 {
		return nil
	}
	w.filling = append(w.filling, segment{slab: w.cur, n: w.curLen})
	w.cur, w.curLen = nil, 0
	if len(w.filling) >= fileWriterBatch {
		return w.kick()
	}
	return nil
}

// kick hands the staged segments to the worker. The previous batch is
// joined first, so at most one batch is ever in flight and the staging
// storage can be recycled.
func (w *FileWriter) kick() error {
	if len(w.filling) == 0 {
		return nil
	}
	if err := w.join(); err != nil {
		return err
	}
	w.filling, w.writing = w.writing[:0], w.filling
	var total int64
	for _, s := range w.writing {
		total += int64(s.n)
	}
	w.token = w.cmpl.Arm()
	w.pending = true
	w.reqs <- writeBatch{segs: w.writing, off: w.off}
	w.off += total
	return nil
}

// join collects the outcome of the batch in flight, if any.
func (w *FileWriter) join() error {
	if !w.pending {
		return nil
	}
	_, err := w.cmpl.Result(w.ctx, w.token)
	if w.cmpl.Pending() {
		// Cancelled with the batch still being written; Close joins it.
		w.err = err
		return err
	}
	w.pending = false
	if err != nil {
		w.err = err
	}
	return err
}

// Flush retires everything staged and waits until the storage has
// accepted it.
func (w *FileWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.seal(); err != nil {
		return err
	}
	if err := w.kick(); err != nil {
		return err
	}
	return w.join()
}

// Close flushes staged data, stops the worker, releases buffers, and
// closes f when it implements io.Closer.
func (w *FileWriter) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	ferr := w.Flush()
	if w.pending {
		w.cmpl.Wait(w.token)
		w.pending = false
	}
	close(w.reqs)
	if w.cur != nil {
		returnSlab(w.cur, w.class)
		w.cur, w.curLen = nil, 0
	}
	for _, s := range w.filling {
		returnSlab(s.slab, w.class)
	}
	w.filling = nil
	if w.err == nil {
		w.err = ErrClosed
	}
	if c, ok := w.f.(io.Closer); ok {
		if cerr := c.Close(); ferr == nil {
			ferr = cerr
		}
	}
	return ferr
}

// writevAtFallback retires bufs with one WriteAt per segment.
func writevAtFallback(dst io.WriterAt, bufs [][]byte, off int64) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := dst.WriteAt(b, off)
		total += n
		off += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(b) {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

package binio

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
)

// sink is what the Writer needs from a backing store: byte-level writes and
// a flush. Buffered, Sequence and pipe writers satisfy it natively; a bare
// io.Writer is wrapped in a Buffered.
type sink interface {
	io.Writer
	io.ByteWriter
	Flush() error
}

type nopFlushWriter struct{ io.Writer }

func (nopFlushWriter) Flush() error { return nil }

// Writer encodes binary data onto a backing store. It tracks the first
// error; after a failure every subsequent operation is a no-op reporting
// that error.
type Writer struct {
	w     sink
	count int64 // total bytes accepted
	err   error // first error encountered
	order binary.ByteOrder
}

// NewWriter encodes onto w. Stores that coalesce on their own are used
// directly; a bare io.Writer gains a pooled write-behind buffer.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}
	switch bw := w.(type) {
	case *Writer:
		return &Writer{w: bw.w, order: Order}, nil
	case sink:
		return &Writer{w: bw, order: Order}, nil
	}
	b, err := NewBufferedWriter(w, BUFFER_SIZE)
	if err != nil {
		return nil, err
	}
	return &Writer{w: b, order: Order}, nil
}

// NewWriterSequence encodes into an in-memory sequence.
func NewWriterSequence(seq *Sequence) *Writer {
	return &Writer{w: seq, order: Order}
}

// WithByteOrder sets the byte order for multi-byte primitives and Raw
// length prefixes, returning the writer for chaining.
func (w *Writer) WithByteOrder(order binary.ByteOrder) *Writer {
	w.order = order
	return w
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error. This preserves the root cause
// of a failure chain instead of a later, less relevant error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Flush pushes buffered data down to the underlying store.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.setError(w.w.Flush())
	return w.err
}

// Result flushes and returns the total bytes accepted and the final error
// state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Close flushes and closes the backing store when it implements io.Closer.
func (w *Writer) Close() error {
	w.Flush()
	if c, ok := w.w.(io.Closer); ok {
		err := c.Close()
		w.setError(err)
	}
	return w.err
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

// WriteString writes s without converting it to a byte slice when the sink
// supports it.
func (w *Writer) WriteString(s string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if sw, ok := w.w.(io.StringWriter); ok {
		n, err := sw.WriteString(s)
		w.count += int64(n)
		w.setError(err)
		return n, w.err
	}
	n, err := w.w.Write([]byte(s))
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(p []byte) {
	if p == nil || w.err != nil {
		return
	}
	_, _ = w.Write(p)
}

// WriteFrom drains an io.WriterTo into the writer.
func (w *Writer) WriteFrom(wt io.WriterTo) {
	if wt == nil || w.err != nil {
		return
	}
	n, err := wt.WriteTo(w.w)
	w.count += n
	w.setError(err)
}

// ReadFrom implements io.ReaderFrom.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	if r == nil || w.err != nil {
		return 0, w.err
	}
	if rf, ok := w.w.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(r)
		w.count += n
		w.setError(err)
		return n, w.err
	}
	n, err := io.Copy(io.Writer(w.w), r)
	w.count += n
	w.setError(err)
	return n, w.err
}

// WriteZeros writes n zero bytes, often for padding.
func (w *Writer) WriteZeros(n int64) {
	if w.err != nil || n <= 0 {
		return
	}
	for n > 0 {
		m := min(n, int64(BUFFER_SIZE))
		written, err := w.w.Write(empty[:m])
		w.count += int64(written)
		if err == nil && int64(written) < m {
			err = io.ErrShortWrite
		}
		if err != nil {
			w.setError(err)
			return
		}
		n -= int64(written)
	}
}

// Align writes zero bytes until the accepted count is a multiple of n.
func (w *Writer) Align(n int) {
	if n > 1 {
		w.WriteZeros(Roundup(w.count, int64(n)) - w.count)
	}
}

// --- Primitive encode operations ---

func (w *Writer) WriteBool(v bool) {
	if v {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
}

// WriteByte implements io.ByteWriter.
func (w *Writer) WriteByte(v byte) error {
	w.writeByte(v)
	return w.err
}

func (w *Writer) writeByte(v byte) {
	if w.err != nil {
		return
	}
	if err := w.w.WriteByte(v); err != nil {
		w.setError(err)
		return
	}
	w.count++
}

func (w *Writer) WriteUint8(v uint8) { w.writeByte(v) }

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	var buf [2]byte
	w.order.PutUint16(buf[:], v)
	_, _ = w.Write(buf[:])
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	w.order.PutUint32(buf[:], v)
	_, _ = w.Write(buf[:])
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	w.order.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}

func (w *Writer) WriteInt8(v int8) { w.writeByte(uint8(v)) }

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// --- Length-prefixed encode operations ---

// WriteLength encodes a block length in the given format. Negative lengths
// and lengths over 32 bits are refused.
func (w *Writer) WriteLength(n int, f LengthFormat) error {
	if w.err != nil {
		return w.err
	}
	if !f.valid() {
		w.setError(ErrInvalidLengthFormat)
		return w.err
	}
	if n < 0 || int64(n) > 1<<31-1 {
		w.setError(fmt.Errorf("%w: length %d", ErrLengthOutOfRange, n))
		return w.err
	}
	if f == Compressed {
		var buf [MaxCompressedLen]byte
		m, _ := PutCompressed(buf[:], uint32(n))
		_, _ = w.Write(buf[:m])
		return w.err
	}
	var buf [rawLengthSize]byte
	f.order(w.order).PutUint32(buf[:], uint32(int32(n)))
	_, _ = w.Write(buf[:])
	return w.err
}

// WriteBlock writes p as a length-prefixed block.
func (w *Writer) WriteBlock(p []byte, f LengthFormat) error {
	if err := w.WriteLength(len(p), f); err != nil {
		return err
	}
	if len(p) > 0 {
		_, _ = w.Write(p)
	}
	return w.err
}

// WriteText writes s as a length-prefixed string encoded with enc. A nil
// encoding means UTF-8, written without any transformation or allocation.
func (w *Writer) WriteText(s string, enc encoding.Encoding, f LengthFormat) error {
	if w.err != nil {
		return w.err
	}
	if enc == nil {
		if err := w.WriteLength(len(s), f); err != nil {
			return err
		}
		_, _ = w.WriteString(s)
		return w.err
	}
	encoded, release, err := encodeText(s, enc)
	if err != nil {
		w.setError(err)
		return w.err
	}
	defer release()
	if err := w.WriteLength(len(encoded), f); err != nil {
		return err
	}
	if len(encoded) > 0 {
		_, _ = w.Write(encoded)
	}
	return w.err
}

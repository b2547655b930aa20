package binio

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
)

// Reader decodes binary data from a Source. It tracks the first error;
// after a failure every subsequent operation is a no-op reporting that
// error. An input that ends partway through an element surfaces
// ErrTruncated, never a partial result.
type Reader struct {
	src     Source
	count   int64 // total bytes consumed
	err     error // first error encountered
	order   binary.ByteOrder
	scratch [8]byte
}

// NewReader decodes from r. Sequence readers and Buffered stores feed the
// reader from their own windows; any other reader is pulled through one
// pooled fill buffer.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	if inner, ok := r.(*Reader); ok {
		return &Reader{src: inner.src, order: Order}, nil
	}
	return &Reader{src: sourceOf(r), order: Order}, nil
}

// NewReaderBytes decodes from p without copying it.
func NewReaderBytes(p []byte) *Reader {
	return &Reader{src: NewSequenceReader(p), order: Order}
}

// NewReaderSource decodes from an explicit chunk source, such as a pipe end.
func NewReaderSource(src Source) (*Reader, error) {
	if src == nil {
		return nil, ErrNilIO
	}
	return &Reader{src: src, order: Order}, nil
}

// WithByteOrder sets the byte order for multi-byte primitives and Raw
// length prefixes, returning the reader for chaining.
func (r *Reader) WithByteOrder(order binary.ByteOrder) *Reader {
	r.order = order
	return r
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }
func (r *Reader) IsEOF() bool  { return r.err == io.EOF }

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Result returns the total bytes consumed and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// Close closes the source when it implements io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// next returns the next n bytes, n <= 8. When the request sits inside the
// current chunk the bytes are returned in place; only a request crossing a
// chunk boundary is assembled in the scratch array. The slice is valid
// until the following operation.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	chunk, err := r.src.Chunk()
	if err != nil {
		r.setError(err)
		return nil
	}
	if len(chunk) >= n {
		r.src.Advance(n)
		r.count += int64(n)
		return chunk[:n]
	}
	// The element crosses a chunk boundary.
	buf := r.scratch[:n]
	filled := copy(buf, chunk)
	r.src.Advance(filled)
	r.count += int64(filled)
	for filled < n {
		chunk, err = r.src.Chunk()
		if err != nil {
			if err == io.EOF {
				err = ErrTruncated
			}
			r.setError(err)
			return nil
		}
		m := copy(buf[filled:], chunk)
		r.src.Advance(m)
		r.count += int64(m)
		filled += m
	}
	return buf
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	chunk, err := r.src.Chunk()
	if err != nil {
		r.setError(err)
		return 0, r.err
	}
	n := copy(p, chunk)
	r.src.Advance(n)
	r.count += int64(n)
	return n, nil
}

// ReadFull fills dest completely or fails with ErrTruncated.
func (r *Reader) ReadFull(dest []byte) {
	if r.err != nil || len(dest) == 0 {
		return
	}
	filled := 0
	for filled < len(dest) {
		chunk, err := r.src.Chunk()
		if err != nil {
			if err == io.EOF && filled > 0 {
				err = ErrTruncated
			}
			r.setError(err)
			return
		}
		n := copy(dest[filled:], chunk)
		r.src.Advance(n)
		r.count += int64(n)
		filled += n
	}
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) []byte {
	if r.err != nil || n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	r.ReadFull(buf)
	if r.err != nil {
		return nil
	}
	return buf
}

// Skip consumes and discards n bytes.
func (r *Reader) Skip(n int) {
	if r.err != nil {
		return
	}
	if n < 0 {
		r.setError(ErrDiscardNegative)
		return
	}
	for n > 0 {
		chunk, err := r.src.Chunk()
		if err != nil {
			if err == io.EOF {
				err = ErrTruncated
			}
			r.setError(err)
			return
		}
		m := min(len(chunk), n)
		r.src.Advance(m)
		r.count += int64(m)
		n -= m
	}
}

// Align discards bytes until the consumed count is a multiple of n.
func (r *Reader) Align(n int) {
	if n > 1 {
		r.Skip(int(Roundup(r.count, int64(n)) - r.count))
	}
}

// CopyTo drains the remaining input into w, chunk by chunk. In-memory
// segments are written directly without copying.
func (r *Reader) CopyTo(w io.Writer) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if w == nil {
		r.setError(ErrNilIO)
		return 0, r.err
	}
	var total int64
	for {
		chunk, err := r.src.Chunk()
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			r.setError(err)
			return total, r.err
		}
		n, werr := w.Write(chunk)
		if n < 0 {
			r.setError(ErrInvalidWrite)
			return total, r.err
		}
		r.src.Advance(n)
		r.count += int64(n)
		total += int64(n)
		if werr != nil {
			r.setError(werr)
			return total, r.err
		}
		if n < len(chunk) {
			r.setError(io.ErrShortWrite)
			return total, r.err
		}
	}
}

// Bytes exposes the unread remainder as one slice without copying or
// consuming it. Only sources that hold their contents contiguously in
// memory can honor the request; everything else reports false.
func (r *Reader) Bytes() ([]byte, bool) {
	if sr, ok := r.src.(*SequenceReader); ok {
		return sr.Bytes()
	}
	return nil, false
}

// --- Primitive decode operations ---

func (r *Reader) ReadBool(dest *bool) {
	if b := r.next(1); r.err == nil {
		*dest = b[0] != 0
	}
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	b := r.next(1)
	if r.err != nil {
		return 0, r.err
	}
	return b[0], nil
}

func (r *Reader) ReadUint8(dest *uint8) {
	if b := r.next(1); r.err == nil {
		*dest = b[0]
	}
}

func (r *Reader) ReadUint16(dest *uint16) {
	if b := r.next(2); r.err == nil {
		*dest = r.order.Uint16(b)
	}
}

func (r *Reader) ReadUint32(dest *uint32) {
	if b := r.next(4); r.err == nil {
		*dest = r.order.Uint32(b)
	}
}

func (r *Reader) ReadUint64(dest *uint64) {
	if b := r.next(8); r.err == nil {
		*dest = r.order.Uint64(b)
	}
}

func (r *Reader) ReadInt8(dest *int8) {
	if b := r.next(1); r.err == nil {
		*dest = int8(b[0])
	}
}

func (r *Reader) ReadInt16(dest *int16) {
	if b := r.next(2); r.err == nil {
		*dest = int16(r.order.Uint16(b))
	}
}

func (r *Reader) ReadInt32(dest *int32) {
	if b := r.next(4); r.err == nil {
		*dest = int32(r.order.Uint32(b))
	}
}

func (r *Reader) ReadInt64(dest *int64) {
	if b := r.next(8); r.err == nil {
		*dest = int64(r.order.Uint64(b))
	}
}

// --- Length-prefixed decode operations ---

// ReadLength decodes a block length in the given format. Negative and
// over-range lengths are refused before any allocation.
func (r *Reader) ReadLength(f LengthFormat) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if !f.valid() {
		r.setError(ErrInvalidLengthFormat)
		return 0, r.err
	}
	if f == Compressed {
		return r.readCompressedLength()
	}
	b := r.next(rawLengthSize)
	if r.err != nil {
		return 0, r.err
	}
	v := int32(f.order(r.order).Uint32(b))
	if v < 0 {
		r.setError(fmt.Errorf("%w: negative length %d", ErrLengthOutOfRange, v))
		return 0, r.err
	}
	return int(v), nil
}

func (r *Reader) readCompressedLength() (int, error) {
	// Fast path: the whole value sits inside the current chunk.
	if chunk, err := r.src.Chunk(); err == nil {
		v, n, derr := Uncompress(chunk)
		if derr == nil {
			r.src.Advance(n)
			r.count += int64(n)
			return r.finishCompressedLength(v)
		}
		if derr != ErrTruncated {
			r.src.Advance(n)
			r.count += int64(n)
			r.setError(derr)
			return 0, r.err
		}
	} else {
		r.setError(err)
		return 0, r.err
	}
	// The value crosses a chunk boundary: resume byte by byte.
	var p VarintParser
	first := true
	for p.RemainingBytes() > 0 {
		chunk, err := r.src.Chunk()
		if err != nil {
			if err == io.EOF && !first {
				err = ErrTruncated
			}
			r.setError(err)
			return 0, r.err
		}
		n := p.Append(chunk)
		r.src.Advance(n)
		r.count += int64(n)
		if n > 0 {
			first = false
		}
	}
	if err := p.Complete(); err != nil {
		r.setError(err)
		return 0, r.err
	}
	return r.finishCompressedLength(p.Value())
}

func (r *Reader) finishCompressedLength(v uint32) (int, error) {
	if v > 1<<31-1 {
		r.setError(fmt.Errorf("%w: compressed length %d", ErrLengthOutOfRange, v))
		return 0, r.err
	}
	return int(v), nil
}

// ReadBlock reads a length-prefixed block into a pooled buffer. A zero
// length yields an empty buffer without touching the pool, and a truncated
// body yields no buffer at all.
func (r *Reader) ReadBlock(f LengthFormat) (*Buffer, error) {
	n, err := r.ReadLength(f)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return emptyBuffer, nil
	}
	buf := rentBuffer(n)
	r.ReadFull((*buf.slab)[:n])
	if r.err != nil {
		buf.Release()
		if r.err == io.EOF {
			// The prefix promised n bytes; a clean EOF here is still truncation.
			r.err = ErrTruncated
		}
		return nil, r.err
	}
	return buf, nil
}

// ReadText reads a length-prefixed string encoded with enc. A nil encoding
// means UTF-8. Character boundaries may land anywhere between chunks; the
// decoder carries split characters across them.
func (r *Reader) ReadText(f LengthFormat, enc encoding.Encoding) (string, error) {
	n, err := r.ReadLength(f)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	s, err := decodeText(r, n, enc)
	if err != nil {
		r.setError(err)
		return "", r.err
	}
	return s, nil
}

// DecodeText streams the decoded form of a length-prefixed string to fn in
// chunks, avoiding one large result allocation. The slice passed to fn is
// reused between calls.
func (r *Reader) DecodeText(f LengthFormat, enc encoding.Encoding, fn func(chunk []byte) error) error {
	n, err := r.ReadLength(f)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if err := decodeTextFunc(r, n, enc, fn); err != nil {
		r.setError(err)
		return r.err
	}
	return nil
}

// Parse decodes a length-prefixed span in place. When the span sits inside
// one chunk the callback borrows it without any copy; the span must not be
// retained past the callback.
func Parse[T any](r *Reader, f LengthFormat, parse func(span []byte) (T, error)) (T, error) {
	var zero T
	n, err := r.ReadLength(f)
	if err != nil {
		return zero, err
	}
	return parseN(r, n, parse)
}

// parseN arranges the next n bytes as one contiguous span and applies
// parse. Inside a single chunk the span aliases the source window and is
// consumed only when parse succeeds; across chunks the bytes are gathered
// into a pooled buffer first.
func parseN[T any](r *Reader, n int, parse func([]byte) (T, error)) (T, error) {
	var zero T
	if n == 0 {
		return parseSpan(r, nil, parse)
	}
	chunk, err := r.src.Chunk()
	if err != nil {
		if err == io.EOF {
			err = ErrTruncated
		}
		r.setError(err)
		return zero, r.err
	}
	if len(chunk) >= n {
		v, perr := parseSpan(r, chunk[:n], parse)
		if perr == nil {
			r.src.Advance(n)
			r.count += int64(n)
		}
		return v, perr
	}
	buf := rentBuffer(n)
	defer buf.Release()
	r.ReadFull((*buf.slab)[:n])
	if r.err != nil {
		if r.err == io.EOF {
			r.err = ErrTruncated
		}
		return zero, r.err
	}
	return parseSpan(r, (*buf.slab)[:n], parse)
}

func parseSpan[T any](r *Reader, span []byte, parse func([]byte) (T, error)) (T, error) {
	v, err := parse(span)
	if err != nil {
		r.setError(err)
		var zero T
		return zero, err
	}
	return v, nil
}

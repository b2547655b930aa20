package binio

import "io"

// Sequence is an in-memory chunked byte sequence. Writes fill a pooled tail
// segment; a full tail is sealed and never copied again, so building large
// payloads costs no reallocation and reading them back costs no copy.
type Sequence struct {
	segs    [][]byte
	sealed  []*[]byte // pooled slabs behind segs, for Release
	tail    *[]byte
	tailLen int
	chunk   int
	n       int64
}

// NewSequence returns an empty sequence with the default segment size.
func NewSequence() *Sequence { return NewSequenceSize(CHUNK_SIZE) }

// NewSequenceSize returns an empty sequence with the given segment size.
func NewSequenceSize(chunk int) *Sequence {
	if chunk <= 0 {
		chunk = CHUNK_SIZE
	}
	return &Sequence{chunk: chunk}
}

// SequenceOf wraps existing slices as a read-only sequence without copying.
// The slices must not be mutated while the sequence is in use.
func SequenceOf(segs ...[]byte) *Sequence {
	s := &Sequence{chunk: CHUNK_SIZE}
	for _, seg := range segs {
		if len(seg) > 0 {
			s.segs = append(s.segs, seg)
			s.n += int64(len(seg))
		}
	}
	return s
}

// Len returns the total number of bytes in the sequence.
func (s *Sequence) Len() int64 { return s.n }

func (s *Sequence) seal() {
	s.segs = append(s.segs, (*s.tail)[:s.tailLen])
	s.sealed = append(s.sealed, s.tail)
	s.tail = nil
	s.tailLen = 0
}

// Write implements io.Writer. It never fails.
func (s *Sequence) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		if s.tail == nil {
			s.tail, _ = rentSlab(s.chunk)
		}
		room := (*s.tail)[s.tailLen:s.chunk]
		n := copy(room, p)
		s.tailLen += n
		s.n += int64(n)
		p = p[n:]
		if s.tailLen == s.chunk {
			s.seal()
		}
	}
	return total, nil
}

// WriteByte implements io.ByteWriter.
func (s *Sequence) WriteByte(c byte) error {
	if s.tail == nil {
		s.tail, _ = rentSlab(s.chunk)
	}
	(*s.tail)[s.tailLen] = c
	s.tailLen++
	s.n++
	if s.tailLen == s.chunk {
		s.seal()
	}
	return nil
}

// WriteString implements io.StringWriter.
func (s *Sequence) WriteString(str string) (int, error) {
	total := len(str)
	for len(str) > 0 {
		if s.tail == nil {
			s.tail, _ = rentSlab(s.chunk)
		}
		n := copy((*s.tail)[s.tailLen:s.chunk], str)
		s.tailLen += n
		s.n += int64(n)
		str = str[n:]
		if s.tailLen == s.chunk {
			s.seal()
		}
	}
	return total, nil
}

// Flush implements the sink contract. Sequences have nothing to flush.
func (s *Sequence) Flush() error { return nil }

// Segments returns a view of the sequence as its backing segments, tail
// included. The slices must not be mutated.
func (s *Sequence) Segments() [][]byte {
	if s.tailLen == 0 {
		return s.segs
	}
	segs := make([][]byte, 0, len(s.segs)+1)
	segs = append(segs, s.segs...)
	return append(segs, (*s.tail)[:s.tailLen])
}

// WriteTo implements io.WriterTo, writing each segment directly without
// flattening.
func (s *Sequence) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, seg := range s.Segments() {
		n, err := w.Write(seg)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(seg) {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// AppendTo flattens the sequence onto dst.
func (s *Sequence) AppendTo(dst []byte) []byte {
	for _, seg := range s.Segments() {
		dst = append(dst, seg...)
	}
	return dst
}

// Reader returns a zero-copy reader over the sequence's current contents.
// The sequence must not be written to or released while readers are live.
func (s *Sequence) Reader() *SequenceReader {
	return &SequenceReader{segs: s.Segments(), size: s.n}
}

// Reset drops the contents and returns pooled segments, keeping the
// sequence usable.
func (s *Sequence) Reset() {
	for _, slab := range s.sealed {
		returnSlab(slab, slabClass(s.chunk))
	}
	s.sealed = nil
	s.segs = nil
	s.tailLen = 0
	s.n = 0
}

// Release returns all pooled memory. The sequence remains usable but empty.
func (s *Sequence) Release() {
	s.Reset()
	if s.tail != nil {
		returnSlab(s.tail, slabClass(s.chunk))
		s.tail = nil
	}
}

// SequenceReader walks sequence segments as a Source and io.Reader without
// copying.
type SequenceReader struct {
	segs [][]byte
	i    int
	off  int
	pos  int64
	size int64
}

// NewSequenceReader returns a reader over the given segments.
func NewSequenceReader(segs ...[]byte) *SequenceReader {
	return SequenceOf(segs...).Reader()
}

var _ Source = (*SequenceReader)(nil)

// Chunk implements Source.
func (r *SequenceReader) Chunk() ([]byte, error) {
	for r.i < len(r.segs) {
		if r.off < len(r.segs[r.i]) {
			return r.segs[r.i][r.off:], nil
		}
		r.i++
		r.off = 0
	}
	return nil, io.EOF
}

// Advance implements Source.
func (r *SequenceReader) Advance(n int) {
	r.off += n
	r.pos += int64(n)
	if r.i < len(r.segs) && r.off == len(r.segs[r.i]) {
		r.i++
		r.off = 0
	}
}

// Read implements io.Reader.
func (r *SequenceReader) Read(p []byte) (int, error) {
	chunk, err := r.Chunk()
	if err != nil {
		return 0, err
	}
	n := copy(p, chunk)
	r.Advance(n)
	return n, nil
}

// ReadByte implements io.ByteReader.
func (r *SequenceReader) ReadByte() (byte, error) {
	chunk, err := r.Chunk()
	if err != nil {
		return 0, err
	}
	b := chunk[0]
	r.Advance(1)
	return b, nil
}

// WriteTo implements io.WriterTo, draining the remaining segments into w
// without copying.
func (r *SequenceReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := r.Chunk()
		if err == io.EOF {
			return total, nil
		}
		n, werr := w.Write(chunk)
		r.Advance(n)
		total += int64(n)
		if werr != nil {
			return total, werr
		}
		if n < len(chunk) {
			return total, io.ErrShortWrite
		}
	}
}

// Seek implements io.Seeker over the whole sequence.
func (r *SequenceReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return r.pos, ErrInvalidWhence
	}
	if abs < 0 {
		return r.pos, ErrInvalidSeek
	}
	r.pos = 0
	r.i = 0
	r.off = 0
	// Walk forward to the target; seeks land mid-segment.
	left := abs
	for r.i < len(r.segs) && left > 0 {
		seg := int64(len(r.segs[r.i]))
		if left < seg {
			r.off = int(left)
			r.pos += left
			return abs, nil
		}
		left -= seg
		r.pos += seg
		r.i++
	}
	r.pos = abs
	return abs, nil
}

// Len returns the number of unread bytes.
func (r *SequenceReader) Len() int64 {
	if r.pos >= r.size {
		return 0
	}
	return r.size - r.pos
}

// Size returns the total sequence length.
func (r *SequenceReader) Size() int64 { return r.size }

// Bytes exposes the remaining contents as one slice without copying. It
// reports false when the remainder spans more than one segment.
func (r *SequenceReader) Bytes() ([]byte, bool) {
	var rest []byte
	found := false
	i, off := r.i, r.off
	for ; i < len(r.segs); i++ {
		seg := r.segs[i][off:]
		off = 0
		if len(seg) == 0 {
			continue
		}
		if found {
			return nil, false
		}
		rest = seg
		found = true
	}
	return rest, true
}

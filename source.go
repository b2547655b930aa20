package binio

import "io"

// Source is the pull side of the chunk contract. A Source hands out whole
// chunks instead of filling caller slices, which lets in-memory and pipe
// backed inputs feed decoders without copying.
//
// Chunk blocks until at least one byte is available and returns io.EOF only
// when no bytes remain. The returned slice stays valid until the next Chunk
// call. Advance consumes n bytes of the most recent chunk; n must not
// exceed that chunk's length.
type Source interface {
	Chunk() ([]byte, error)
	Advance(n int)
}

const maxEmptyReads = 100

// streamSource adapts a plain io.Reader to Source through one pooled fill
// buffer. The buffer is rented on first use and returned as soon as the
// stream ends.
type streamSource struct {
	r    io.Reader
	slab *[]byte
	data []byte // unconsumed window of slab
	err  error  // terminal error, remembered
}

func newStreamSource(r io.Reader) *streamSource {
	return &streamSource{r: r}
}

func (s *streamSource) Chunk() ([]byte, error) {
	if len(s.data) > 0 {
		return s.data, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.slab == nil {
		s.slab, _ = rentSlab(CHUNK_SIZE)
	}
	for range maxEmptyReads {
		n, err := s.r.Read(*s.slab)
		if n > 0 {
			s.data = (*s.slab)[:n]
			return s.data, nil
		}
		if err != nil {
			s.err = err
			if err == io.EOF {
				s.release()
			}
			return nil, err
		}
	}
	s.err = io.ErrNoProgress
	return nil, s.err
}

func (s *streamSource) Advance(n int) {
	s.data = s.data[n:]
}

func (s *streamSource) release() {
	if s.slab != nil {
		returnSlab(s.slab, slabClass(CHUNK_SIZE))
		s.slab = nil
		s.data = nil
	}
}

// Close releases the fill buffer and closes the underlying reader when it
// implements io.Closer.
func (s *streamSource) Close() error {
	s.release()
	if s.err == nil {
		s.err = ErrClosed
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Source = (*streamSource)(nil)

// sourceOf normalizes an input into a Source. Inputs that already carry
// their own chunk windows, such as sequence readers, Buffered stores, and
// pipe ends, are used directly; everything else reads through a pooled
// fill buffer.
func sourceOf(r io.Reader) Source {
	if src, ok := r.(Source); ok {
		return src
	}
	return newStreamSource(r)
}

// sourceReader adapts a Source back to io.Reader for code that wants plain
// stream semantics over pipe or sequence inputs.
type sourceReader struct {
	src Source
}

// SourceReader returns an io.Reader view of src.
func SourceReader(src Source) io.Reader {
	if r, ok := src.(io.Reader); ok {
		return r
	}
	return &sourceReader{src: src}
}

func (r *sourceReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk, err := r.src.Chunk()
	if err != nil {
		return 0, err
	}
	n := copy(p, chunk)
	r.src.Advance(n)
	return n, nil
}

// Package testutil provides small instrumented fakes shared by tests.
package testutil

import (
	"errors"
	"io"
	"sync"
)

// ChunkReader yields at most Size bytes per Read call, forcing chunk
// boundaries at deterministic places. Calls counts the Read calls made.
type ChunkReader struct {
	Data  []byte
	Size  int
	Calls int
	off   int
}

func NewChunkReader(data []byte, size int) *ChunkReader {
	return &ChunkReader{Data: data, Size: size}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	r.Calls++
	if r.off >= len(r.Data) {
		return 0, io.EOF
	}
	n := min(len(p), r.Size, len(r.Data)-r.off)
	copy(p, r.Data[r.off:r.off+n])
	r.off += n
	return n, nil
}

// MemStore is an in-memory random-access store that counts every call, so
// tests can assert how often the layer above touched it.
type MemStore struct {
	Buf      []byte
	Reads    int
	Writes   int
	Seeks    int
	ReadAts  int
	WriteAts int
	pos      int64
}

func NewMemStore(data []byte) *MemStore {
	return &MemStore{Buf: data}
}

// Pos returns the current stream position.
func (s *MemStore) Pos() int64 { return s.pos }

func (s *MemStore) Read(p []byte) (int, error) {
	s.Reads++
	if s.pos >= int64(len(s.Buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.Buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *MemStore) Write(p []byte) (int, error) {
	s.Writes++
	end := s.pos + int64(len(p))
	if end > int64(len(s.Buf)) {
		grown := make([]byte, end)
		copy(grown, s.Buf)
		s.Buf = grown
	}
	copy(s.Buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *MemStore) Seek(off int64, whence int) (int64, error) {
	s.Seeks++
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = off
	case io.SeekCurrent:
		abs = s.pos + off
	case io.SeekEnd:
		abs = int64(len(s.Buf)) + off
	default:
		return 0, errors.New("testutil: bad whence")
	}
	if abs < 0 {
		return 0, errors.New("testutil: negative position")
	}
	s.pos = abs
	return abs, nil
}

func (s *MemStore) ReadAt(p []byte, off int64) (int, error) {
	s.ReadAts++
	if off >= int64(len(s.Buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.Buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *MemStore) WriteAt(p []byte, off int64) (int, error) {
	s.WriteAts++
	end := off + int64(len(p))
	if end > int64(len(s.Buf)) {
		grown := make([]byte, end)
		copy(grown, s.Buf)
		s.Buf = grown
	}
	copy(s.Buf[off:end], p)
	return len(p), nil
}

// Splits calls fn with every two-part split of data, including the empty
// prefix and suffix.
func Splits(data []byte, fn func(a, b []byte)) {
	for i := 0; i <= len(data); i++ {
		fn(data[:i], data[i:])
	}
}

// BlockingReaderAt parks every ReadAt until released, then serves from
// Data. It drives cancellation paths deterministically.
type BlockingReaderAt struct {
	Data []byte
	gate chan struct{}
	once sync.Once
}

func NewBlockingReaderAt(data []byte) *BlockingReaderAt {
	return &BlockingReaderAt{Data: data, gate: make(chan struct{})}
}

// Release permanently unblocks all reads, pending and future.
func (r *BlockingReaderAt) Release() {
	r.once.Do(func() { close(r.gate) })
}

func (r *BlockingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	<-r.gate
	if off >= int64(len(r.Data)) {
		return 0, io.EOF
	}
	n := copy(p, r.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

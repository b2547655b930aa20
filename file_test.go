package binio

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oy3o/binio/internal/testutil"
)

// mockReaderAtCloser records whether Close reached the inner store.
type mockReaderAtCloser struct {
	io.ReaderAt
	closed bool
}

func (m *mockReaderAtCloser) Close() error {
	m.closed = true
	return nil
}

// mockWriterAtCloser records whether Close reached the inner store.
type mockWriterAtCloser struct {
	io.WriterAt
	closed bool
}

func (m *mockWriterAtCloser) Close() error {
	m.closed = true
	return nil
}

// mockFailingWriterAt rejects every positioned write.
type mockFailingWriterAt struct{}

func (mockFailingWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return 0, assert.AnError
}

// mockShortWriterAt accepts one byte less than asked.
type mockShortWriterAt struct {
	store *testutil.MemStore
}

func (m *mockShortWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if len(p) > 1 {
		p = p[:len(p)-1]
	}
	return m.store.WriteAt(p, off)
}

// --- FileReader ---

func TestFileReader(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	ctx := context.Background()

	t.Run("SequentialPrefetch", func(t *testing.T) {
		store := testutil.NewMemStore(data)
		fr, err := NewFileReaderAt(ctx, store, 0, 16)
		require.NoError(t, err)

		got, err := io.ReadAll(fr)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		// 100 bytes in 16-byte prefetches: the seventh read is short.
		assert.Equal(t, 7, store.ReadAts)
		assert.EqualValues(t, 100, fr.Offset())

		_, err = fr.Chunk()
		assert.ErrorIs(t, err, io.EOF)

		require.NoError(t, fr.Close())
		assert.ErrorIs(t, fr.Close(), ErrClosed)
		_, err = fr.Chunk()
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("StartOffset", func(t *testing.T) {
		store := testutil.NewMemStore(data)
		fr, err := NewFileReaderAt(ctx, store, 50, 16)
		require.NoError(t, err)
		defer fr.Close()

		got, err := io.ReadAll(fr)
		require.NoError(t, err)
		assert.Equal(t, data[50:], got)
		assert.EqualValues(t, 100, fr.Offset())
	})

	t.Run("ChunkWindows", func(t *testing.T) {
		store := testutil.NewMemStore(data)
		fr, err := NewFileReaderAt(ctx, store, 0, 16)
		require.NoError(t, err)
		defer fr.Close()

		chunk, err := fr.Chunk()
		require.NoError(t, err)
		assert.Equal(t, data[:16], chunk)

		fr.Advance(10)
		assert.EqualValues(t, 10, fr.Offset())

		// The unconsumed window comes back before the next buffer swap.
		chunk, err = fr.Chunk()
		require.NoError(t, err)
		assert.Equal(t, data[10:16], chunk)
	})

	t.Run("SizeFloor", func(t *testing.T) {
		store := testutil.NewMemStore(data)
		fr, err := NewFileReaderAt(ctx, store, 0, 1)
		require.NoError(t, err)
		defer fr.Close()

		chunk, err := fr.Chunk()
		require.NoError(t, err)
		assert.Len(t, chunk, minBufferedSize)
	})

	t.Run("EmptyStore", func(t *testing.T) {
		fr, err := NewFileReaderAt(ctx, testutil.NewMemStore(nil), 0, 16)
		require.NoError(t, err)
		defer fr.Close()

		_, err = fr.Chunk()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := NewFileReaderAt(ctx, nil, 0, 16)
		assert.ErrorIs(t, err, ErrNilIO)

		_, err = NewFileReaderAt(ctx, testutil.NewMemStore(data), -1, 16)
		assert.ErrorIs(t, err, ErrInvalidSeek)
	})

	t.Run("Cancellation", func(t *testing.T) {
		blocker := testutil.NewBlockingReaderAt(data)
		cctx, cancel := context.WithCancel(ctx)
		fr, err := NewFileReaderAt(cctx, blocker, 0, 16)
		require.NoError(t, err)

		cancel()
		_, err = fr.Chunk()
		require.ErrorIs(t, err, context.Canceled)

		// The error latches; the in-flight read stays owned by the worker.
		_, err = fr.Chunk()
		assert.ErrorIs(t, err, context.Canceled)

		blocker.Release()
		require.NoError(t, fr.Close())
		assert.ErrorIs(t, fr.Close(), ErrClosed)
	})

	t.Run("ClosesInner", func(t *testing.T) {
		inner := &mockReaderAtCloser{ReaderAt: testutil.NewMemStore(data)}
		fr, err := NewFileReaderAt(ctx, inner, 0, 16)
		require.NoError(t, err)

		require.NoError(t, fr.Close())
		assert.True(t, inner.closed)
	})

	t.Run("ReaderFacade", func(t *testing.T) {
		seq := NewSequence()
		defer seq.Release()
		w := NewWriterSequence(seq)
		w.WriteUint32(0xFEEDC0DE)
		require.NoError(t, w.WriteBlock([]byte("payload"), Compressed))
		require.NoError(t, w.Flush())

		store := testutil.NewMemStore(seq.AppendTo(nil))
		fr, err := NewFileReaderAt(ctx, store, 0, 16)
		require.NoError(t, err)
		defer fr.Close()

		r, err := NewReaderSource(fr)
		require.NoError(t, err)
		var magic uint32
		r.ReadUint32(&magic)
		assert.Equal(t, uint32(0xFEEDC0DE), magic)

		blk, err := r.ReadBlock(Compressed)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), blk.Bytes())
		blk.Release()
	})
}

// --- FileWriter ---

func TestFileWriter(t *testing.T) {
	ctx := context.Background()

	payload := func(n int) []byte {
		p := make([]byte, n)
		for i := range p {
			p[i] = byte(i * 7)
		}
		return p
	}

	t.Run("RoundTrip", func(t *testing.T) {
		data := payload(100)
		store := testutil.NewMemStore(nil)
		fw, err := NewFileWriterAt(ctx, store, 0, 16)
		require.NoError(t, err)

		// Odd-sized writes so segment seams never line up with call seams.
		for off, step := 0, 1; off < len(data); off, step = off+step, step%9+1 {
			end := min(off+step, len(data))
			n, werr := fw.Write(data[off:end])
			require.NoError(t, werr)
			assert.Equal(t, end-off, n)
		}
		assert.Zero(t, store.WriteAts)

		require.NoError(t, fw.Flush())
		assert.Equal(t, data, store.Buf)
		// Six full segments plus the tail, one positioned write each.
		assert.Equal(t, 7, store.WriteAts)

		require.NoError(t, fw.Close())
		assert.ErrorIs(t, fw.Close(), ErrClosed)
		_, err = fw.Write([]byte{1})
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("LargePayload", func(t *testing.T) {
		data := payload(10007)
		store := testutil.NewMemStore(nil)
		fw, err := NewFileWriterAt(ctx, store, 0, 16)
		require.NoError(t, err)

		n, err := fw.Write(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		require.NoError(t, fw.Close())
		assert.Equal(t, data, store.Buf)
	})

	t.Run("WriteByte", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		fw, err := NewFileWriterAt(ctx, store, 0, 16)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			require.NoError(t, fw.WriteByte(byte(i)))
		}
		require.NoError(t, fw.Flush())
		assert.Equal(t, payloadBytes(20), store.Buf)
		require.NoError(t, fw.Close())
	})

	t.Run("StartOffsetPreservesHead", func(t *testing.T) {
		store := testutil.NewMemStore([]byte("head...."))
		fw, err := NewFileWriterAt(ctx, store, 4, 16)
		require.NoError(t, err)

		_, err = fw.Write([]byte("tail"))
		require.NoError(t, err)
		require.NoError(t, fw.Flush())
		assert.Equal(t, []byte("headtail"), store.Buf)
		require.NoError(t, fw.Close())
	})

	t.Run("FlushWithNothingStaged", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		fw, err := NewFileWriterAt(ctx, store, 0, 16)
		require.NoError(t, err)

		require.NoError(t, fw.Flush())
		assert.Zero(t, store.WriteAts)
		require.NoError(t, fw.Close())
	})

	t.Run("CloseFlushesRemainder", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		fw, err := NewFileWriterAt(ctx, store, 0, 16)
		require.NoError(t, err)

		_, err = fw.Write([]byte("tail bytes"))
		require.NoError(t, err)
		require.NoError(t, fw.Close())
		assert.Equal(t, []byte("tail bytes"), store.Buf)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := NewFileWriterAt(ctx, nil, 0, 16)
		assert.ErrorIs(t, err, ErrNilIO)

		_, err = NewFileWriterAt(ctx, testutil.NewMemStore(nil), -1, 16)
		assert.ErrorIs(t, err, ErrInvalidSeek)
	})

	t.Run("StoreErrorLatches", func(t *testing.T) {
		fw, err := NewFileWriterAt(ctx, mockFailingWriterAt{}, 0, 16)
		require.NoError(t, err)

		// The first batch kicks at 128 staged bytes; its failure surfaces
		// when the second kick joins it, 256 bytes in.
		n, err := fw.Write(make([]byte, 300))
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 256, n)

		assert.ErrorIs(t, fw.Flush(), assert.AnError)
		_, err = fw.Write([]byte{1})
		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorIs(t, fw.Close(), assert.AnError)
	})

	t.Run("ClosesInner", func(t *testing.T) {
		inner := &mockWriterAtCloser{WriterAt: testutil.NewMemStore(nil)}
		fw, err := NewFileWriterAt(ctx, inner, 0, 16)
		require.NoError(t, err)

		_, err = fw.Write([]byte("x"))
		require.NoError(t, err)
		require.NoError(t, fw.Close())
		assert.True(t, inner.closed)
	})
}

func payloadBytes(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

// --- writevAt fallback ---

func TestWritevAtFallback(t *testing.T) {
	t.Run("OneWritePerSegment", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		n, err := writevAtFallback(store, [][]byte{[]byte("ab"), []byte("cd"), []byte("e")}, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []byte("abcde"), store.Buf)
		assert.Equal(t, 3, store.WriteAts)
	})

	t.Run("ShortWrite", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		short := &mockShortWriterAt{store: store}
		n, err := writevAtFallback(short, [][]byte{[]byte("abcd"), []byte("ef")}, 0)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.Equal(t, 3, n)
	})
}

package pipe

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func pipePayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*31 + 7)
	}
	return p
}

func TestPipeConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		p, err := New()
		require.NoError(t, err)
		require.NoError(t, p.Writer().Close())
	})

	t.Run("ZeroSegmentSize", func(t *testing.T) {
		_, err := New(WithSegmentSize(0))
		assert.ErrorIs(t, err, ErrBadConfig)
	})

	t.Run("ZeroSegments", func(t *testing.T) {
		_, err := New(WithSegments(0))
		assert.ErrorIs(t, err, ErrBadConfig)
	})
}

func TestPipeRoundTrip(t *testing.T) {
	// Far more data than the pool holds, so segments recirculate.
	data := pipePayload(64 * 1024)
	p, err := New(WithSegmentSize(1024), WithSegments(4))
	require.NoError(t, err)

	go func() {
		w := p.Writer()
		for off := 0; off < len(data); off += 999 {
			end := min(off+999, len(data))
			if _, err := w.Write(data[off:end]); err != nil {
				w.CloseWithError(err)
				return
			}
		}
		w.Close()
	}()

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Len(t, got, len(data))
	assert.Equal(t, xxh3.Hash(data), xxh3.Hash(got))

	// Drained and closed: every Chunk from here on reports a clean end.
	_, err = p.Reader().Chunk()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeBackpressure(t *testing.T) {
	p, err := New(WithSegmentSize(4), WithSegments(1))
	require.NoError(t, err)
	w, r := p.Writer(), p.Reader()

	// Fills the only segment; it moves to the delivery queue.
	n, err := w.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	unblocked := make(chan struct{})
	go func() {
		defer close(unblocked)
		if _, err := w.Write([]byte("ef")); err != nil {
			t.Error(err)
		}
	}()

	select {
	case <-unblocked:
		t.Fatal("write proceeded with every segment still held")
	case <-time.After(50 * time.Millisecond):
	}

	chunk, err := r.Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), chunk)
	r.Advance(4)

	// Draining past the segment recycles it, which is what frees the writer.
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.WithContext(cctx).Chunk()
	require.ErrorIs(t, err, context.Canceled)
	<-unblocked

	require.NoError(t, w.Flush())
	chunk, err = r.WithContext(context.Background()).Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("ef"), chunk)
}

func TestPipeFlushVisibility(t *testing.T) {
	p, err := New(WithSegmentSize(8), WithSegments(2))
	require.NoError(t, err)
	w, r := p.Writer(), p.Reader()

	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)

	// Nothing delivered yet; a bounded wait comes back empty.
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.WithContext(cctx).Chunk()
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, w.Flush())
	chunk, err := r.WithContext(context.Background()).Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), chunk)
}

func TestPipeWriteByte(t *testing.T) {
	p, err := New(WithSegmentSize(2), WithSegments(2))
	require.NoError(t, err)
	w, r := p.Writer(), p.Reader()

	// The second byte fills the segment, delivering without a flush.
	require.NoError(t, w.WriteByte('a'))
	require.NoError(t, w.WriteByte('b'))

	chunk, err := r.Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), chunk)
}

func TestPipeReaderCancellation(t *testing.T) {
	p, err := New(WithSegmentSize(8), WithSegments(2))
	require.NoError(t, err)
	r := p.Reader()

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.WithContext(cctx).Chunk()
	require.ErrorIs(t, err, context.Canceled)

	// A cancelled wait is not a pipe failure; a fresh wait still works.
	_, err = p.Writer().Write([]byte("late"))
	require.NoError(t, err)
	require.NoError(t, p.Writer().Flush())

	chunk, err := r.WithContext(context.Background()).Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), chunk)
}

func TestPipeWriterCancellation(t *testing.T) {
	p, err := New(WithSegmentSize(4), WithSegments(1))
	require.NoError(t, err)
	w := p.Writer()

	// Park the only segment in the delivery queue, then cancel the writer
	// while it waits for the pool.
	_, err = w.Write([]byte("full"))
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = w.WithContext(cctx).Write([]byte("x"))
	require.ErrorIs(t, err, context.Canceled)

	// The writer is dead; the failure latches.
	_, err = w.Write([]byte("y"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeWriterClose(t *testing.T) {
	t.Run("CleanCloseReadsAsEOF", func(t *testing.T) {
		p, err := New(WithSegmentSize(8), WithSegments(2))
		require.NoError(t, err)

		_, err = p.Writer().Write([]byte("tail"))
		require.NoError(t, err)
		require.NoError(t, p.Writer().Close())

		chunk, err := p.Reader().Chunk()
		require.NoError(t, err)
		assert.Equal(t, []byte("tail"), chunk)
		p.Reader().Advance(4)

		_, err = p.Reader().Chunk()
		assert.ErrorIs(t, err, io.EOF)

		// Writes after close fail; a second close stays silent.
		_, err = p.Writer().Write([]byte("x"))
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		assert.NoError(t, p.Writer().Close())
	})

	t.Run("CloseWithErrorSurfacesAfterDrain", func(t *testing.T) {
		p, err := New(WithSegmentSize(8), WithSegments(2))
		require.NoError(t, err)

		_, err = p.Writer().Write([]byte("last"))
		require.NoError(t, err)
		require.NoError(t, p.Writer().CloseWithError(assert.AnError))

		chunk, err := p.Reader().Chunk()
		require.NoError(t, err)
		assert.Equal(t, []byte("last"), chunk)
		p.Reader().Advance(4)

		_, err = p.Reader().Chunk()
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestPipeReaderClose(t *testing.T) {
	t.Run("WriterSeesClosedPipe", func(t *testing.T) {
		p, err := New(WithSegmentSize(4), WithSegments(2))
		require.NoError(t, err)

		require.NoError(t, p.Reader().Close())
		_, err = p.Writer().Write([]byte("doomed"))
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})

	t.Run("WriterSeesCustomReason", func(t *testing.T) {
		p, err := New(WithSegmentSize(4), WithSegments(2))
		require.NoError(t, err)

		require.NoError(t, p.Reader().CloseWithError(assert.AnError))
		_, err = p.Writer().Write([]byte("doomed"))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("UnblocksParkedWriter", func(t *testing.T) {
		p, err := New(WithSegmentSize(4), WithSegments(1))
		require.NoError(t, err)
		w := p.Writer()

		_, err = w.Write([]byte("full"))
		require.NoError(t, err)

		werr := make(chan error, 1)
		go func() {
			_, err := w.Write([]byte("blocked"))
			werr <- err
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, p.Reader().Close())
		assert.ErrorIs(t, <-werr, io.ErrClosedPipe)
	})
}

func TestPipeWriteTo(t *testing.T) {
	p, err := New(WithSegmentSize(8), WithSegments(2))
	require.NoError(t, err)

	go func() {
		_, _ = p.Writer().Write([]byte("hand it all over"))
		p.Writer().Close()
	}()

	var sink bytes.Buffer
	n, err := p.Reader().WriteTo(&sink)
	require.NoError(t, err)
	assert.EqualValues(t, 16, n)
	assert.Equal(t, "hand it all over", sink.String())
}

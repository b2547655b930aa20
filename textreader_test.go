package binio

import (
	"io"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- rune decoding ---

func TestTextReaderRunes(t *testing.T) {
	t.Run("AsciiFastPath", func(t *testing.T) {
		tr := NewTextReader("abc")
		for _, want := range "abc" {
			r, size, err := tr.ReadRune()
			require.NoError(t, err)
			assert.Equal(t, want, r)
			assert.Equal(t, 1, size)
		}
		_, _, err := tr.ReadRune()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("RuneSplitAcrossSegments", func(t *testing.T) {
		// é = C3 A9, split between two segments.
		tr := NewTextReader("a\xc3", "\xa9b")

		r, size, err := tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'a', r)
		assert.Equal(t, 1, size)

		r, size, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'é', r)
		assert.Equal(t, 2, size)

		r, _, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'b', r)
		assert.EqualValues(t, 0, tr.Len())
	})

	t.Run("WideRuneSplit", func(t *testing.T) {
		// 世界 with the first rune broken after one byte.
		tr := NewTextReader("\xe4", "\xb8\x96\xe7\x95\x8c")

		r, size, err := tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, '世', r)
		assert.Equal(t, 3, size)
		assert.EqualValues(t, 3, tr.Len())

		r, size, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, '界', r)
		assert.Equal(t, 3, size)
		assert.EqualValues(t, 0, tr.Len())
	})

	t.Run("InvalidByte", func(t *testing.T) {
		tr := NewTextReader("\xffx")
		r, size, err := tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, utf8.RuneError, r)
		assert.Equal(t, 1, size)

		r, _, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'x', r)
	})

	t.Run("EmptySegmentsSkipped", func(t *testing.T) {
		tr := NewTextReader("", "a", "", "", "b")
		r, _, err := tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'a', r)
		r, _, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'b', r)
		_, _, err = tr.ReadRune()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("PeekDoesNotConsume", func(t *testing.T) {
		tr := NewTextReader("é!")
		r, size, err := tr.Peek()
		require.NoError(t, err)
		assert.Equal(t, 'é', r)
		assert.Equal(t, 2, size)
		assert.EqualValues(t, 3, tr.Len())

		r, _, err = tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'é', r)

		r, _, err = tr.Peek()
		require.NoError(t, err)
		assert.Equal(t, '!', r)
	})
}

// --- lines ---

func TestTextReaderLines(t *testing.T) {
	t.Run("MixedTerminators", func(t *testing.T) {
		tr := NewTextReader("one\r\ntwo\nthree\r")

		line, err := tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "one", line)

		line, err = tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "two", line)

		// No terminator: the carriage return stays, it is content.
		line, err = tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "three\r", line)

		_, err = tr.ReadLine()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("LineAcrossSegments", func(t *testing.T) {
		tr := NewTextReader("hel", "lo wo", "rld\nnext")
		line, err := tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "hello world", line)

		line, err = tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "next", line)
	})

	t.Run("TerminatorSplitAcrossSegments", func(t *testing.T) {
		tr := NewTextReader("ab\r", "\ncd")
		line, err := tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "ab", line)

		line, err = tr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "cd", line)
	})

	t.Run("EmptyLines", func(t *testing.T) {
		tr := NewTextReader("\n\nx\n")
		for _, want := range []string{"", "", "x"} {
			line, err := tr.ReadLine()
			require.NoError(t, err)
			assert.Equal(t, want, line)
		}
		_, err := tr.ReadLine()
		assert.ErrorIs(t, err, io.EOF)
	})
}

// --- bulk reads ---

func TestTextReaderStrings(t *testing.T) {
	t.Run("WithinSegment", func(t *testing.T) {
		tr := NewTextReader("abcdef")
		s, err := tr.ReadString(4)
		require.NoError(t, err)
		assert.Equal(t, "abcd", s)
		assert.EqualValues(t, 2, tr.Len())
	})

	t.Run("AcrossSegments", func(t *testing.T) {
		tr := NewTextReader("ab", "cd", "ef")
		s, err := tr.ReadString(5)
		require.NoError(t, err)
		assert.Equal(t, "abcde", s)
	})

	t.Run("ShortAtEnd", func(t *testing.T) {
		tr := NewTextReader("abc")
		s, err := tr.ReadString(10)
		require.NoError(t, err)
		assert.Equal(t, "abc", s)

		_, err = tr.ReadString(1)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("NonPositiveCount", func(t *testing.T) {
		tr := NewTextReader("abc")
		s, err := tr.ReadString(0)
		require.NoError(t, err)
		assert.Empty(t, s)
		assert.EqualValues(t, 3, tr.Len())
	})
}

func TestTextReaderToEnd(t *testing.T) {
	t.Run("LastSegmentRemainder", func(t *testing.T) {
		tr := NewTextReader("hello world")
		_, err := tr.ReadString(6)
		require.NoError(t, err)
		assert.Equal(t, "world", tr.ReadToEnd())
		assert.EqualValues(t, 0, tr.Len())
	})

	t.Run("MultiSegment", func(t *testing.T) {
		tr := NewTextReader("one ", "two ", "three")
		r, _, err := tr.ReadRune()
		require.NoError(t, err)
		assert.Equal(t, 'o', r)
		assert.Equal(t, "ne two three", tr.ReadToEnd())
	})

	t.Run("Exhausted", func(t *testing.T) {
		tr := NewTextReader()
		assert.Empty(t, tr.ReadToEnd())
	})
}

func TestTextReaderReset(t *testing.T) {
	tr := NewTextReader("first")
	s, err := tr.ReadString(5)
	require.NoError(t, err)
	assert.Equal(t, "first", s)

	tr.Reset("sec", "ond")
	assert.EqualValues(t, 6, tr.Len())
	assert.Equal(t, "second", tr.ReadToEnd())
}

package binio

import (
	"io"
	"strings"
	"unicode/utf8"
)

// TextReader reads text from an in-memory chunked character sequence. It
// is a convenience facade over already-decoded segments and takes no part
// in the binary wire contract. A rune split across two segments is
// reassembled transparently.
type TextReader struct {
	segs []string
	i    int   // current segment index
	off  int   // byte offset within segs[i]
	pos  int64 // bytes consumed
	size int64
}

// NewTextReader reads from the given segments in order.
func NewTextReader(segments ...string) *TextReader {
	t := &TextReader{}
	t.Reset(segments...)
	return t
}

// Reset rewinds the reader onto a new set of segments.
func (t *TextReader) Reset(segments ...string) {
	t.segs = segments
	t.i, t.off, t.pos = 0, 0, 0
	t.size = 0
	for _, s := range segments {
		t.size += int64(len(s))
	}
	t.normalize()
}

// Len returns the number of unread bytes.
func (t *TextReader) Len() int64 { return t.size - t.pos }

// normalize skips exhausted and empty segments.
func (t *TextReader) normalize() {
	for t.i < len(t.segs) && t.off == len(t.segs[t.i]) {
		t.i++
		t.off = 0
	}
}

func (t *TextReader) eof() bool { return t.i >= len(t.segs) }

// advance consumes n bytes across segment boundaries.
func (t *TextReader) advance(n int) {
	for n > 0 {
		m := min(len(t.segs[t.i])-t.off, n)
		t.off += m
		t.pos += int64(m)
		n -= m
		t.normalize()
	}
}

// ReadRune returns the next rune and its byte size. An invalid byte
// decodes as utf8.RuneError with size 1, matching bufio.Reader.
func (t *TextReader) ReadRune() (rune, int, error) {
	if t.eof() {
		return 0, 0, io.EOF
	}
	seg := t.segs[t.i]
	if b := seg[t.off]; b < utf8.RuneSelf {
		t.advance(1)
		return rune(b), 1, nil
	}
	r, size := utf8.DecodeRuneInString(seg[t.off:])
	if r != utf8.RuneError || size > 1 {
		t.advance(size)
		return r, size, nil
	}
	// The rune may continue in the next segment; reassemble its bytes.
	var scratch [utf8.UTFMax]byte
	n := copy(scratch[:], seg[t.off:])
	for j := t.i + 1; n < utf8.UTFMax && j < len(t.segs); j++ {
		n += copy(scratch[n:], t.segs[j])
	}
	r, size = utf8.DecodeRune(scratch[:n])
	t.advance(size)
	return r, size, nil
}

// Peek returns the next rune without consuming it.
func (t *TextReader) Peek() (rune, int, error) {
	i, off, pos := t.i, t.off, t.pos
	r, size, err := t.ReadRune()
	t.i, t.off, t.pos = i, off, pos
	return r, size, err
}

// ReadLine returns the next line without its terminator. Both "\n" and
// "\r\n" end a line; the final line needs no terminator. Once the
// sequence is exhausted ReadLine returns io.EOF.
func (t *TextReader) ReadLine() (string, error) {
	if t.eof() {
		return "", io.EOF
	}
	seg := t.segs[t.i]
	if k := strings.IndexByte(seg[t.off:], '\n'); k >= 0 {
		line := strings.TrimSuffix(seg[t.off:t.off+k], "\r")
		t.advance(k + 1)
		return line, nil
	}
	var sb strings.Builder
	sb.WriteString(seg[t.off:])
	t.advance(len(seg) - t.off)
	for !t.eof() {
		seg = t.segs[t.i]
		if k := strings.IndexByte(seg, '\n'); k >= 0 {
			sb.WriteString(seg[:k])
			t.advance(k + 1)
			return strings.TrimSuffix(sb.String(), "\r"), nil
		}
		sb.WriteString(seg)
		t.advance(len(seg))
	}
	// Unterminated final line; a trailing carriage return is content.
	return sb.String(), nil
}

// ReadString reads up to n bytes as a string. It returns io.EOF only when
// nothing remains.
func (t *TextReader) ReadString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	if t.eof() {
		return "", io.EOF
	}
	seg := t.segs[t.i]
	if len(seg)-t.off >= n {
		s := seg[t.off : t.off+n]
		t.advance(n)
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(min(n, int(t.Len())))
	for n > 0 && !t.eof() {
		seg = t.segs[t.i]
		m := min(len(seg)-t.off, n)
		sb.WriteString(seg[t.off : t.off+m])
		t.advance(m)
		n -= m
	}
	return sb.String(), nil
}

// ReadToEnd returns everything left in the sequence.
func (t *TextReader) ReadToEnd() string {
	if t.eof() {
		return ""
	}
	if t.i == len(t.segs)-1 {
		rem := t.segs[t.i][t.off:]
		t.advance(len(rem))
		return rem
	}
	var sb strings.Builder
	sb.Grow(int(t.Len()))
	for !t.eof() {
		seg := t.segs[t.i]
		sb.WriteString(seg[t.off:])
		t.advance(len(seg) - t.off)
	}
	return sb.String()
}

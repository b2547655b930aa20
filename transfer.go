package binio

import (
	"strings"

	"golang.org/x/text/encoding"
)

// Transfer helpers drain a reader into common in-memory shapes. They are
// composition glue over CopyTo and the in-memory probe; no wire semantics
// of their own.

// bufferWriter adapts a Buffer to io.Writer for CopyTo.
type bufferWriter struct{ buf *Buffer }

func (w bufferWriter) Write(p []byte) (int, error) {
	if err := w.buf.append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ToBuffer drains r into a pooled Buffer. The caller owns the buffer and
// must release it.
func ToBuffer(r *Reader) (*Buffer, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	buf := &Buffer{}
	if _, err := r.CopyTo(bufferWriter{buf}); err != nil {
		buf.Release()
		return nil, err
	}
	if buf.Len() == 0 {
		buf.Release()
		return emptyBuffer, nil
	}
	return buf, nil
}

// ToBytes drains r and returns the remaining bytes in a fresh slice.
func ToBytes(r *Reader) ([]byte, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if view, ok := r.Bytes(); ok {
		out := make([]byte, len(view))
		copy(out, view)
		r.Skip(len(view))
		return out, nil
	}
	buf, err := ToBuffer(r)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// ToString drains r and decodes the remaining bytes as enc. A nil encoding
// means UTF-8.
func ToString(r *Reader, enc encoding.Encoding) (string, error) {
	if r == nil {
		return "", ErrNilIO
	}
	if err := r.Err(); err != nil {
		return "", err
	}
	if enc == nil {
		if view, ok := r.Bytes(); ok {
			s := string(view)
			r.Skip(len(view))
			return s, nil
		}
		var sb strings.Builder
		if _, err := r.CopyTo(&sb); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	buf, err := ToBuffer(r)
	if err != nil {
		return "", err
	}
	defer buf.Release()
	out, err := enc.NewDecoder().Bytes(buf.Bytes())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

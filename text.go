package binio

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Text decoding is driven by the same chunk pull as every other element, so
// an encoded character can land across a chunk boundary. The transformer
// reports the split through transform.ErrShortSrc; the undecoded tail bytes
// are carried into a small scratch and finished with the next chunk.

// maxCarry bounds the bytes a single encoded unit may straddle. No
// supported encoding needs more; exceeding it means the input is garbage.
const maxCarry = 32

// nextTextChunk returns the next source chunk capped to the remaining
// encoded length. The length prefix promised those bytes, so any end of
// input here is truncation.
func nextTextChunk(r *Reader, left int) ([]byte, error) {
	chunk, err := r.src.Chunk()
	if err != nil {
		if err == io.EOF {
			err = ErrTruncated
		}
		return nil, err
	}
	if len(chunk) > left {
		chunk = chunk[:left]
	}
	return chunk, nil
}

// transformChunks decodes n encoded bytes from the reader's source through
// t, handing decoded output to fn in pieces. The output slice is reused
// between calls.
func transformChunks(r *Reader, n int, t transform.Transformer, fn func([]byte) error) error {
	dstSlab, dstClass := rentSlab(BUFFER_SIZE)
	defer returnSlab(dstSlab, dstClass)
	dst := (*dstSlab)[:BUFFER_SIZE]

	var carry [maxCarry]byte
	carryLen := 0
	left := n
	for {
		if carryLen > 0 {
			// A unit split across chunks: top the carry up and decode from it.
			if left > 0 {
				chunk, err := nextTextChunk(r, left)
				if err != nil {
					return err
				}
				k := copy(carry[carryLen:], chunk)
				r.src.Advance(k)
				r.count += int64(k)
				left -= k
				carryLen += k
			}
			atEOF := left == 0
			nDst, nSrc, terr := t.Transform(dst, carry[:carryLen], atEOF)
			copy(carry[:], carry[nSrc:carryLen])
			carryLen -= nSrc
			if nDst > 0 {
				if err := fn(dst[:nDst]); err != nil {
					return err
				}
			}
			switch terr {
			case nil:
				if atEOF && carryLen == 0 {
					return nil
				}
			case transform.ErrShortDst:
				// Output drained by fn; go around.
			case transform.ErrShortSrc:
				if atEOF || carryLen == maxCarry {
					return fmt.Errorf("binio: text decode stalled on %d-byte unit", carryLen)
				}
			default:
				return terr
			}
			continue
		}
		if left == 0 {
			// All input consumed; flush whatever the transformer holds.
			for {
				nDst, _, terr := t.Transform(dst, nil, true)
				if nDst > 0 {
					if err := fn(dst[:nDst]); err != nil {
						return err
					}
				}
				if terr == nil {
					return nil
				}
				if terr != transform.ErrShortDst {
					return terr
				}
			}
		}
		chunk, err := nextTextChunk(r, left)
		if err != nil {
			return err
		}
		atEOF := len(chunk) == left
		nDst, nSrc, terr := t.Transform(dst, chunk, atEOF)
		r.src.Advance(nSrc)
		r.count += int64(nSrc)
		left -= nSrc
		if nDst > 0 {
			if err := fn(dst[:nDst]); err != nil {
				return err
			}
		}
		switch terr {
		case nil:
			if atEOF && nSrc == len(chunk) {
				return nil
			}
		case transform.ErrShortDst:
			// Go around with a drained dst.
		case transform.ErrShortSrc:
			rem := chunk[nSrc:]
			if len(rem) > maxCarry {
				return fmt.Errorf("binio: text decode stalled on %d-byte unit", len(rem))
			}
			carryLen = copy(carry[:], rem)
			r.src.Advance(len(rem))
			r.count += int64(len(rem))
			left -= len(rem)
		default:
			return terr
		}
	}
}

// decodeText reads n encoded bytes and returns them decoded as a string.
func decodeText(r *Reader, n int, enc encoding.Encoding) (string, error) {
	if enc == nil {
		// UTF-8 passthrough. A span inside one chunk becomes a string in a
		// single allocation.
		chunk, err := r.src.Chunk()
		if err != nil {
			if err == io.EOF {
				err = ErrTruncated
			}
			return "", err
		}
		if len(chunk) >= n {
			s := string(chunk[:n])
			r.src.Advance(n)
			r.count += int64(n)
			return s, nil
		}
		var sb strings.Builder
		sb.Grow(n)
		if err := copyTextChunks(r, n, func(p []byte) error {
			sb.Write(p)
			return nil
		}); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	var sb strings.Builder
	sb.Grow(n)
	if err := transformChunks(r, n, enc.NewDecoder(), func(p []byte) error {
		sb.Write(p)
		return nil
	}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// decodeTextFunc streams decoded output to fn chunk by chunk.
func decodeTextFunc(r *Reader, n int, enc encoding.Encoding, fn func([]byte) error) error {
	if enc == nil {
		return copyTextChunks(r, n, fn)
	}
	return transformChunks(r, n, enc.NewDecoder(), fn)
}

// copyTextChunks hands n raw bytes to fn directly from the source windows.
func copyTextChunks(r *Reader, n int, fn func([]byte) error) error {
	left := n
	for left > 0 {
		chunk, err := nextTextChunk(r, left)
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
		r.src.Advance(len(chunk))
		r.count += int64(len(chunk))
		left -= len(chunk)
	}
	return nil
}

// encodeText converts s into enc's byte form using a pooled scratch. The
// release closure returns the scratch; the encoded slice is only valid
// before it runs.
func encodeText(s string, enc encoding.Encoding) ([]byte, func(), error) {
	slab, class := rentSlab(len(s) + len(s)/2 + 8)
	release := func() { returnSlab(slab, class) }
	out, _, err := transform.Append(enc.NewEncoder(), (*slab)[:0], []byte(s))
	if err != nil {
		release()
		return nil, nil, err
	}
	return out, release, nil
}

package binio

// The Compressed length format stores 7 payload bits per byte, least
// significant group first, with the high bit flagging continuation. A 32-bit
// value therefore takes 1 to 5 bytes, and the fifth byte may neither carry a
// continuation bit nor payload above bit 31.

// MaxCompressedLen is the largest encoded size of a Compressed length.
const MaxCompressedLen = 5

// rawLengthSize is the wire size of every Raw length prefix, independent of
// the platform word size.
const rawLengthSize = 4

// CompressedLen returns the encoded size of v in bytes.
func CompressedLen(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	default:
		return 5
	}
}

// AppendCompressed appends the encoding of v to dst and returns the extended slice.
func AppendCompressed(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// PutCompressed encodes v into buf and returns the number of bytes written.
// It fails with ErrBufferTooSmall when buf cannot hold the encoding.
func PutCompressed(buf []byte, v uint32) (int, error) {
	if len(buf) < CompressedLen(v) {
		return 0, ErrBufferTooSmall
	}
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	return n + 1, nil
}

// Uncompress decodes a Compressed value from the start of buf. It returns
// the value and the number of bytes consumed. A buffer that ends mid-value
// fails with ErrTruncated; an encoding that exceeds 32 bits fails with
// ErrMalformedVarint.
func Uncompress(buf []byte) (uint32, int, error) {
	var v uint32
	var shift uint
	for i, b := range buf {
		if i == MaxCompressedLen-1 {
			// Fifth byte: no continuation, and only bits 28..31 may be set.
			if b > 0x0F {
				return 0, i + 1, ErrMalformedVarint
			}
			return v | uint32(b)<<shift, i + 1, nil
		}
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, len(buf), ErrTruncated
}

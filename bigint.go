package binio

import (
	"encoding/binary"
	"math/big"
)

// Big integers travel as length-prefixed blocks holding the minimal
// two's-complement form: the shortest byte string whose top bit still
// carries the sign. Zero is one 0x00 byte on the wire, and an empty block
// decodes to zero. Little-endian is the byte-reversed form.

var bigOne = big.NewInt(1)

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// bigIntBytes returns the minimal two's-complement form of v in the given
// byte order.
func bigIntBytes(v *big.Int, order binary.ByteOrder) []byte {
	var b []byte
	if v.Sign() >= 0 {
		mag := v.Bytes()
		if len(mag) == 0 {
			b = []byte{0}
		} else if mag[0]&0x80 != 0 {
			b = make([]byte, len(mag)+1)
			copy(b[1:], mag)
		} else {
			b = mag
		}
	} else {
		m := new(big.Int).Neg(v)
		bits := new(big.Int).Sub(m, bigOne).BitLen()
		n := bits/8 + 1
		tc := new(big.Int).Lsh(bigOne, uint(8*n))
		tc.Sub(tc, m)
		b = tc.FillBytes(make([]byte, n))
	}
	if order == LE {
		reverseBytes(b)
	}
	return b
}

// bigIntFromBytes decodes a two's-complement form in the given byte order.
func bigIntFromBytes(b []byte, order binary.ByteOrder) *big.Int {
	v := new(big.Int)
	if len(b) == 0 {
		return v
	}
	if order == LE {
		be := make([]byte, len(b))
		copy(be, b)
		reverseBytes(be)
		b = be
	}
	v.SetBytes(b)
	if b[0]&0x80 != 0 {
		shift := new(big.Int).Lsh(bigOne, uint(8*len(b)))
		v.Sub(v, shift)
	}
	return v
}

// ReadBigInt reads a length-prefixed big integer in its minimal
// two's-complement form, using the reader's byte order.
func (r *Reader) ReadBigInt(f LengthFormat) (*big.Int, error) {
	if r.err != nil {
		return nil, r.err
	}
	return Parse(r, f, func(span []byte) (*big.Int, error) {
		return bigIntFromBytes(span, r.order), nil
	})
}

// WriteBigInt writes v as a length-prefixed block in its minimal
// two's-complement form, using the writer's byte order.
func (w *Writer) WriteBigInt(v *big.Int, f LengthFormat) error {
	if w.err != nil {
		return w.err
	}
	if v == nil {
		w.setError(ErrNilIO)
		return w.err
	}
	return w.WriteBlock(bigIntBytes(v, w.order), f)
}

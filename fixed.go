package binio

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// sizeCache memoizes binary.Size per concrete type. The reflection walk is
// too expensive to repeat on every element, and a plain map would race.
var sizeCache = xsync.NewMap[reflect.Type, int]()

// FixedSize reports the encoded size of T in bytes, or -1 if T contains
// variable-size fields (slices, maps, strings) that binary.Size cannot
// measure.
func FixedSize[T any]() int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if size, ok := sizeCache.Load(t); ok {
		return size
	}
	var v T
	size := binary.Size(&v)
	sizeCache.Store(t, size)
	return size
}

// ReadFixed decodes a fixed-width value of type T in the reader's byte
// order. T must be composed of fixed-size fields only.
func ReadFixed[T any](r *Reader) (T, error) {
	var zero T
	if r.err != nil {
		return zero, r.err
	}
	size := FixedSize[T]()
	if size < 0 {
		r.setError(fmt.Errorf("binio: %s has no fixed encoded size", reflect.TypeOf((*T)(nil)).Elem()))
		return zero, r.err
	}
	return parseN(r, size, func(p []byte) (T, error) {
		var v T
		if _, err := binary.Decode(p, r.order, &v); err != nil {
			return v, ErrTruncated
		}
		return v, nil
	})
}

// WriteFixed encodes a fixed-width value of type T in the writer's byte
// order.
func WriteFixed[T any](w *Writer, v *T) error {
	if w.err != nil {
		return w.err
	}
	if v == nil {
		w.setError(ErrNilIO)
		return w.err
	}
	size := FixedSize[T]()
	if size < 0 {
		w.setError(fmt.Errorf("binio: %s has no fixed encoded size", reflect.TypeOf((*T)(nil)).Elem()))
		return w.err
	}
	slab, class := rentSlab(size)
	defer returnSlab(slab, class)
	buf := (*slab)[:size]
	if _, err := binary.Encode(buf, w.order, v); err != nil {
		w.setError(ErrBufferTooSmall)
		return w.err
	}
	_, err := w.Write(buf)
	return err
}

// Sizer reports the encoded byte size of a value. It is used to size
// buffers before encoding and to bound reads before decoding.
type Sizer interface {
	Size() int
}

// Marshaler is the writing half of a self-sizing binary value. MarshalTo
// encodes into a caller-provided buffer of at least Size() bytes.
type Marshaler interface {
	Sizer
	MarshalTo(p []byte) (int, error)
}

// Unmarshaler is the reading half of a self-sizing binary value.
type Unmarshaler interface {
	Sizer
	encoding.BinaryUnmarshaler
}

// Codec aggregates both halves. A type implementing Codec is a complete
// self-sizing binary encoder/decoder.
type Codec interface {
	Marshaler
	Unmarshaler
}

// Fixed adapts any fixed-width struct to the Codec contract, eliminating
// boilerplate for simple data structures.
//
// Constraint: T MUST NOT contain variable-size fields like slices, maps,
// or strings, as this will cause binary.Size to fail.
type Fixed[T any] struct {
	Value T
}

var _ Codec = (*Fixed[struct{}])(nil)

// Size returns the fixed size of the struct in bytes. The result is cached
// to avoid reflection overhead on subsequent calls.
func (c *Fixed[T]) Size() int { return FixedSize[T]() }

// MarshalTo encodes the value into p using the package byte order.
func (c *Fixed[T]) MarshalTo(p []byte) (int, error) {
	n, err := binary.Encode(p, Order, &c.Value)
	if err != nil {
		return n, ErrBufferTooSmall
	}
	return n, nil
}

// UnmarshalBinary implements the standard encoding.BinaryUnmarshaler
// interface.
func (c *Fixed[T]) UnmarshalBinary(data []byte) error {
	if _, err := binary.Decode(data, Order, &c.Value); err != nil {
		return ErrTruncated
	}
	return nil
}

// WriteObject writes v's binary form through the writer. The value sizes
// itself; no length prefix is written.
func (w *Writer) WriteObject(v Marshaler) error {
	if w.err != nil {
		return w.err
	}
	if v == nil {
		w.setError(ErrNilIO)
		return w.err
	}
	size := v.Size()
	if size < 0 {
		w.setError(fmt.Errorf("binio: object reports negative size %d", size))
		return w.err
	}
	if size == 0 {
		return nil
	}
	slab, class := rentSlab(size)
	defer returnSlab(slab, class)
	buf := (*slab)[:size]
	n, err := v.MarshalTo(buf)
	if err != nil {
		w.setError(err)
		return w.err
	}
	_, err = w.Write(buf[:n])
	return err
}

// ReadObject decodes the next v.Size() bytes into v. The slice handed to
// UnmarshalBinary may alias internal buffers and is only valid during the
// call.
func (r *Reader) ReadObject(v Unmarshaler) error {
	if r.err != nil {
		return r.err
	}
	if v == nil {
		r.setError(ErrNilIO)
		return r.err
	}
	size := v.Size()
	if size < 0 {
		r.setError(fmt.Errorf("binio: object reports negative size %d", size))
		return r.err
	}
	_, err := parseN(r, size, func(p []byte) (struct{}, error) {
		return struct{}{}, v.UnmarshalBinary(p)
	})
	return err
}

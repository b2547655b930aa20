package binio

import "sync"

// CHUNK_SIZE is the segment size used by stream chunk sources and sequence
// tails. 32KB matches the transfer size used by io.Copy.
const CHUNK_SIZE = 32 * 1024

// Pooled slab classes. A rent of n bytes comes from the smallest class that
// fits; anything above the largest class is allocated directly and never
// pooled.
var slabClasses = [...]int{512, BUFFER_SIZE, CHUNK_SIZE, 256 * 1024}

var slabPools = [len(slabClasses)]sync.Pool{
	{New: func() any { b := make([]byte, slabClasses[0]); return &b }},
	{New: func() any { b := make([]byte, slabClasses[1]); return &b }},
	{New: func() any { b := make([]byte, slabClasses[2]); return &b }},
	{New: func() any { b := make([]byte, slabClasses[3]); return &b }},
}

func slabClass(n int) int {
	for i, size := range slabClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// rentSlab returns a slice with len >= n. class is -1 for unpooled slices.
func rentSlab(n int) (b *[]byte, class int) {
	class = slabClass(n)
	if class < 0 {
		s := make([]byte, n)
		return &s, -1
	}
	return slabPools[class].Get().(*[]byte), class
}

func returnSlab(b *[]byte, class int) {
	if class >= 0 {
		slabPools[class].Put(b)
	}
}

// Buffer is a pooled byte buffer handed out by block reads and transfer
// helpers. Release returns the backing memory to its pool; the slice from
// Bytes must not be used afterwards.
type Buffer struct {
	slab  *[]byte
	class int
	n     int
}

// emptyBuffer backs zero-length results so they never touch a pool.
var emptyBuffer = &Buffer{class: -1}

// rentBuffer returns a Buffer with exactly n readable bytes of capacity.
func rentBuffer(n int) *Buffer {
	if n == 0 {
		return emptyBuffer
	}
	slab, class := rentSlab(n)
	return &Buffer{slab: slab, class: class, n: n}
}

// Bytes returns the buffer contents. The slice is valid until Release.
func (b *Buffer) Bytes() []byte {
	if b.slab == nil {
		return nil
	}
	return (*b.slab)[:b.n]
}

// Len returns the number of readable bytes.
func (b *Buffer) Len() int { return b.n }

// grow extends the buffer to hold at least need bytes, preserving contents.
func (b *Buffer) grow(need int) error {
	if b.slab != nil && need <= len(*b.slab) {
		return nil
	}
	have := 0
	if b.slab != nil {
		have = len(*b.slab)
	}
	c, err := grownCap(have, need)
	if err != nil {
		return err
	}
	slab, class := rentSlab(c)
	if b.slab != nil {
		copy(*slab, (*b.slab)[:b.n])
		returnSlab(b.slab, b.class)
	}
	b.slab, b.class = slab, class
	return nil
}

// append adds p to the buffer, growing as needed.
func (b *Buffer) append(p []byte) error {
	if err := b.grow(b.n + len(p)); err != nil {
		return err
	}
	copy((*b.slab)[b.n:], p)
	b.n += len(p)
	return nil
}

// Release returns the backing memory to its pool. Safe on zero-length
// buffers and after a prior Release.
func (b *Buffer) Release() {
	if b == emptyBuffer || b.slab == nil {
		return
	}
	returnSlab(b.slab, b.class)
	b.slab = nil
	b.n = 0
}

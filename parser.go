package binio

import "io"

// Parser is a resumable decoding state machine. Chunks are offered with
// Append, which reports how many leading bytes it consumed; a parser may
// finish early and leave the rest of the chunk to its caller.
// RemainingBytes is the minimum number of bytes still required, zero once
// the machine can complete. Complete finalizes the element and reports
// malformed input; it must only be called at RemainingBytes zero.
//
// Parsers never block and never touch the input transport, so the same
// machine can be driven by an in-memory walk over sequence segments or by a
// pull loop over a stream or pipe.
type Parser interface {
	Append(chunk []byte) (consumed int)
	RemainingBytes() int
	Complete() error
}

// Feed drives p over src until the machine completes. An input that ends
// before the machine is satisfied fails with ErrTruncated.
func Feed(src Source, p Parser) error {
	for p.RemainingBytes() > 0 {
		chunk, err := src.Chunk()
		if err != nil {
			if err == io.EOF {
				return ErrTruncated
			}
			return err
		}
		src.Advance(p.Append(chunk))
	}
	return p.Complete()
}

// FixedParser fills a destination slice with exactly len(dst) bytes.
type FixedParser struct {
	dst []byte
	n   int
}

func NewFixedParser(dst []byte) *FixedParser {
	return &FixedParser{dst: dst}
}

func (p *FixedParser) Append(chunk []byte) int {
	n := copy(p.dst[p.n:], chunk)
	p.n += n
	return n
}

func (p *FixedParser) RemainingBytes() int { return len(p.dst) - p.n }

func (p *FixedParser) Complete() error {
	if p.n < len(p.dst) {
		return ErrTruncated
	}
	return nil
}

// Reset rearms the parser over a new destination.
func (p *FixedParser) Reset(dst []byte) {
	p.dst = dst
	p.n = 0
}

// VarintParser decodes one Compressed length, one byte at a time.
type VarintParser struct {
	v     uint32
	shift uint
	n     int
	done  bool
	err   error
}

func NewVarintParser() *VarintParser { return new(VarintParser) }

func (p *VarintParser) Append(chunk []byte) int {
	consumed := 0
	for _, b := range chunk {
		if p.done || p.err != nil {
			break
		}
		consumed++
		p.n++
		if p.n == MaxCompressedLen {
			if b > 0x0F {
				p.err = ErrMalformedVarint
				break
			}
			p.v |= uint32(b) << p.shift
			p.done = true
			break
		}
		p.v |= uint32(b&0x7F) << p.shift
		if b&0x80 == 0 {
			p.done = true
			break
		}
		p.shift += 7
	}
	return consumed
}

func (p *VarintParser) RemainingBytes() int {
	if p.done || p.err != nil {
		return 0
	}
	return 1
}

func (p *VarintParser) Complete() error { return p.err }

// Value returns the decoded length. Valid only after a nil Complete.
func (p *VarintParser) Value() uint32 { return p.v }

// Reset rearms the parser for the next value.
func (p *VarintParser) Reset() { *p = VarintParser{} }

// BlockParser accumulates a length-prefixed block into a pooled Buffer.
type BlockParser struct {
	buf  *Buffer
	need int
}

func NewBlockParser(n int) *BlockParser {
	return &BlockParser{buf: rentBuffer(n), need: n}
}

func (p *BlockParser) Append(chunk []byte) int {
	if p.need == 0 {
		return 0
	}
	if len(chunk) > p.need {
		chunk = chunk[:p.need]
	}
	copy((*p.buf.slab)[p.buf.n-p.need:], chunk)
	p.need -= len(chunk)
	return len(chunk)
}

func (p *BlockParser) RemainingBytes() int { return p.need }

func (p *BlockParser) Complete() error {
	if p.need > 0 {
		return ErrTruncated
	}
	return nil
}

// Buffer surrenders the accumulated block. The caller owns the buffer and
// must Release it.
func (p *BlockParser) Buffer() *Buffer {
	b := p.buf
	p.buf = nil
	return b
}

// Abort releases the partially filled buffer after a failed feed.
func (p *BlockParser) Abort() {
	if p.buf != nil {
		p.buf.Release()
		p.buf = nil
	}
}

// SkipParser consumes and discards a known number of bytes.
type SkipParser struct {
	left int
}

func NewSkipParser(n int) *SkipParser { return &SkipParser{left: n} }

func (p *SkipParser) Append(chunk []byte) int {
	n := min(len(chunk), p.left)
	p.left -= n
	return n
}

func (p *SkipParser) RemainingBytes() int { return p.left }

func (p *SkipParser) Complete() error {
	if p.left > 0 {
		return ErrTruncated
	}
	return nil
}

var (
	_ Parser = (*FixedParser)(nil)
	_ Parser = (*VarintParser)(nil)
	_ Parser = (*BlockParser)(nil)
	_ Parser = (*SkipParser)(nil)
)

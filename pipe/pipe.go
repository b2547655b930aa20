// Package pipe is an in-process segmented transport. A writer fills
// fixed-size segments rented from a bounded pool and hands them to the
// reader in order; when the reader lags, segment acquisition blocks, which
// is the pipe's backpressure. Both ends propagate close errors to the
// other side.
//
// The reader satisfies the binio Source contract and the writer satisfies
// its sink contract, so binio.Reader and binio.Writer run over a pipe
// unchanged.
package pipe

import (
	"context"
	"io"
	"sync"

	"github.com/jackc/puddle/v2"
)

// segment is one transfer buffer. Its backing array circulates through the
// pool for the life of the pipe.
type segment struct {
	buf []byte
	n   int // filled bytes
}

// Pipe connects one Writer to one Reader through pooled segments. Create
// it with New; the zero value is not usable.
type Pipe struct {
	pool   *puddle.Pool[*segment]
	filled chan *puddle.Resource[*segment]

	// Reader-side close: cancelling readCtx breaks writers out of both
	// segment acquisition and handoff. rerr is set before the cancel.
	readCtx    context.Context
	readCancel context.CancelFunc
	ronce      sync.Once
	rerr       error

	// Writer-side close: closing filled lets the reader drain what was
	// delivered and then observe werr. werr is set before the close.
	wonce sync.Once
	werr  error

	r Reader
	w Writer
}

// New creates a pipe. Without options it moves data through
// DefaultSegments segments of DefaultSegmentSize bytes each.
func New(opts ...Option) (*Pipe, error) {
	cfg := config{
		segmentSize: DefaultSegmentSize,
		segments:    DefaultSegments,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.segmentSize < 1 || cfg.segments < 1 {
		return nil, ErrBadConfig
	}
	p := &Pipe{
		filled: make(chan *puddle.Resource[*segment], cfg.segments),
	}
	pool, err := puddle.NewPool(&puddle.Config[*segment]{
		Constructor: func(context.Context) (*segment, error) {
			return &segment{buf: make([]byte, cfg.segmentSize)}, nil
		},
		Destructor: func(*segment) {},
		MaxSize:    int32(cfg.segments),
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.readCtx, p.readCancel = context.WithCancel(context.Background())
	p.r = Reader{p: p, ctx: context.Background()}
	p.w = Writer{p: p, ctx: context.Background()}
	return p, nil
}

// Reader returns the consuming end. There is exactly one.
func (p *Pipe) Reader() *Reader { return &p.r }

// Writer returns the producing end. There is exactly one.
func (p *Pipe) Writer() *Writer { return &p.w }

// closeWrite records the writer's close reason once and stops delivery.
// A nil reason reads as io.EOF.
func (p *Pipe) closeWrite(err error) {
	p.wonce.Do(func() {
		if err == nil {
			err = io.EOF
		}
		p.werr = err
		close(p.filled)
	})
}

// closeRead records the reader's close reason once and breaks the writer.
// A nil reason reads as io.ErrClosedPipe.
func (p *Pipe) closeRead(err error) {
	p.ronce.Do(func() {
		if err == nil {
			err = io.ErrClosedPipe
		}
		p.rerr = err
		p.readCancel()
	})
}

// readErr reports why the reading side went away.
func (p *Pipe) readErr() error {
	<-p.readCtx.Done()
	return p.rerr
}

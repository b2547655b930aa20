package binio

import (
	"context"
	"sync/atomic"
)

const (
	completionIdle uint32 = iota
	completionArmed
	completionResolved
)

// Completion is a reusable single-slot handoff for one in-flight I/O
// operation between a submitting goroutine and a worker. It allocates its
// signal channel once and is reused for every operation, so steady-state
// handoffs are allocation free.
//
// The lifecycle is Arm, Complete, Result. Arm returns a token identifying
// the operation; Result validates the token, blocks until Complete, hands
// back the outcome and rearms the slot. Arming a slot that was never
// consumed, or presenting a stale token, is a programming error and panics.
// Cancellation through ctx surfaces as the context's error and leaves the
// outcome collectable by Wait.
type Completion struct {
	state   atomic.Uint32
	version atomic.Uint64
	n       int
	err     error
	signal  chan struct{}
}

// NewCompletion returns a ready slot.
func NewCompletion() *Completion {
	return &Completion{signal: make(chan struct{}, 1)}
}

// Arm readies the slot for one operation and returns its token.
func (c *Completion) Arm() uint64 {
	if !c.state.CompareAndSwap(completionIdle, completionArmed) {
		panic("binio: Completion armed while a result is pending")
	}
	// Clear a signal left over from a result that was completed after its
	// waiter gave up.
	select {
	case <-c.signal:
	default:
	}
	return c.version.Add(1)
}

// Complete publishes the outcome of the armed operation. It is called by
// the worker exactly once per Arm.
func (c *Completion) Complete(n int, err error) {
	c.n, c.err = n, err
	if !c.state.CompareAndSwap(completionArmed, completionResolved) {
		panic("binio: Completion completed while not armed")
	}
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Result blocks until the operation identified by token completes, then
// returns its outcome and rearms the slot. Cancellation returns the context
// error without consuming the outcome.
func (c *Completion) Result(ctx context.Context, token uint64) (int, error) {
	c.check(token)
	for {
		if c.state.Load() == completionResolved {
			return c.collect()
		}
		select {
		case <-c.signal:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Wait is Result without cancellation, used to join an abandoned operation
// before reuse or close.
func (c *Completion) Wait(token uint64) (int, error) {
	c.check(token)
	for c.state.Load() != completionResolved {
		<-c.signal
	}
	return c.collect()
}

// Pending reports whether an operation is armed or resolved but unconsumed.
func (c *Completion) Pending() bool {
	return c.state.Load() != completionIdle
}

func (c *Completion) check(token uint64) {
	if token != c.version.Load() {
		panic("binio: Completion result requested with a stale token")
	}
	if c.state.Load() == completionIdle {
		panic("binio: Completion result requested while idle")
	}
}

func (c *Completion) collect() (int, error) {
	n, err := c.n, c.err
	c.state.Store(completionIdle)
	return n, err
}

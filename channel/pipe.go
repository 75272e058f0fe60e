package channel

import (
	"context"
	"sync"
	"time"

	"github.com/pamgate/pamgate/errors"
)

// Pipe is a bounded, ordered, single-producer/single-consumer pipe. Every
// operation is timeout-guarded; Close is one-way and terminal. Items buffered
// before Close remain receivable until drained, so a terminal message sent
// right before closing is never lost.
type Pipe[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipe creates a pipe with the given buffer capacity. Capacity must be at
// least 1; the protocol is lock-step, a small buffer only absorbs the
// non-prompt messages PAM emits in a batch.
func NewPipe[T any](capacity int) *Pipe[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Pipe[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Send delivers v, blocking until the consumer makes room, the timeout
// expires, or the pipe closes.
func (p *Pipe[T]) Send(v T, timeout time.Duration) error {
	select {
	case <-p.done:
		return errors.Closed(errors.PhaseConverse, "send")
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p.ch <- v:
		return nil
	case <-p.done:
		return errors.Closed(errors.PhaseConverse, "send")
	case <-timer.C:
		return errors.Timeout(errors.PhaseConverse, "send")
	}
}

// SendContext is the cooperative form of Send; it suspends the calling
// goroutine instead of holding a timer.
func (p *Pipe[T]) SendContext(ctx context.Context, v T) error {
	select {
	case <-p.done:
		return errors.Closed(errors.PhaseConverse, "send")
	default:
	}

	select {
	case p.ch <- v:
		return nil
	case <-p.done:
		return errors.Closed(errors.PhaseConverse, "send")
	case <-ctx.Done():
		return errors.New(errors.PhaseConverse, errors.KindTimeout).
			Op("send").Cause(ctx.Err()).Build()
	}
}

// Recv returns the next item, blocking until one arrives, the timeout expires,
// or the pipe closes and its buffer is drained.
func (p *Pipe[T]) Recv(timeout time.Duration) (T, error) {
	var zero T

	// Buffered items win over closure.
	select {
	case v := <-p.ch:
		return v, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-p.ch:
		return v, nil
	case <-p.done:
		// An item may have been enqueued concurrently with Close.
		select {
		case v := <-p.ch:
			return v, nil
		default:
			return zero, errors.Closed(errors.PhaseConverse, "recv")
		}
	case <-timer.C:
		return zero, errors.Timeout(errors.PhaseConverse, "recv")
	}
}

// RecvContext is the cooperative form of Recv.
func (p *Pipe[T]) RecvContext(ctx context.Context) (T, error) {
	var zero T

	select {
	case v := <-p.ch:
		return v, nil
	default:
	}

	select {
	case v := <-p.ch:
		return v, nil
	case <-p.done:
		select {
		case v := <-p.ch:
			return v, nil
		default:
			return zero, errors.Closed(errors.PhaseConverse, "recv")
		}
	case <-ctx.Done():
		return zero, errors.New(errors.PhaseConverse, errors.KindTimeout).
			Op("recv").Cause(ctx.Err()).Build()
	}
}

// Close terminates the pipe. Safe to call from either side and more than once;
// blocked senders and receivers unblock with a Closed error.
func (p *Pipe[T]) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Closed reports whether Close has been called. Buffered items may still be
// receivable.
func (p *Pipe[T]) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

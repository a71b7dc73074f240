package command

import (
	"sync"
	"time"
)

type outcome[T any] struct {
	value T
	err   error
}

// Promise is a one-shot handoff of a value or an error from the console
// goroutine back to the submitting goroutine. Exactly one of Resolve or
// Reject takes effect over the promise's lifetime; later calls are
// dropped. Once the result has been taken it is cached, so repeated
// Wait calls return the same outcome.
type Promise[T any] struct {
	ch   chan outcome[T]
	once sync.Once

	mu      sync.Mutex
	settled bool
	out     outcome[T]
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{ch: make(chan outcome[T], 1)}
}

// Resolve delivers value. A no-op if the promise is already settled.
func (p *Promise[T]) Resolve(value T) {
	p.once.Do(func() { p.ch <- outcome[T]{value: value} })
}

// Reject delivers err. A no-op if the promise is already settled.
func (p *Promise[T]) Reject(err error) {
	p.once.Do(func() { p.ch <- outcome[T]{err: err} })
}

// Wait blocks until the promise settles or the timeout elapses, in
// which case ErrTimeout is returned. The command behind a timed-out
// promise may still run later; its result is then delivered to the
// promise and discarded by nobody waiting, never blocking the console.
func (p *Promise[T]) Wait(timeout time.Duration) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settled {
		return p.out.value, p.out.err
	}

	select {
	case o := <-p.ch:
		p.settled = true
		p.out = o
		return o.value, o.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout
	}
}

// Package command implements the handoff between HTTP handler
// goroutines and the console goroutine. Handlers wrap their work in a
// Command, push it onto a bounded queue and block on a one-shot promise
// with a timeout; the console drains the queue once per tick and
// executes every pending command while holding its state lock, keeping
// the emulator strictly single-writer.
package command

import (
	"errors"
	"time"
)

var (
	// ErrQueueFull is the backpressure signal returned when the queue
	// has reached capacity. Callers should map it to a "server busy"
	// response and retry with backoff.
	ErrQueueFull = errors.New("command queue is full")

	// ErrTimeout is returned when a command produced no result within
	// the caller's deadline. The command itself stays queued and may
	// still execute later; its late result is silently discarded.
	ErrTimeout = errors.New("command execution timeout")

	// ErrCancelled resolves the promises of commands discarded by
	// Queue.Clear during shutdown.
	ErrCancelled = errors.New("command queue cleared - operation cancelled")
)

// Command is a unit of work submitted by a request goroutine and
// executed exclusively by the console goroutine while it holds the
// console state lock.
type Command interface {
	// Name identifies the command in logs.
	Name() string

	// Execute runs the command and settles its own promise.
	Execute()

	// Cancel settles the command's promise with err without running
	// it, so no waiter is ever left hanging.
	Cancel(err error)
}

// Func adapts a plain function into a Command carrying a typed one-shot
// result.
type Func[T any] struct {
	name    string
	fn      func() (T, error)
	promise *Promise[T]
}

func NewFunc[T any](name string, fn func() (T, error)) *Func[T] {
	return &Func[T]{
		name:    name,
		fn:      fn,
		promise: NewPromise[T](),
	}
}

func (c *Func[T]) Name() string { return c.name }

func (c *Func[T]) Execute() {
	v, err := c.fn()
	if err != nil {
		c.promise.Reject(err)
		return
	}
	c.promise.Resolve(v)
}

func (c *Func[T]) Cancel(err error) {
	c.promise.Reject(err)
}

// Wait blocks on the command's result with a timeout.
func (c *Func[T]) Wait(timeout time.Duration) (T, error) {
	return c.promise.Wait(timeout)
}

// Submit pushes a new command onto q and waits for its result. The
// promise is part of the command before the push, so the console can
// never execute a command whose waiter has not been wired up. A full
// queue resolves locally with ErrQueueFull without touching the
// console; a timeout leaves the command queued (see ErrTimeout).
func Submit[T any](q *Queue, name string, timeout time.Duration, fn func() (T, error)) (T, error) {
	c := NewFunc(name, fn)
	if !q.Push(c) {
		var zero T
		return zero, ErrQueueFull
	}
	return c.Wait(timeout)
}

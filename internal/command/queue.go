package command

import (
	"fmt"
	"sync"

	"github.com/jrknox1977/fceux/pkg/log"
)

// DefaultMaxSize is the default capacity of a Queue.
const DefaultMaxSize = 1000

// Queue is a bounded FIFO of pending commands. Its lock is independent
// of the console state lock and is never held across Execute, so a
// handler pushing a command can never contend with a running command.
type Queue struct {
	mu   sync.Mutex
	cmds []Command
	max  int
}

// NewQueue returns a queue holding at most maxSize commands. A
// non-positive maxSize selects DefaultMaxSize.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Queue{max: maxSize}
}

// Push appends cmd to the queue. It returns false for a nil command or
// when the queue is full; a full queue is expected backpressure, not a
// fault. Push never blocks beyond the lock hold time.
func (q *Queue) Push(cmd Command) bool {
	if cmd == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.cmds) >= q.max {
		return false
	}
	q.cmds = append(q.cmds, cmd)
	return true
}

// TryPop removes and returns the oldest command, or false when the
// queue is empty. It never blocks.
func (q *Queue) TryPop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.cmds) == 0 {
		return nil, false
	}
	cmd := q.cmds[0]
	q.cmds = q.cmds[1:]
	return cmd, true
}

// Len reports the number of pending commands. Advisory: the value may
// be stale the instant it is returned.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}

// Empty reports whether the queue has no pending commands. Advisory,
// like Len.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// MaxSize returns the queue capacity.
func (q *Queue) MaxSize() int {
	return q.max
}

// Clear discards every pending command, cancelling each one so that no
// promise is left unresolved. Used at shutdown.
func (q *Queue) Clear() {
	q.mu.Lock()
	cmds := q.cmds
	q.cmds = nil
	q.mu.Unlock()

	for _, cmd := range cmds {
		cmd.Cancel(ErrCancelled)
	}
}

// Drain pops and executes every queued command in submission order.
// Called once per console tick with the console state lock already
// held. The queue is re-checked each iteration rather than snapshotted,
// so a command pushed during the drain, including by a draining
// command, runs in the same call.
func Drain(q *Queue, l log.Logger) {
	for {
		cmd, ok := q.TryPop()
		if !ok {
			return
		}
		run(cmd, l)
	}
}

// run executes a single command, converting a panic into that command's
// error result so one bad command cannot stall the tick loop or its
// siblings.
func run(cmd Command, l log.Logger) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("command %s: %v", cmd.Name(), r)
			if l != nil {
				l.Errorf("%v", err)
			}
			cmd.Cancel(err)
		}
	}()
	cmd.Execute()
}

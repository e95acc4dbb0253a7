// Package dispatch provides the serialized execution context the
// coordinator owns. Every protocol-relevant mutation and every script
// completion callback is posted here, so protocol state never needs a
// lock of its own.
package dispatch

import (
	"errors"
	"sync"
)

// ErrClosed is returned when posting to a closed queue.
var ErrClosed = errors.New("dispatch queue is closed")

// Queue runs posted functions on a single goroutine in FIFO order.
// Post never blocks the caller.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	todo   []func()
	closed bool
	done   chan struct{}
}

// NewQueue creates a queue and starts its worker goroutine.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post enqueues fn for execution. Functions run in the order posted.
// Posting after Close drops fn and returns ErrClosed.
func (q *Queue) Post(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.todo = append(q.todo, fn)
	q.cond.Signal()
	return nil
}

// Flush blocks until everything posted before it has run. Posting from
// the queue's own goroutine and then flushing from it would deadlock;
// Flush is a caller-side barrier.
func (q *Queue) Flush() {
	ran := make(chan struct{})
	if err := q.Post(func() { close(ran) }); err != nil {
		return
	}
	<-ran
}

// Close stops the queue after draining already-posted work and waits
// for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.todo) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.todo) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.todo[0]
		q.todo = q.todo[1:]
		q.mu.Unlock()

		fn()
	}
}

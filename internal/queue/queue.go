// Package queue holds the in-process retry queue for deferred sagas and
// the single worker that drains it. Entries live from enqueue until
// they execute successfully; the queue is per-process and is lost on
// restart.
package queue

import (
	"context"
	"sync"

	"github.com/bookrent/gateway/internal/saga"
)

// Queue is an unbounded FIFO of deferred saga invocations. Enqueue
// never blocks regardless of depth; Dequeue blocks until an entry is
// available or the context is cancelled. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []saga.Task
	signal chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a task at the tail. Always succeeds.
func (q *Queue) Enqueue(task saga.Task) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the head entry, blocking until one is
// available. Returns the context error on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (saga.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Keep the signal pending for other entries so a wakeup is
			// never lost between a concurrent Enqueue and this pop.
			if remaining > 0 {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return saga.Task{}, ctx.Err()
		}
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

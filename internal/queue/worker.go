package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/bookrent/gateway/internal/logger"
	"github.com/bookrent/gateway/internal/saga"
	"go.uber.org/zap"
)

// Executor dispatches a deferred saga by its tag.
type Executor interface {
	ExecuteTask(ctx context.Context, task saga.Task) error
}

// Worker drains the retry queue. Exactly one worker runs per process;
// it re-enqueues entries whose downstream is still unavailable and
// drops everything else.
type Worker struct {
	queue        *Queue
	executor     Executor
	failureDelay time.Duration
	log          *logger.Logger
	done         chan struct{}
}

// NewWorker creates a worker for the given queue.
func NewWorker(q *Queue, executor Executor, failureDelay time.Duration, log *logger.Logger) *Worker {
	if failureDelay <= 0 {
		failureDelay = time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		queue:        q,
		executor:     executor,
		failureDelay: failureDelay,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Run processes entries until the context is cancelled. In-flight
// entries still on the queue at shutdown are lost; that is accepted.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.log.Info("retry queue worker started")

	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Info("retry queue worker stopped")
			return
		}

		w.log.Info("executing deferred saga",
			zap.String("kind", string(task.Kind)),
			zap.String("username", task.Username),
			zap.Int("queue_len", w.queue.Len()))

		err = w.executor.ExecuteTask(ctx, task)
		switch {
		case err == nil:
			// Done, entry is discarded.

		case errors.Is(err, domain.ErrRetryLater), errors.Is(err, domain.ErrUnavailable):
			w.log.Info("deferred saga still unavailable, re-enqueueing",
				zap.String("kind", string(task.Kind)), zap.Error(err))
			w.queue.Enqueue(task)
			w.sleep(ctx)

		case errors.Is(err, context.Canceled):
			// Shutdown raced the execution; keep the entry semantics
			// simple and let it drop with the queue.
			return

		default:
			w.log.Error("deferred saga failed, dropping entry",
				zap.String("kind", string(task.Kind)), zap.Error(err))
		}
	}
}

// Wait blocks until the worker loop has exited.
func (w *Worker) Wait() {
	<-w.done
}

// sleep backs off after a failed retry so the worker does not spin
// against a dead backend.
func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.failureDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

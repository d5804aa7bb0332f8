// Package memqueue provides an in-memory implementation of workqueue.Queue.
package memqueue

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/workqueue"
)

type queueState struct {
	handlers []workqueue.Handler
	counter  atomic.Uint64
}

// Option configures the queue.
type Option func(*Queue)

// WithWorkerPool sets the number of worker goroutines for processing tasks.
// Default is 20 workers. Set to 0 to use unbounded goroutines.
func WithWorkerPool(size int) Option {
	return func(q *Queue) {
		q.workers = size
	}
}

// WithMaxAttempts sets how many times a task is attempted before being
// dropped. Default is 3. Set to 1 to disable retries.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		q.maxAttempts = n
	}
}

// New returns a new in-memory Queue.
func New(ctx context.Context, opts ...Option) *Queue {
	ctx = logging.EnsureLogger(ctx)
	q := &Queue{
		subscriberCtx: logging.With(ctx, logging.FromContext(ctx).Named("workqueue")),
		workers:       20,
		maxAttempts:   3,
		jobs:          make(chan job, 500),
		quit:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

type job struct {
	ctx     context.Context
	handler workqueue.Handler
	task    *workqueue.Task
}

// Queue is an in-memory implementation of workqueue.Queue.
type Queue struct {
	subscribers   map[string]*queueState
	subscriberCtx context.Context

	mu sync.Mutex
	wg sync.WaitGroup

	jobs        chan job
	quit        chan struct{}
	workers     int
	maxAttempts int
	started     bool
	closed      bool
}

// Subscribe registers a handler for queue tasks.
func (q *Queue) Subscribe(queue string, handler workqueue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.subscribers == nil {
		q.subscribers = make(map[string]*queueState)
	}
	if q.subscribers[queue] == nil {
		q.subscribers[queue] = &queueState{}
	}
	q.subscribers[queue].handlers = append(q.subscribers[queue].handlers, handler)
}

// Enqueue sends a task to one queue subscriber. Tasks enqueued on a queue
// with no subscribers are dropped.
func (q *Queue) Enqueue(ctx context.Context, queue string, data map[string]any) error {
	task := &workqueue.Task{
		ID:      uuid.NewString(),
		Queue:   queue,
		Data:    data,
		Attempt: 1,
	}
	return q.dispatch(task)
}

func (q *Queue) dispatch(task *workqueue.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("memqueue: queue is closed")
	}
	if !q.started {
		q.startWorkers()
		q.started = true
	}

	qs, ok := q.subscribers[task.Queue]
	if !ok || len(qs.handlers) == 0 {
		q.mu.Unlock()
		return nil
	}

	idx := qs.counter.Add(1) - 1
	handler := qs.handlers[idx%uint64(len(qs.handlers))]
	q.wg.Add(1)
	q.mu.Unlock()

	ctx := logging.With(q.subscriberCtx, logging.FromContext(q.subscriberCtx).Named(task.Queue))
	if q.workers == 0 {
		go q.execute(ctx, handler, task)
		return nil
	}

	// The send happens outside the mutex so a full channel blocks only this
	// caller, never other dispatchers.
	select {
	case q.jobs <- job{ctx: ctx, handler: handler, task: task}:
		return nil
	case <-q.quit:
		q.wg.Done()
		return errors.New("memqueue: queue is closed")
	}
}

func (q *Queue) startWorkers() {
	if q.workers == 0 {
		return
	}
	for range q.workers {
		go q.worker()
	}
}

func (q *Queue) worker() {
	for {
		select {
		case j := <-q.jobs:
			q.execute(j.ctx, j.handler, j.task)
		case <-q.quit:
			// Drain what is already buffered, then exit.
			for {
				select {
				case j := <-q.jobs:
					q.execute(j.ctx, j.handler, j.task)
				default:
					return
				}
			}
		}
	}
}

// Close stops the workers after they drain the buffered tasks. The jobs
// channel itself is never closed; dispatchers blocked on a send are released
// through the quit channel instead.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.quit)
	return nil
}

// Wait blocks until all pending tasks are processed.
func (q *Queue) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		q.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.New("memqueue: timeout waiting for handlers to finish")
	}
}

func (q *Queue) execute(ctx context.Context, handler workqueue.Handler, task *workqueue.Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw(ctx, "memqueue: recovered from panic",
				"error", r, "task_id", task.ID, "stack", string(debug.Stack()))
		}
		q.wg.Done()
	}()
	if err := handler(ctx, task); err != nil {
		logging.Errorw(ctx, "memqueue: handler error",
			"error", err, "task_id", task.ID, "attempt", task.Attempt)
		if task.Attempt < q.maxAttempts {
			retry := *task
			retry.Attempt++
			// Re-dispatch from a fresh goroutine. A worker blocking on a
			// full jobs channel would starve the pool of receivers.
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				if derr := q.dispatch(&retry); derr != nil {
					logging.Warnw(ctx, "memqueue: dropping task, retry failed",
						"error", derr, "task_id", task.ID)
				}
			}()
		}
	}
}

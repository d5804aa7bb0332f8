// Package redisqueue provides a Redis-backed implementation of
// workqueue.Queue. Tasks survive process restarts and can be consumed by
// multiple instances, with each task delivered to a single consumer.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/workqueue"
)

// Config describes the Redis connection.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string        // Prefix for list keys, default "docbridge:queue:"
	BlockWait time.Duration // BRPOP timeout, default 5s
}

type envelope struct {
	ID      string         `json:"id"`
	Queue   string         `json:"queue"`
	Data    map[string]any `json:"data"`
	Attempt int            `json:"attempt"`
}

// Queue is a Redis-backed implementation of workqueue.Queue built on lists.
// Enqueue is LPUSH, consumers BRPOP, so each task is delivered once.
type Queue struct {
	client      *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
	keyPrefix   string
	wait        time.Duration
	maxAttempts int

	mu       sync.Mutex
	wg       sync.WaitGroup
	inflight sync.WaitGroup
	handlers map[string][]workqueue.Handler
	consumed map[string]bool
	closed   bool
}

// Option configures the queue.
type Option func(*Queue)

// WithMaxAttempts sets how many times a task is attempted before being
// dropped. Default is 3.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		q.maxAttempts = n
	}
}

// New connects to Redis and returns a Queue.
func New(ctx context.Context, cfg Config, opts ...Option) (*Queue, error) {
	if cfg.Address == "" {
		return nil, errors.New("redisqueue: address is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "docbridge:queue:"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisqueue: connect: %w", err)
	}

	qctx, cancel := context.WithCancel(
		logging.With(ctx, logging.FromContext(ctx).Named("redisqueue")))
	q := &Queue{
		client:      client,
		ctx:         qctx,
		cancel:      cancel,
		keyPrefix:   prefix,
		wait:        wait,
		maxAttempts: 3,
		handlers:    make(map[string][]workqueue.Handler),
		consumed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Subscribe registers a handler and starts a consumer loop for the queue if
// one is not already running.
func (q *Queue) Subscribe(queue string, handler workqueue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[queue] = append(q.handlers[queue], handler)
	if !q.consumed[queue] && !q.closed {
		q.consumed[queue] = true
		q.wg.Add(1)
		go q.consume(queue)
	}
}

// Enqueue pushes a task onto the queue's Redis list.
func (q *Queue) Enqueue(ctx context.Context, queue string, data map[string]any) error {
	env := envelope{
		ID:      uuid.NewString(),
		Queue:   queue,
		Data:    data,
		Attempt: 1,
	}
	return q.push(ctx, env)
}

func (q *Queue) push(ctx context.Context, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.keyPrefix+env.Queue, payload).Err(); err != nil {
		return fmt.Errorf("redisqueue: enqueue: %w", err)
	}
	return nil
}

func (q *Queue) consume(queue string) {
	defer q.wg.Done()
	key := q.keyPrefix + queue
	counter := 0

	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		values, err := q.client.BRPop(q.ctx, q.wait, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			logging.Errorw(q.ctx, "redisqueue: pop failed", "error", err, "queue", queue)
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(values) != 2 {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(values[1]), &env); err != nil {
			logging.Errorw(q.ctx, "redisqueue: dropping malformed task", "error", err, "queue", queue)
			continue
		}

		q.mu.Lock()
		handlers := q.handlers[queue]
		q.mu.Unlock()
		if len(handlers) == 0 {
			continue
		}
		handler := handlers[counter%len(handlers)]
		counter++

		q.inflight.Add(1)
		q.handle(queue, handler, env)
	}
}

func (q *Queue) handle(queue string, handler workqueue.Handler, env envelope) {
	defer q.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw(q.ctx, "redisqueue: recovered from panic",
				"error", r, "task_id", env.ID, "queue", queue)
		}
	}()

	task := &workqueue.Task{
		ID:      env.ID,
		Queue:   env.Queue,
		Data:    env.Data,
		Attempt: env.Attempt,
	}
	if err := handler(q.ctx, task); err != nil {
		logging.Errorw(q.ctx, "redisqueue: handler error",
			"error", err, "task_id", env.ID, "attempt", env.Attempt)
		if env.Attempt < q.maxAttempts {
			retry := env
			retry.Attempt++
			if perr := q.push(q.ctx, retry); perr != nil {
				logging.Warnw(q.ctx, "redisqueue: dropping task, requeue failed",
					"error", perr, "task_id", env.ID)
			}
		}
	}
}

// Wait blocks until in-flight handlers complete or the context is cancelled.
// Tasks still queued in Redis are left for the next run.
func (q *Queue) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		q.inflight.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.New("redisqueue: timeout waiting for handlers to finish")
	}
}

// Close stops all consumer loops and closes the Redis connection.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return q.client.Close()
}

package memqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/workqueue"
)

func TestQueue_Basic(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	var mu sync.Mutex
	var received *workqueue.Task
	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		mu.Lock()
		received = task
		mu.Unlock()
		return nil
	})

	require.NoError(t, queue.Enqueue(t.Context(), "documents", map[string]any{"docId": "42"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, time.Millisecond*100, time.Millisecond, "subscriber should have received task")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]any{"docId": "42"}, received.Data)
	assert.Equal(t, "documents", received.Queue)
	assert.Equal(t, 1, received.Attempt)
	assert.NotEmpty(t, received.ID)
}

func TestQueue_SingleConsumer(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	var callCount int
	var mu sync.Mutex

	for range 3 {
		queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
			mu.Lock()
			callCount++
			mu.Unlock()
			return nil
		})
	}

	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*100)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	assert.Equal(t, 1, callCount, "only one subscriber should receive task")
}

func TestQueue_RoundRobin(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	callCounts := make([]int, 3)
	var mu sync.Mutex

	for i := range 3 {
		queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
			mu.Lock()
			callCounts[i]++
			mu.Unlock()
			return nil
		})
	}

	for range 6 {
		require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))
	}

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*100)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	for i, count := range callCounts {
		assert.Equal(t, 2, count, "subscriber %d should receive 2 tasks", i)
	}
}

func TestQueue_NoSubscribers(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*10)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))
}

func TestQueue_RetriesFailedTasks(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()), WithMaxAttempts(3))

	var mu sync.Mutex
	var attempts []int
	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		mu.Lock()
		attempts = append(attempts, task.Attempt)
		mu.Unlock()
		if task.Attempt < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) == 3
	}, time.Second, time.Millisecond*5)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestQueue_StopsAfterMaxAttempts(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()), WithMaxAttempts(2))

	var mu sync.Mutex
	var calls int
	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("permanent failure")
	})

	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, time.Second, time.Millisecond*5)

	time.Sleep(time.Millisecond * 20)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls, "task should not be retried past max attempts")
}

func TestQueue_PanicIsRecovered(t *testing.T) {
	ctx := logging.With(t.Context(), logging.NewDevLogger())
	queue := New(ctx, WithMaxAttempts(1))

	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		panic("handler panic")
	})

	require.NoError(t, queue.Enqueue(ctx, "documents", nil))
	assert.NoError(t, queue.Wait(ctx))
}

func TestQueue_MultipleQueues(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	var mu sync.Mutex
	var gotProcess, gotSync bool

	queue.Subscribe("process", func(ctx context.Context, task *workqueue.Task) error {
		mu.Lock()
		gotProcess = true
		mu.Unlock()
		return nil
	})
	queue.Subscribe("sync", func(ctx context.Context, task *workqueue.Task) error {
		mu.Lock()
		gotSync = true
		mu.Unlock()
		return nil
	})

	require.NoError(t, queue.Enqueue(t.Context(), "process", nil))
	require.NoError(t, queue.Enqueue(t.Context(), "sync", nil))

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*100)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	assert.True(t, gotProcess)
	assert.True(t, gotSync)
}

func TestQueue_WaitTimeout(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		time.Sleep(time.Millisecond * 50)
		return nil
	})

	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()
	require.Error(t, queue.Wait(ctx))
}

func TestQueue_RetryWithSaturatedBuffer(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()), WithWorkerPool(1), WithMaxAttempts(2))

	release := make(chan struct{})
	var mu sync.Mutex
	flakyAttempts := 0
	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		if task.Data != nil && task.Data["kind"] == "flaky" {
			mu.Lock()
			flakyAttempts++
			mu.Unlock()
			return errors.New("transient failure")
		}
		<-release
		return nil
	})

	// A failing task followed by more tasks than the buffer holds. The
	// retry must not wedge the worker against the blocked enqueuers.
	require.NoError(t, queue.Enqueue(t.Context(), "documents", map[string]any{"kind": "flaky"}))
	enqueued := make(chan struct{})
	go func() {
		defer close(enqueued)
		for range 550 {
			if err := queue.Enqueue(t.Context(), "documents", nil); err != nil {
				return
			}
		}
	}()

	time.Sleep(time.Millisecond * 20)
	close(release)

	select {
	case <-enqueued:
	case <-time.After(5 * time.Second):
		t.Fatal("enqueuers deadlocked against the retrying worker")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, flakyAttempts)
}

func TestQueue_CloseReleasesBlockedEnqueue(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()), WithWorkerPool(1))

	release := make(chan struct{})
	defer close(release)
	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		<-release
		return nil
	})

	errs := make(chan error, 1)
	go func() {
		for {
			if err := queue.Enqueue(t.Context(), "documents", nil); err != nil {
				errs <- err
				return
			}
		}
	}()

	time.Sleep(time.Millisecond * 20)
	require.NoError(t, queue.Close())

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "closed")
	case <-time.After(5 * time.Second):
		t.Fatal("enqueuer still blocked after close")
	}
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	queue := New(logging.EnsureLogger(t.Context()))

	queue.Subscribe("documents", func(ctx context.Context, task *workqueue.Task) error {
		return nil
	})
	require.NoError(t, queue.Enqueue(t.Context(), "documents", nil))
	require.NoError(t, queue.Wait(t.Context()))
	require.NoError(t, queue.Close())

	assert.Error(t, queue.Enqueue(t.Context(), "documents", nil))
}

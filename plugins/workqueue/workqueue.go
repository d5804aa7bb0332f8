// Package workqueue provides a task queue with single-consumer semantics,
// used to hand documents from the source plugins to the processing plugins.
// Each task is processed by exactly one worker.
package workqueue

import (
	"context"

	"github.com/docbridge/docbridge"
)

// PluginName identifies this plugin.
const PluginName = "workqueue"

// Handler processes tasks from the work queue.
type Handler func(context.Context, *Task) error

// Task wraps task data with metadata. Data is limited to JSON-compatible
// values so distributed queue implementations can serialize it.
type Task struct {
	ID      string         // Unique identifier
	Queue   string         // Queue name
	Data    map[string]any // Payload
	Attempt int            // Processing attempt (1-based)
}

// Queue provides a task queue with single-consumer semantics.
type Queue interface {
	// Subscribe registers a handler that competes with other handlers.
	// Only one handler will process each task.
	Subscribe(queue string, handler Handler)

	// Enqueue adds a task to the queue for single-consumer processing.
	Enqueue(ctx context.Context, queue string, data map[string]any) error

	// Wait blocks until locally-initiated operations complete or the context
	// is cancelled.
	Wait(ctx context.Context) error

	// Close stops delivery and releases resources.
	Close() error
}

// Plugin wraps a queue implementation for registration.
func Plugin(q Queue) *WorkQueuePlugin {
	return &WorkQueuePlugin{Queue: q}
}

// PluginFunc defers queue construction to Init. A construction error, such as
// an unreachable broker, is reported through the plugin lifecycle as a Failed
// status instead of aborting discovery, and can be retried.
func PluginFunc(build func(ctx context.Context, app *docbridge.AppContext) (Queue, error)) *WorkQueuePlugin {
	return &WorkQueuePlugin{build: build}
}

// WorkQueuePlugin provides access to a work queue for other plugins.
type WorkQueuePlugin struct {
	Queue
	build func(ctx context.Context, app *docbridge.AppContext) (Queue, error)
}

// From docbridge.Plugin.
func (p *WorkQueuePlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *WorkQueuePlugin) Version() string { return "1.0.0" }

// From docbridge.Plugin.
func (p *WorkQueuePlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	if p.Queue == nil && p.build != nil {
		q, err := p.build(ctx, app)
		if err != nil {
			return err
		}
		p.Queue = q
	}
	return nil
}

// From docbridge.Plugin.
func (p *WorkQueuePlugin) Cleanup(ctx context.Context) error {
	if p.Queue == nil {
		return nil
	}
	if err := p.Wait(ctx); err != nil {
		return err
	}
	return p.Close()
}

// FromRegistry returns the queue registered under PluginName, or nil if the
// workqueue plugin is not initialized.
func FromRegistry(r *docbridge.Registry) Queue {
	if r == nil {
		return nil
	}
	if p, ok := r.Get(PluginName).(*WorkQueuePlugin); ok {
		return p.Queue
	}
	return nil
}

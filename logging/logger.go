// Package logging provides a thin structured logging abstraction around
// uber-go/zap's sugared logger, with context attachment so plugins and
// request handlers can pick up a scoped logger without plumbing it through
// every signature.
package logging

import (
	"context"
	"sync"
)

type ctxkey struct {
	logger Logger
}

// With attaches a logger to the context.
//
// This can be used to create logging scopes like so:
//
//	ctx := logging.With(ctx, logger.Named("plugin.ocr"))
//	p.Init(ctx, app)
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{logger: logger})
}

// FromContext returns the scoped logger, or nil if none is attached.
func FromContext(ctx context.Context) Logger {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		return c.logger
	}
	return nil
}

// EnsureLogger returns a context that is guaranteed to carry a logger,
// attaching a default one if needed.
func EnsureLogger(ctx context.Context) context.Context {
	if FromContext(ctx) != nil {
		return ctx
	}
	return With(ctx, NewDevLogger())
}

// Logger is the abstract logging interface used throughout docbridge.
// Designed around zap's sugared logger; the w-suffixed forms take alternating
// key/value pairs.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(msg string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Infof(msg string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Warnf(msg string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Errorf(msg string, args ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger with structured context attached.
	With(field string, value interface{}) Logger
}

// Package level helpers that log via the context's scoped logger. A context
// without one falls back to a shared default logger instead of dropping the
// message or panicking.

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

func scoped(ctx context.Context) Logger {
	if l := FromContext(ctx); l != nil {
		return l
	}
	defaultOnce.Do(func() { defaultLogger = NewDevLogger() })
	return defaultLogger
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	scoped(ctx).Debugw(msg, fields...)
}

func Debugf(ctx context.Context, msg string, args ...interface{}) {
	scoped(ctx).Debugf(msg, args...)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	scoped(ctx).Infow(msg, fields...)
}

func Infof(ctx context.Context, msg string, args ...interface{}) {
	scoped(ctx).Infof(msg, args...)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	scoped(ctx).Warnw(msg, fields...)
}

func Warnf(ctx context.Context, msg string, args ...interface{}) {
	scoped(ctx).Warnf(msg, args...)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	scoped(ctx).Errorw(msg, fields...)
}

func Errorf(ctx context.Context, msg string, args ...interface{}) {
	scoped(ctx).Errorf(msg, args...)
}

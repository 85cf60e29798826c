package saga

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Activity identifies one behavior dispatch. Start and stop events are keyed
// by Operation and CorrelationID.
type Activity struct {
	Operation     Behavior
	CorrelationID uuid.UUID
	MessageID     uuid.UUID
	SagaType      reflect.Type
	MessageType   reflect.Type
}

// OnStartFunc is called when a behavior filter starts a dispatch, before the
// handler executes. The context carries the dispatch span.
type OnStartFunc func(ctx context.Context, a Activity)

// OnStopFunc is called exactly once for every started dispatch, on every
// exit path. err is nil on success.
type OnStopFunc func(ctx context.Context, a Activity, err error, duration time.Duration)

// OnCancelFunc is called when a dispatch ends because its context was
// canceled. It runs before the OnStop hooks.
type OnCancelFunc func(ctx context.Context, a Activity, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onStart  []OnStartFunc
	onStop   []OnStopFunc
	onCancel []OnCancelFunc
}

// WithOnStart adds a hook called when a dispatch starts.
// Multiple hooks are called in order.
//
// Example:
//
//	saga.WithOnStart(func(ctx context.Context, a saga.Activity) {
//	    logger.DebugContext(ctx, "saga dispatch", "op", a.Operation, "correlation_id", a.CorrelationID)
//	})
func WithOnStart(fn OnStartFunc) Option {
	return func(c *config) {
		c.hooks.onStart = append(c.hooks.onStart, fn)
	}
}

// WithOnStop adds a hook called when a dispatch stops.
// Multiple hooks are called in order.
//
// Example:
//
//	saga.WithOnStop(func(ctx context.Context, a saga.Activity, err error, d time.Duration) {
//	    metrics.Timing("saga."+a.Operation.String(), d)
//	})
func WithOnStop(fn OnStopFunc) Option {
	return func(c *config) {
		c.hooks.onStop = append(c.hooks.onStop, fn)
	}
}

// WithOnCancel adds a hook called when a dispatch observes cancellation.
// Multiple hooks are called in order.
func WithOnCancel(fn OnCancelFunc) Option {
	return func(c *config) {
		c.hooks.onCancel = append(c.hooks.onCancel, fn)
	}
}

func (h *hooks) start(ctx context.Context, a Activity) {
	for _, fn := range h.onStart {
		fn(ctx, a)
	}
}

func (h *hooks) stop(ctx context.Context, a Activity, err error, d time.Duration) {
	if IsCanceled(err) {
		for _, fn := range h.onCancel {
			fn(ctx, a, err)
		}
	}
	for _, fn := range h.onStop {
		fn(ctx, a, err, d)
	}
}

package saga

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for saga metrics.
const meterName = "github.com/bjaus/saga"

// Logging returns a filter that logs the start and outcome of the rest of
// the pipe.
func Logging[S Saga, M any](logger *slog.Logger) Filter[S, M] {
	return &loggingFilter[S, M]{logger: logger}
}

type loggingFilter[S Saga, M any] struct {
	logger *slog.Logger
}

func (f *loggingFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	attrs := []any{
		slog.String("correlation_id", c.CorrelationID().String()),
		slog.String("message_id", c.MessageID().String()),
		slog.String("message_type", typeName(c.MessageType())),
	}

	f.logger.InfoContext(ctx, "saga dispatch started", attrs...)

	start := time.Now()
	err := next.Send(ctx, c)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		f.logger.InfoContext(ctx, "saga dispatch completed", append(attrs, slog.Duration("elapsed", elapsed))...)
	case IsCanceled(err):
		f.logger.WarnContext(ctx, "saga dispatch canceled", append(attrs, slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))...)
	default:
		f.logger.ErrorContext(ctx, "saga dispatch failed", append(attrs, slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))...)
	}

	return err
}

func (f *loggingFilter[S, M]) Probe(s *ProbeScope) {
	s.CreateFilterScope("logging")
}

// Recover returns a filter that converts a panic in the rest of the pipe
// into a *PanicError and logs it with its stack trace.
func Recover[S Saga, M any](logger *slog.Logger) Filter[S, M] {
	return &recoverFilter[S, M]{logger: logger}
}

type recoverFilter[S Saga, M any] struct {
	logger *slog.Logger
}

func (f *recoverFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			f.logger.ErrorContext(ctx, "saga dispatch panicked",
				slog.String("correlation_id", c.CorrelationID().String()),
				slog.String("message_type", typeName(c.MessageType())),
				slog.Any("panic", r),
				slog.String("stack", string(stack)),
			)
			retErr = &PanicError{Value: r, Stack: stack}
		}
	}()
	return next.Send(ctx, c)
}

func (f *recoverFilter[S, M]) Probe(s *ProbeScope) {
	s.CreateFilterScope("recover")
}

// Metrics returns a filter that records dispatch metrics using the global
// OTel MeterProvider. Without a configured provider the instruments are noops.
//
// Instruments:
//   - saga.dispatch.duration (Float64Histogram): time spent in the rest of the
//     pipe in seconds
//   - saga.dispatch.count (Int64Counter): number of dispatches
//
// Both carry saga.type, saga.message_type and status ("ok", "error" or "canceled").
func Metrics[S Saga, M any]() Filter[S, M] {
	return MetricsWithMeter[S, M](otel.Meter(meterName))
}

// MetricsWithMeter returns a metrics filter using the provided meter.
func MetricsWithMeter[S Saga, M any](meter metric.Meter) Filter[S, M] {
	// The OTel API returns noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"saga.dispatch.duration",
		metric.WithDescription("Duration of saga message dispatch in seconds"),
		metric.WithUnit("s"),
	)
	count, _ := meter.Int64Counter(
		"saga.dispatch.count",
		metric.WithDescription("Total number of saga message dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	return &metricsFilter[S, M]{duration: duration, count: count}
}

type metricsFilter[S Saga, M any] struct {
	duration metric.Float64Histogram
	count    metric.Int64Counter
}

func (f *metricsFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	start := time.Now()
	err := next.Send(ctx, c)
	elapsed := time.Since(start).Seconds()

	status := "ok"
	switch {
	case IsCanceled(err):
		status = "canceled"
	case err != nil:
		status = "error"
	}

	attrs := metric.WithAttributes(
		AttrSagaType.String(typeName(c.SagaType())),
		AttrMessageType.String(typeName(c.MessageType())),
		attribute.String("status", status),
	)

	// Record on a context that outlives cancellation of the dispatch.
	mctx := context.WithoutCancel(ctx)
	f.duration.Record(mctx, elapsed, attrs)
	f.count.Add(mctx, 1, attrs)

	return err
}

func (f *metricsFilter[S, M]) Probe(s *ProbeScope) {
	s.CreateFilterScope("metrics")
}

// Timeout returns a filter that bounds the rest of the pipe with a deadline.
// Only filters after it see the deadline, so place it ahead of the behavior
// filter with NewPipe to bound the handler. When it expires the behavior
// filter stops before forwarding and the pipe returns
// context.DeadlineExceeded.
func Timeout[S Saga, M any](d time.Duration) Filter[S, M] {
	return &timeoutFilter[S, M]{timeout: d}
}

type timeoutFilter[S Saga, M any] struct {
	timeout time.Duration
}

func (f *timeoutFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return next.Send(ctx, c)
}

func (f *timeoutFilter[S, M]) Probe(s *ProbeScope) {
	s.CreateFilterScope("timeout").Add("timeout", f.timeout.String())
}

package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for saga tracing.
const tracerName = "github.com/bjaus/saga"

// Span attribute keys.
const (
	AttrOperation     = attribute.Key("saga.operation")
	AttrCorrelationID = attribute.Key("saga.correlation_id")
	AttrSagaType      = attribute.Key("saga.type")
	AttrMessageType   = attribute.Key("saga.message_type")
	AttrMessageID     = attribute.Key("saga.message_id")
	AttrCanceled      = attribute.Key("saga.canceled")
)

// activity is the span and hook scope of one behavior dispatch. It must be
// stopped exactly once.
type activity struct {
	ctx   context.Context
	span  trace.Span
	info  Activity
	hooks *hooks
	start time.Time
}

func startActivity[S Saga, M any](ctx context.Context, cfg *config, op Behavior, c *ConsumeContext[S, M]) (context.Context, *activity) {
	info := Activity{
		Operation:     op,
		CorrelationID: c.CorrelationID(),
		MessageID:     c.MessageID(),
		SagaType:      c.SagaType(),
		MessageType:   c.MessageType(),
	}

	ctx = ContextWithCorrelationID(ctx, info.CorrelationID)
	ctx, span := cfg.tracer.Start(ctx, op.spanName(),
		trace.WithAttributes(
			AttrOperation.String(op.String()),
			AttrCorrelationID.String(info.CorrelationID.String()),
			AttrSagaType.String(typeName(info.SagaType)),
			AttrMessageType.String(typeName(info.MessageType)),
			AttrMessageID.String(info.MessageID.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, &activity{
		ctx:   ctx,
		span:  span,
		info:  info,
		hooks: &cfg.hooks,
		start: time.Now(),
	}
}

// begin runs the start hooks. Callers defer stop before calling it so a
// panicking hook still ends the span.
func (a *activity) begin() {
	a.hooks.start(a.ctx, a.info)
}

func (a *activity) stop(err error) {
	switch {
	case err == nil:
		a.span.SetStatus(codes.Ok, "")
	case IsCanceled(err):
		a.span.SetAttributes(AttrCanceled.Bool(true))
	default:
		a.span.RecordError(err)
		a.span.SetStatus(codes.Error, err.Error())
	}
	a.span.End()

	a.hooks.stop(a.ctx, a.info, err, time.Since(a.start))
}

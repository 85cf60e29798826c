package saga

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLogHandler(t *testing.T) {
	t.Run("adds span and correlation ids", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()))
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		id := uuid.New()
		ctx = ContextWithCorrelationID(ctx, id)

		logger.InfoContext(ctx, "hello")

		line := gjson.Parse(buf.String())
		assert.Equal(t, span.SpanContext().TraceID().String(), line.Get("trace_id").String())
		assert.Equal(t, span.SpanContext().SpanID().String(), line.Get("span_id").String())
		assert.Equal(t, id.String(), line.Get("saga\\.correlation_id").String())
	})

	t.Run("plain context adds nothing", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

		logger.InfoContext(context.Background(), "hello")

		line := gjson.Parse(buf.String())
		assert.False(t, line.Get("trace_id").Exists())
		assert.False(t, line.Get("span_id").Exists())
		assert.False(t, line.Get("saga\\.correlation_id").Exists())
	})

	t.Run("derived handlers keep decoration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil))).With("component", "orders")

		id := uuid.New()
		logger.InfoContext(ContextWithCorrelationID(context.Background(), id), "hello")

		line := gjson.Parse(buf.String())
		assert.Equal(t, "orders", line.Get("component").String())
		assert.Equal(t, id.String(), line.Get("saga\\.correlation_id").String())
	})

	t.Run("records inside a dispatch carry its span", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))
		spans := tracetest.NewSpanRecorder()
		r := NewRegistry(WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))))
		Initiate(r, func(s *OrderSaga, ctx context.Context, c *ConsumeContext[*OrderSaga, OrderSubmitted]) error {
			logger.InfoContext(ctx, "submitting")
			return nil
		})
		pipe, err := Build[*OrderSaga, OrderSubmitted](r)
		require.NoError(t, err)

		c := newSubmitContext(t)
		require.NoError(t, pipe.Send(context.Background(), c))

		ended := spans.Ended()
		require.Len(t, ended, 1)
		line := gjson.Parse(buf.String())
		assert.Equal(t, ended[0].SpanContext().SpanID().String(), line.Get("span_id").String())
		assert.Equal(t, c.CorrelationID().String(), line.Get("saga\\.correlation_id").String())
	})
}

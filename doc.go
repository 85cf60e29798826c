// Package saga dispatches correlated messages to the handlers of long-lived
// saga (process manager) instances through a composable filter pipeline.
//
// The package sits between a resolver, which finds or allocates the saga
// instance a message targets, and the saga's business logic. It does not
// load, store or serialize sagas, and it does not talk to a broker.
//
// # Quick Start
//
// Define a saga and its handler methods:
//
//	type OrderSaga struct {
//	    ID     uuid.UUID
//	    Status string
//	}
//
//	func (s *OrderSaga) CorrelationID() uuid.UUID { return s.ID }
//
//	func (s *OrderSaga) Submit(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error {
//	    s.Status = "submitted"
//	    return nil
//	}
//
//	func (s *OrderSaga) Paid(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, PaymentReceived]) error {
//	    s.Status = "paid"
//	    return nil
//	}
//
// Bind messages, build pipes, and send:
//
//	r := saga.NewRegistry()
//
//	saga.Initiate(r, (*OrderSaga).Submit)
//	saga.Observe(r, (*OrderSaga).Paid)
//
//	submit, err := saga.Build[*OrderSaga, OrderSubmitted](r)
//	if err != nil {
//	    return err // binding violation, nothing was dispatched
//	}
//
//	c, _ := saga.NewConsumeContext(instance, msg, saga.AsNew())
//	err = submit.Send(ctx, c)
//
// # Behaviors
//
// Every (saga, message) pair has exactly one binding:
//
//   - Initiate: the message establishes the saga's initial state. The message
//     type must be Correlated.
//   - Observe: the message is handled by an already-active instance.
//
// Binding both kinds, or the same kind twice, for one pair is a
// configuration error. The Registry records it and Build refuses to produce
// any pipe until it is fixed, so conflicts never surface at dispatch time.
//
// A behavior filter calls its handler once and then the continuation once.
// A handler error is returned unchanged and the continuation is skipped.
//
// The resolver declares a freshly allocated instance with AsNew. Observe
// filters reject such contexts with a *PreconditionError wrapping
// ErrSagaNotActive instead of guessing whether the instance exists.
//
// # Pipes and Filters
//
// A Filter receives the context and the next Pipe. It may inspect the
// context, wrap the call, forward at most once, or return without forwarding
// to end the pipe.
//
// Build places the behavior filter first, so filters passed to it run after
// the handler. To wrap the handler itself, resolve the behavior filter and
// assemble the pipe with NewPipe:
//
//	submit, err := saga.BehaviorFilter[*OrderSaga, OrderSubmitted](r)
//	if err != nil {
//	    return err
//	}
//	pipe := saga.NewPipe(
//	    saga.Recover[*OrderSaga, OrderSubmitted](logger),
//	    saga.Logging[*OrderSaga, OrderSubmitted](logger),
//	    saga.Timeout[*OrderSaga, OrderSubmitted](5*time.Second),
//	    submit,
//	)
//
// Pipes are immutable once built and forward in construction order. Calling
// next a second time returns ErrContinuationReused.
//
// # Cancellation
//
// Behavior filters check the context before the handler and again before
// forwarding. Once cancellation is observed the continuation does not run and
// the context error is returned; use IsCanceled to tell it apart from a
// handler failure.
//
// # Tracing and Hooks
//
// Each behavior dispatch runs inside an OpenTelemetry span ("saga.initiate"
// or "saga.observe") tagged with the correlation id. The span is ended on
// every exit path, including panics. Without a configured TracerProvider the
// span is a noop; WithoutTracing disables it explicitly.
//
// Hooks receive the same start and stop events without coupling to a tracer:
//
//	r := saga.NewRegistry(
//	    saga.WithOnStart(func(ctx context.Context, a saga.Activity) {
//	        logger.DebugContext(ctx, "dispatch", "op", a.Operation)
//	    }),
//	    saga.WithOnStop(func(ctx context.Context, a saga.Activity, err error, d time.Duration) {
//	        metrics.Timing("saga."+a.Operation.String(), d)
//	    }),
//	)
//
// NewLogHandler decorates a slog.Handler with the trace, span and correlation
// ids of the dispatch in progress.
//
// # Introspection
//
// Pipes, filters and registries describe themselves without executing:
//
//	doc, _ := saga.Probe(submit).JSON()
//	// {"pipe":[{"filters":[{"filterType":"initiatedBy","method":"Submit(OrderSubmitted message)","saga":"OrderSaga"}]}]}
//
// The rendered document can be queried as a View and matched with
// composable predicates:
//
//	ok := saga.Match(submit, saga.And(
//	    saga.FieldEquals("pipe.0.filters.0.filterType", "initiatedBy"),
//	    saga.Contains("pipe.0.filters.#.method", "Submit(OrderSubmitted message)"),
//	))
//
// # Thread Safety
//
// Register every binding before building pipes; the Registry is not safe for
// concurrent registration. Built pipes are safe for concurrent use. The
// package performs no locking on saga instances: the resolver must ensure one
// dispatch per instance at a time.
package saga

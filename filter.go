package saga

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Behavior is the kind of a saga message binding.
type Behavior int

const (
	// BehaviorInitiate binds a message that establishes the saga's initial state.
	BehaviorInitiate Behavior = iota + 1
	// BehaviorObserve binds a message handled by an already-active saga.
	BehaviorObserve
)

func (b Behavior) String() string {
	switch b {
	case BehaviorInitiate:
		return "Initiate"
	case BehaviorObserve:
		return "Observe"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// ProbeName returns the filter type reported when a behavior filter is probed.
func (b Behavior) ProbeName() string {
	switch b {
	case BehaviorInitiate:
		return "initiatedBy"
	case BehaviorObserve:
		return "observes"
	default:
		return "unknown"
	}
}

func (b Behavior) spanName() string {
	return "saga." + strings.ToLower(b.String())
}

// HandlerFunc handles message M on saga S. Its parameter order matches a
// method expression, so saga methods can be bound directly:
//
//	func (s *OrderSaga) Submit(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error
//
//	saga.Initiate(r, (*OrderSaga).Submit)
type HandlerFunc[S Saga, M any] func(s S, ctx context.Context, c *ConsumeContext[S, M]) error

// SagaFilter is a behavior filter. The set of implementations is closed:
// one per Behavior.
type SagaFilter[S Saga, M any] interface {
	Filter[S, M]

	// Behavior returns the binding kind this filter dispatches.
	Behavior() Behavior

	// Method returns the handler description, e.g. "Submit(OrderSubmitted message)".
	Method() string

	sealed()
}

var (
	_ SagaFilter[Saga, any] = (*initiateFilter[Saga, any])(nil)
	_ SagaFilter[Saga, any] = (*observeFilter[Saga, any])(nil)
)

// initiateFilter dispatches to the handler that establishes a saga's initial state.
type initiateFilter[S Saga, M any] struct {
	dispatcher[S, M]
}

func (f *initiateFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	return f.dispatch(ctx, BehaviorInitiate, c, next, nil)
}

func (f *initiateFilter[S, M]) Probe(s *ProbeScope) { f.probe(s, BehaviorInitiate) }

func (f *initiateFilter[S, M]) Behavior() Behavior { return BehaviorInitiate }

func (*initiateFilter[S, M]) sealed() {}

// observeFilter dispatches to the handler of an already-active saga.
type observeFilter[S Saga, M any] struct {
	dispatcher[S, M]
}

func (f *observeFilter[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	return f.dispatch(ctx, BehaviorObserve, c, next, requireActive[S, M])
}

func (f *observeFilter[S, M]) Probe(s *ProbeScope) { f.probe(s, BehaviorObserve) }

func (f *observeFilter[S, M]) Behavior() Behavior { return BehaviorObserve }

func (*observeFilter[S, M]) sealed() {}

// requireActive rejects contexts the resolver declared as freshly allocated.
// The filter trusts that declaration and performs no lookup of its own.
func requireActive[S Saga, M any](c *ConsumeContext[S, M]) error {
	if c.IsNew() {
		return &PreconditionError{
			Behavior:      BehaviorObserve,
			CorrelationID: c.CorrelationID().String(),
			Err:           ErrSagaNotActive,
		}
	}
	return nil
}

// dispatcher is the call boundary shared by both behavior filters.
type dispatcher[S Saga, M any] struct {
	handler HandlerFunc[S, M]
	method  string
	cfg     *config
}

// dispatch invokes the handler once and then the continuation once. The
// activity is stopped on every exit path, including panics, which are
// re-raised after the span ends.
func (d *dispatcher[S, M]) dispatch(ctx context.Context, op Behavior, c *ConsumeContext[S, M], next Pipe[S, M], check func(*ConsumeContext[S, M]) error) (err error) {
	ctx, act := startActivity(ctx, d.cfg, op, c)
	defer func() {
		if r := recover(); r != nil {
			act.stop(&PanicError{Value: r})
			panic(r)
		}
		act.stop(err)
	}()

	act.begin()

	if check != nil {
		if err := check(c); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.handler(c.Saga(), ctx, c); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return next.Send(ctx, c)
}

func (d *dispatcher[S, M]) Method() string { return d.method }

func (d *dispatcher[S, M]) probe(s *ProbeScope, op Behavior) {
	s.CreateFilterScope(op.ProbeName()).
		Add("method", d.method).
		Add("saga", shortName(reflect.TypeFor[S]()))
}

// describeMethod renders the handler description shown by probes.
func describeMethod[M any](name string) string {
	return fmt.Sprintf("%s(%s message)", name, shortName(reflect.TypeFor[M]()))
}

// handlerName extracts the method name from a handler. Method expressions
// and method values yield the method name; anonymous functions yield "Consume".
func handlerName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "Consume"
	}

	name := strings.ReplaceAll(f.Name(), "[...]", "")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")

	if name == "" || isAnonymous(name) {
		return "Consume"
	}
	return name
}

// isAnonymous matches compiler names for closures: "func1", or "2" for a
// closure nested in another.
func isAnonymous(name string) bool {
	rest := strings.TrimPrefix(name, "func")
	if rest == "" {
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package saga

import (
	"cmp"
	"errors"
	"log/slog"
	"reflect"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// config holds the instrumentation shared by every filter a Registry builds.
type config struct {
	tracer trace.Tracer
	logger *slog.Logger
	hooks  hooks
}

// Option configures a Registry.
type Option func(*config)

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithTracerProvider sets the provider the dispatch tracer is obtained from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithoutTracing disables dispatch spans. Hooks still run.
func WithoutTracing() Option {
	return func(c *config) {
		c.tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
}

// WithLogger sets the logger used to report binding violations as they are
// registered. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// bindingKey identifies a (saga type, message type) pair.
type bindingKey struct {
	saga    reflect.Type
	message reflect.Type
}

func keyFor[S Saga, M any]() bindingKey {
	return bindingKey{saga: reflect.TypeFor[S](), message: reflect.TypeFor[M]()}
}

type binding struct {
	behavior Behavior
	method   string
	filter   any // SagaFilter[S, M] for the key's types
	err      error
	seq      int // registration order
}

// BindingInfo describes a registered binding.
type BindingInfo struct {
	SagaType    reflect.Type
	MessageType reflect.Type
	Behavior    Behavior
	Method      string
}

// Registry holds the behavior bindings of saga types and resolves them into
// filters when pipelines are built. Every (saga, message) pair has at most
// one binding; violations are recorded at registration and reported by
// Build, before any message is dispatched.
//
// Usage:
//  1. Create a registry with NewRegistry
//  2. Bind messages with Initiate and Observe
//  3. Build one pipe per (saga, message) pair with Build
//
// Registration is not safe for concurrent use. Pipes built from a registry
// are safe for concurrent use.
type Registry struct {
	cfg      config
	bindings map[bindingKey]*binding
	errs     []error
}

// NewRegistry creates a Registry with the given options.
//
// By default spans are created with the global OpenTelemetry tracer, which is
// a no-op until a TracerProvider is installed.
//
// Example:
//
//	r := saga.NewRegistry(
//	    saga.WithTracerProvider(tp),
//	    saga.WithOnStop(func(ctx context.Context, a saga.Activity, err error, d time.Duration) {
//	        metrics.Timing("saga.dispatch", d)
//	    }),
//	)
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		cfg: config{
			tracer: otel.Tracer(tracerName),
			logger: slog.New(slog.DiscardHandler),
		},
		bindings: make(map[bindingKey]*binding),
	}
	for _, opt := range opts {
		opt(&r.cfg)
	}
	return r
}

// BindingOption configures a single binding.
type BindingOption func(*bindingOptions)

type bindingOptions struct {
	method string
}

// WithMethodName overrides the handler name reported by probes. By default
// the name is taken from the bound method, or "Consume" for function literals.
func WithMethodName(name string) BindingOption {
	return func(o *bindingOptions) {
		o.method = name
	}
}

// Initiate binds message M as the initiating message of saga S. The handler
// establishes the saga's initial state.
//
// This is a package-level function (not a method) due to Go generics limitations:
// methods cannot have type parameters independent of the receiver.
//
// Example:
//
//	saga.Initiate(r, (*OrderSaga).Submit)
func Initiate[S Saga, M Correlated](r *Registry, h HandlerFunc[S, M], opts ...BindingOption) {
	register(r, BehaviorInitiate, h, opts, func(d dispatcher[S, M]) SagaFilter[S, M] {
		return &initiateFilter[S, M]{dispatcher: d}
	})
}

// Observe binds message M as a message observed by an active saga S.
//
// Example:
//
//	saga.Observe(r, (*OrderSaga).PaymentReceived)
func Observe[S Saga, M any](r *Registry, h HandlerFunc[S, M], opts ...BindingOption) {
	register(r, BehaviorObserve, h, opts, func(d dispatcher[S, M]) SagaFilter[S, M] {
		return &observeFilter[S, M]{dispatcher: d}
	})
}

func register[S Saga, M any](r *Registry, behavior Behavior, h HandlerFunc[S, M], opts []BindingOption, newFilter func(dispatcher[S, M]) SagaFilter[S, M]) {
	key := keyFor[S, M]()

	if h == nil {
		r.reject(key, behavior, ErrNilHandler)
		return
	}

	if existing, ok := r.bindings[key]; ok {
		err := ErrDuplicateBinding
		if existing.behavior != behavior {
			err = ErrConflictingBinding
		}
		existing.err = r.reject(key, behavior, err)
		return
	}

	var o bindingOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.method == "" {
		o.method = handlerName(h)
	}

	method := describeMethod[M](o.method)
	r.bindings[key] = &binding{
		behavior: behavior,
		method:   method,
		seq:      len(r.bindings),
		filter:   newFilter(dispatcher[S, M]{handler: h, method: method, cfg: &r.cfg}),
	}
}

func (r *Registry) reject(key bindingKey, behavior Behavior, err error) error {
	berr := &BindingError{
		SagaType:    key.saga,
		MessageType: key.message,
		Behavior:    behavior,
		Err:         err,
	}
	r.errs = append(r.errs, berr)
	r.cfg.logger.Warn("saga binding rejected",
		slog.String("saga", typeName(key.saga)),
		slog.String("message", typeName(key.message)),
		slog.String("behavior", behavior.String()),
		slog.String("error", err.Error()),
	)
	return berr
}

// Err returns every binding violation recorded so far, or nil.
func (r *Registry) Err() error {
	return errors.Join(r.errs...)
}

// Bindings returns a description of every valid binding, sorted by saga type
// and then message type. Types that print alike are ordered by import path
// and then by registration order.
func (r *Registry) Bindings() []BindingInfo {
	type entry struct {
		info BindingInfo
		seq  int
	}

	entries := make([]entry, 0, len(r.bindings))
	for key, b := range r.bindings {
		if b.err != nil {
			continue
		}
		entries = append(entries, entry{
			info: BindingInfo{
				SagaType:    key.saga,
				MessageType: key.message,
				Behavior:    b.behavior,
				Method:      b.method,
			},
			seq: b.seq,
		})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Or(
			compareTypes(a.info.SagaType, b.info.SagaType),
			compareTypes(a.info.MessageType, b.info.MessageType),
			cmp.Compare(a.seq, b.seq),
		)
	})

	out := make([]BindingInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	return out
}

func compareTypes(a, b reflect.Type) int {
	return cmp.Or(
		cmp.Compare(typeName(a), typeName(b)),
		cmp.Compare(pkgPath(a), pkgPath(b)),
	)
}

// Probe describes every valid binding under a "bindings" scope.
func (r *Registry) Probe(s *ProbeScope) {
	for _, b := range r.Bindings() {
		s.CreateScope("bindings").
			Add("saga", shortName(b.SagaType)).
			Add("message", shortName(b.MessageType)).
			Add("behavior", b.Behavior.ProbeName()).
			Add("method", b.Method)
	}
}

// BehaviorFilter returns the behavior filter bound to (S, M). It returns a
// *BindingError wrapping ErrNoBinding when nothing is bound, or the recorded
// violation when the pair's binding is invalid.
func BehaviorFilter[S Saga, M any](r *Registry) (SagaFilter[S, M], error) {
	key := keyFor[S, M]()

	b, ok := r.bindings[key]
	if !ok {
		return nil, &BindingError{SagaType: key.saga, MessageType: key.message, Err: ErrNoBinding}
	}
	if b.err != nil {
		return nil, b.err
	}

	return b.filter.(SagaFilter[S, M]), nil
}

// Build returns the pipe that dispatches M to saga S: the behavior filter
// followed by next, terminated by the empty pipe. It fails if the registry
// holds any binding violation or if (S, M) is not bound, so an invalid
// configuration never reaches dispatch.
//
// The filters in next run after the handler returns. Filters that must wrap
// the handler, such as Timeout or Recover, belong ahead of BehaviorFilter in
// a pipe assembled with NewPipe.
//
// Example:
//
//	pipe, err := saga.Build[*OrderSaga, OrderSubmitted](r, persist)
//	if err != nil {
//	    return err
//	}
func Build[S Saga, M any](r *Registry, next ...Filter[S, M]) (*Chain[S, M], error) {
	if err := r.Err(); err != nil {
		return nil, err
	}

	f, err := BehaviorFilter[S, M](r)
	if err != nil {
		return nil, err
	}

	filters := make([]Filter[S, M], 0, len(next)+1)
	filters = append(filters, f)
	filters = append(filters, next...)

	return NewPipe(filters...), nil
}

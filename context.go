package saga

import (
	"context"
	"maps"
	"reflect"

	"github.com/google/uuid"
)

// Saga is a long-lived, stateful process manager correlated across messages
// by a shared identifier. Instances are owned by the persistence layer; the
// pipeline only borrows them for the duration of a Send.
type Saga interface {
	CorrelationID() uuid.UUID
}

// Correlated is implemented by messages that carry the correlation identifier
// of the saga they target. Initiating messages must be Correlated.
type Correlated interface {
	CorrelationID() uuid.UUID
}

// ConsumeContext carries one saga instance and one message through a pipe.
// The message and its type are fixed at construction. The saga may be
// mutated by its own handler, never by a filter.
type ConsumeContext[S Saga, M any] struct {
	saga      S
	message   M
	messageID uuid.UUID
	headers   map[string]string
	isNew     bool
}

// ContextOption configures a ConsumeContext.
type ContextOption func(*contextOptions)

type contextOptions struct {
	messageID uuid.UUID
	headers   map[string]string
	isNew     bool
}

// WithMessageID sets the identifier of the inbound message. By default a
// random identifier is generated.
func WithMessageID(id uuid.UUID) ContextOption {
	return func(o *contextOptions) {
		o.messageID = id
	}
}

// WithHeaders attaches transport headers to the context. The map is copied.
func WithHeaders(h map[string]string) ContextOption {
	return func(o *contextOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(h))
		}
		maps.Copy(o.headers, h)
	}
}

// AsNew declares that the resolver allocated the saga instance for this
// message and that it has not been initiated yet. Observe filters reject
// such contexts.
func AsNew() ContextOption {
	return func(o *contextOptions) {
		o.isNew = true
	}
}

// NewConsumeContext wraps a resolved saga instance and an inbound message.
// It returns ErrNilSaga if saga is nil.
//
// Example:
//
//	c, err := saga.NewConsumeContext(instance, OrderSubmitted{OrderID: id}, saga.AsNew())
//	if err != nil {
//	    return err
//	}
//	return pipe.Send(ctx, c)
func NewConsumeContext[S Saga, M any](s S, msg M, opts ...ContextOption) (*ConsumeContext[S, M], error) {
	if isNil(s) {
		return nil, ErrNilSaga
	}

	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.messageID == uuid.Nil {
		o.messageID = uuid.New()
	}

	return &ConsumeContext[S, M]{
		saga:      s,
		message:   msg,
		messageID: o.messageID,
		headers:   o.headers,
		isNew:     o.isNew,
	}, nil
}

// Saga returns the saga instance.
func (c *ConsumeContext[S, M]) Saga() S { return c.saga }

// Message returns the inbound message.
func (c *ConsumeContext[S, M]) Message() M { return c.message }

// CorrelationID returns the correlation identifier of the saga instance.
func (c *ConsumeContext[S, M]) CorrelationID() uuid.UUID { return c.saga.CorrelationID() }

// MessageID returns the identifier of the inbound message.
func (c *ConsumeContext[S, M]) MessageID() uuid.UUID { return c.messageID }

// IsNew reports whether the resolver declared the instance as freshly allocated.
func (c *ConsumeContext[S, M]) IsNew() bool { return c.isNew }

// Header returns the header value for key.
func (c *ConsumeContext[S, M]) Header(key string) (string, bool) {
	v, ok := c.headers[key]
	return v, ok
}

// Headers returns a copy of the transport headers.
func (c *ConsumeContext[S, M]) Headers() map[string]string {
	return maps.Clone(c.headers)
}

// SagaType returns the static saga type S.
func (c *ConsumeContext[S, M]) SagaType() reflect.Type { return reflect.TypeFor[S]() }

// MessageType returns the static message type M.
func (c *ConsumeContext[S, M]) MessageType() reflect.Type { return reflect.TypeFor[M]() }

type correlationKey struct{}

// ContextWithCorrelationID returns a context carrying the correlation id of
// the saga being dispatched. Behavior filters set it before calling the
// handler so that loggers and downstream filters can read it.
func ContextWithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id set by
// ContextWithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(correlationKey{}).(uuid.UUID)
	return id, ok
}

// isNil reports whether v is nil, including typed nil pointers stored in an
// interface-typed type parameter.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// shortName returns the unqualified name of t without pointer indirection.
func shortName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}

// pkgPath returns the import path of t's element type, or "" for
// unnamed types.
func pkgPath(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan, reflect.Map:
			t = t.Elem()
		default:
			return t.PkgPath()
		}
	}
}

package saga

import (
	"context"
	"slices"
	"sync/atomic"
)

// Pipe delivers a ConsumeContext to the next stage of a pipeline.
type Pipe[S Saga, M any] interface {
	Send(ctx context.Context, c *ConsumeContext[S, M]) error
}

// PipeFunc is a function adapter for Pipe. Use it for terminal stages and
// in tests:
//
//	next := saga.PipeFunc[*OrderSaga, OrderSubmitted](func(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error {
//	    return repo.Save(ctx, c.Saga())
//	})
type PipeFunc[S Saga, M any] func(ctx context.Context, c *ConsumeContext[S, M]) error

// Send implements the Pipe interface.
func (f PipeFunc[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M]) error {
	return f(ctx, c)
}

// Filter is one stage of a pipeline. It may inspect or wrap the context,
// forward to next at most once, or return without forwarding to end the
// pipeline for this message.
type Filter[S Saga, M any] interface {
	Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error
	Prober
}

// FilterFunc creates a Filter from a name and a function. The name is used
// as the filter type when the pipeline is probed.
//
//	audit := saga.FilterFunc("audit", func(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted], next saga.Pipe[*OrderSaga, OrderSubmitted]) error {
//	    log.Printf("order %s", c.CorrelationID())
//	    return next.Send(ctx, c)
//	})
func FilterFunc[S Saga, M any](name string, fn func(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error) Filter[S, M] {
	return &filterFunc[S, M]{name: name, fn: fn}
}

type filterFunc[S Saga, M any] struct {
	name string
	fn   func(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error
}

func (f *filterFunc[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M], next Pipe[S, M]) error {
	return f.fn(ctx, c, next)
}

func (f *filterFunc[S, M]) Probe(s *ProbeScope) {
	s.CreateFilterScope(f.name)
}

// Empty returns the terminal pipe. It performs no work and returns nil.
func Empty[S Saga, M any]() Pipe[S, M] {
	return emptyPipe[S, M]{}
}

type emptyPipe[S Saga, M any] struct{}

func (emptyPipe[S, M]) Send(context.Context, *ConsumeContext[S, M]) error { return nil }

// Chain is an immutable pipeline of filters, forwarding in the order the
// filters were given and terminating in the empty pipe.
//
// Chain is safe for concurrent use.
type Chain[S Saga, M any] struct {
	filters []Filter[S, M]
	head    Pipe[S, M]
}

// NewPipe builds a Chain from filters. The slice is copied; the chain cannot
// be changed after construction.
//
// Example:
//
//	pipe := saga.NewPipe(
//	    saga.Logging[*OrderSaga, OrderSubmitted](logger),
//	    initiate,
//	)
//	err := pipe.Send(ctx, c)
func NewPipe[S Saga, M any](filters ...Filter[S, M]) *Chain[S, M] {
	filters = slices.Clone(filters)

	var head Pipe[S, M] = emptyPipe[S, M]{}
	for i := len(filters) - 1; i >= 0; i-- {
		head = &node[S, M]{filter: filters[i], next: head}
	}

	return &Chain[S, M]{filters: filters, head: head}
}

// Send delivers c to the first filter.
func (p *Chain[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M]) error {
	return p.head.Send(ctx, c)
}

// Len returns the number of filters in the chain.
func (p *Chain[S, M]) Len() int { return len(p.filters) }

// Probe describes every filter in order under a "pipe" scope.
func (p *Chain[S, M]) Probe(s *ProbeScope) {
	scope := s.CreateScope("pipe")
	for _, f := range p.filters {
		f.Probe(scope)
	}
}

// node binds a filter to its continuation.
type node[S Saga, M any] struct {
	filter Filter[S, M]
	next   Pipe[S, M]
}

func (n *node[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M]) error {
	return n.filter.Send(ctx, c, &onceNext[S, M]{next: n.next})
}

// onceNext guards a continuation so a filter cannot forward the same
// message twice.
type onceNext[S Saga, M any] struct {
	next Pipe[S, M]
	used atomic.Bool
}

func (o *onceNext[S, M]) Send(ctx context.Context, c *ConsumeContext[S, M]) error {
	if o.used.Swap(true) {
		return ErrContinuationReused
	}
	return o.next.Send(ctx, c)
}

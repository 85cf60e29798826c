package saga_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/saga"
)

// OrderSubmitted starts an order saga.
type OrderSubmitted struct {
	OrderID uuid.UUID
	Total   int
}

func (m OrderSubmitted) CorrelationID() uuid.UUID { return m.OrderID }

// PaymentReceived is observed by an active order saga.
type PaymentReceived struct {
	OrderID uuid.UUID
	Amount  int
}

// OrderSaga tracks an order from submission to payment.
type OrderSaga struct {
	ID     uuid.UUID
	Status string
	Total  int
	Paid   int
}

func (s *OrderSaga) CorrelationID() uuid.UUID { return s.ID }

func (s *OrderSaga) Submitted(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error {
	if c.Message().Total <= 0 {
		return errors.New("total must be positive")
	}
	s.Status = "submitted"
	s.Total = c.Message().Total
	return nil
}

func (s *OrderSaga) PaymentReceived(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, PaymentReceived]) error {
	s.Paid += c.Message().Amount
	if s.Paid >= s.Total {
		s.Status = "paid"
	}
	return nil
}

var orderID = uuid.MustParse("7f1c2a9e-3b4d-4e5f-8a6b-1c2d3e4f5a6b")

func Example() {
	r := saga.NewRegistry(saga.WithoutTracing())
	saga.Initiate(r, (*OrderSaga).Submitted)
	saga.Observe(r, (*OrderSaga).PaymentReceived)

	persist := saga.FilterFunc("persist", func(ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted], next saga.Pipe[*OrderSaga, OrderSubmitted]) error {
		fmt.Println("persisting", c.Saga().Status)
		return next.Send(ctx, c)
	})

	submit, err := saga.Build(r, persist)
	if err != nil {
		fmt.Println(err)
		return
	}
	pay, err := saga.Build[*OrderSaga, PaymentReceived](r)
	if err != nil {
		fmt.Println(err)
		return
	}

	order := &OrderSaga{ID: orderID}

	c, _ := saga.NewConsumeContext(order, OrderSubmitted{OrderID: orderID, Total: 100}, saga.AsNew())
	if err := submit.Send(context.Background(), c); err != nil {
		fmt.Println(err)
	}

	p, _ := saga.NewConsumeContext(order, PaymentReceived{OrderID: orderID, Amount: 100})
	if err := pay.Send(context.Background(), p); err != nil {
		fmt.Println(err)
	}

	fmt.Println(order.Status)
	// Output:
	// persisting submitted
	// paid
}

func ExampleBuild_conflict() {
	r := saga.NewRegistry()
	saga.Initiate(r, (*OrderSaga).Submitted)
	saga.Observe(r, func(s *OrderSaga, ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error {
		return nil
	})

	_, err := saga.Build[*OrderSaga, OrderSubmitted](r)
	fmt.Println(errors.Is(err, saga.ErrConflictingBinding))
	// Output: true
}

func ExampleObserve_notActive() {
	r := saga.NewRegistry(saga.WithoutTracing())
	saga.Observe(r, (*OrderSaga).PaymentReceived)
	pay, _ := saga.Build[*OrderSaga, PaymentReceived](r)

	order := &OrderSaga{ID: orderID}
	c, _ := saga.NewConsumeContext(order, PaymentReceived{OrderID: orderID, Amount: 10}, saga.AsNew())

	err := pay.Send(context.Background(), c)
	fmt.Println(errors.Is(err, saga.ErrSagaNotActive))
	fmt.Println(order.Paid)
	// Output:
	// true
	// 0
}

func ExampleProbe() {
	r := saga.NewRegistry()
	saga.Initiate(r, (*OrderSaga).Submitted)

	submit, _ := saga.BehaviorFilter[*OrderSaga, OrderSubmitted](r)
	pipe := saga.NewPipe(
		saga.Logging[*OrderSaga, OrderSubmitted](slog.New(slog.DiscardHandler)),
		saga.Timeout[*OrderSaga, OrderSubmitted](5*time.Second),
		submit,
	)

	doc, _ := saga.Probe(pipe).JSON()
	fmt.Println(string(doc))
	// Output:
	// {"pipe":[{"filters":[{"filterType":"logging"},{"filterType":"timeout","timeout":"5s"},{"filterType":"initiatedBy","method":"Submitted(OrderSubmitted message)","saga":"OrderSaga"}]}]}
}

func ExampleNewPipe() {
	r := saga.NewRegistry(saga.WithoutTracing())
	saga.Initiate(r, func(s *OrderSaga, ctx context.Context, c *saga.ConsumeContext[*OrderSaga, OrderSubmitted]) error {
		_, bounded := ctx.Deadline()
		fmt.Println("handler bounded:", bounded)
		return s.Submitted(ctx, c)
	})

	submit, err := saga.BehaviorFilter[*OrderSaga, OrderSubmitted](r)
	if err != nil {
		fmt.Println(err)
		return
	}

	logger := slog.New(slog.DiscardHandler)
	pipe := saga.NewPipe(
		saga.Recover[*OrderSaga, OrderSubmitted](logger),
		saga.Logging[*OrderSaga, OrderSubmitted](logger),
		saga.Timeout[*OrderSaga, OrderSubmitted](5*time.Second),
		submit,
	)

	order := &OrderSaga{ID: orderID}
	c, _ := saga.NewConsumeContext(order, OrderSubmitted{OrderID: orderID, Total: 100}, saga.AsNew())
	if err := pipe.Send(context.Background(), c); err != nil {
		fmt.Println(err)
	}
	fmt.Println(order.Status)
	// Output:
	// handler bounded: true
	// submitted
}

func ExampleMatch() {
	r := saga.NewRegistry()
	saga.Initiate(r, (*OrderSaga).Submitted)
	pipe, _ := saga.Build[*OrderSaga, OrderSubmitted](r)

	initiates := saga.FieldEquals("pipe.0.filters.0.filterType", "initiatedBy")
	fmt.Println(saga.Match(pipe, initiates))
	// Output: true
}

func ExampleRegistry_Bindings() {
	r := saga.NewRegistry()
	saga.Observe(r, (*OrderSaga).PaymentReceived)
	saga.Initiate(r, (*OrderSaga).Submitted)

	for _, b := range r.Bindings() {
		fmt.Println(b.Behavior, b.Method)
	}
	// Output:
	// Initiate Submitted(OrderSubmitted message)
	// Observe PaymentReceived(PaymentReceived message)
}

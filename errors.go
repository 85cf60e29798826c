package saga

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var (
	// Construction errors.
	ErrNilSaga    = errors.New("saga: nil saga instance")
	ErrNilHandler = errors.New("saga: nil handler")

	// Binding violations.
	ErrNoBinding          = errors.New("saga: no binding for message")
	ErrDuplicateBinding   = errors.New("saga: duplicate binding")
	ErrConflictingBinding = errors.New("saga: conflicting initiate and observe bindings")

	// Dispatch errors.
	ErrSagaNotActive      = errors.New("saga: instance is not active")
	ErrContinuationReused = errors.New("saga: continuation invoked more than once")
)

// BindingError describes a binding violation for a (saga, message) pair.
// It is returned when a pipeline is built, never while dispatching.
type BindingError struct {
	SagaType    reflect.Type
	MessageType reflect.Type
	Behavior    Behavior
	Err         error
}

func (e *BindingError) Error() string {
	if e.Behavior == 0 {
		return fmt.Sprintf("%v: %s(%s)", e.Err, typeName(e.SagaType), typeName(e.MessageType))
	}
	return fmt.Sprintf("%v: %s %s(%s)", e.Err, e.Behavior, typeName(e.SagaType), typeName(e.MessageType))
}

func (e *BindingError) Unwrap() error { return e.Err }

// PreconditionError is returned by a filter when the context it received does
// not satisfy the filter's contract.
type PreconditionError struct {
	Behavior      Behavior
	CorrelationID string
	Err           error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Behavior, e.CorrelationID, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking filter or handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("saga: panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsCanceled reports whether err is the result of a canceled or expired
// context. Cancellation is an early termination, not a handler failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

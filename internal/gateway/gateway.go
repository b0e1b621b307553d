// Package gateway defines the contract between the synchronization core and the backend that
// stores restaurants. Implementations live in the graphql and local subpackages.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"restaurant_live/internal/model"
)

// Gateway: executes the three remote operations and opens the live "created" stream.
type Gateway interface {
	ListAll(ctx context.Context) ([]model.Restaurant, error)
	CreateOne(ctx context.Context, input model.CreateRestaurantInput) (model.Restaurant, error)
	DeleteOne(ctx context.Context, id string) error
	SubscribeOnCreate(ctx context.Context) (Subscription, error)
}

// CreatedEvent: wraps one newly created restaurant delivered by the stream.
type CreatedEvent struct {
	Restaurant model.Restaurant
}

// Subscription: a live stream of CreatedEvent values.
//
// Events is closed when the stream ends, either because Close was called or because the backend
// finished it. Errors carries stream errors; it is never closed before Events. Close may be
// called more than once.
type Subscription interface {
	Events() <-chan CreatedEvent
	Errors() <-chan error
	Close() error
}

// PendingErrors: returns the errors already buffered on errs without blocking. Readers call it
// once Events has closed, so the error that ended a stream is not lost.
func PendingErrors(errs <-chan error) []error {
	var pending []error
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return pending
			}
			pending = append(pending, err)
		default:
			return pending
		}
	}
}

// ErrOperationFailed: matches every gateway failure regardless of cause.
var ErrOperationFailed = errors.New("gateway operation failed")

// OperationError: the single error kind returned by gateways.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrOperationFailed, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// Fail: wraps err as an OperationError for op. A nil err stays nil.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.Op == op {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

const (
	OpListAll           = "listAll"
	OpCreateOne         = "createOne"
	OpDeleteOne         = "deleteOne"
	OpSubscribeOnCreate = "subscribeOnCreate"
)

// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
)

// Fake: records every call and lets a test decide results and push stream events.
type Fake struct {
	mu sync.Mutex

	Restaurants  []model.Restaurant
	ListErr      error
	CreateErr    error
	DeleteErr    error
	SubscribeErr error

	// ListGate, when set, holds ListAll until it is closed or the context ends.
	ListGate chan struct{}

	ListCalls      int
	CreateCalls    []model.CreateRestaurantInput
	DeleteCalls    []string
	SubscribeCalls int

	subs   []*Subscription
	nextID int
}

func New(restaurants ...model.Restaurant) *Fake {
	return &Fake{Restaurants: restaurants}
}

func (f *Fake) ListAll(ctx context.Context) ([]model.Restaurant, error) {
	f.mu.Lock()
	f.ListCalls++
	gate := f.ListGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, gateway.Fail(gateway.OpListAll, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, gateway.Fail(gateway.OpListAll, f.ListErr)
	}
	out := make([]model.Restaurant, len(f.Restaurants))
	copy(out, f.Restaurants)
	return out, nil
}

func (f *Fake) CreateOne(ctx context.Context, input model.CreateRestaurantInput) (model.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls = append(f.CreateCalls, input)
	if f.CreateErr != nil {
		return model.Restaurant{}, gateway.Fail(gateway.OpCreateOne, f.CreateErr)
	}
	f.nextID++
	r := model.Restaurant{
		ID:          fmt.Sprintf("fake-%d", f.nextID),
		Name:        input.Name,
		Description: input.Description,
		City:        input.City,
	}
	f.Restaurants = append(f.Restaurants, r)
	return r, nil
}

func (f *Fake) DeleteOne(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls = append(f.DeleteCalls, id)
	if f.DeleteErr != nil {
		return gateway.Fail(gateway.OpDeleteOne, f.DeleteErr)
	}
	for i, r := range f.Restaurants {
		if r.ID == id {
			f.Restaurants = append(f.Restaurants[:i:i], f.Restaurants[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) SubscribeOnCreate(ctx context.Context) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubscribeCalls++
	if f.SubscribeErr != nil {
		return nil, gateway.Fail(gateway.OpSubscribeOnCreate, f.SubscribeErr)
	}
	sub := &Subscription{
		events: make(chan gateway.CreatedEvent, 64),
		errs:   make(chan error, 8),
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// Subscription: returns the i-th subscription opened on f.
func (f *Fake) Subscription(i int) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		return nil
	}
	return f.subs[i]
}

// Counts: returns a consistent copy of the call counters.
func (f *Fake) Counts() (list, create, del, subscribe int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListCalls, len(f.CreateCalls), len(f.DeleteCalls), f.SubscribeCalls
}

// Subscription: the stream handed out by Fake.
type Subscription struct {
	mu         sync.Mutex
	events     chan gateway.CreatedEvent
	errs       chan error
	closed     bool
	closeCalls int
}

func (s *Subscription) Events() <-chan gateway.CreatedEvent {
	return s.events
}

func (s *Subscription) Errors() <-chan error {
	return s.errs
}

// Emit: delivers one created event. It reports false once the subscription is closed.
func (s *Subscription) Emit(r model.Restaurant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- gateway.CreatedEvent{Restaurant: r}
	return true
}

// Fail: delivers one stream error.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.errs <- err
}

// End: finishes the stream from the backend side: err, when not nil, is queued first, then both
// channels close.
func (s *Subscription) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.errs <- err
	}
	s.closed = true
	close(s.events)
	close(s.errs)
}

func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// CloseCalls: the number of times Close was invoked.
func (s *Subscription) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

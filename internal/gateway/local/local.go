// Package local implements gateway.Gateway on top of a sqlite database. Live events are read
// back from the event log, so every process sharing the database file sees every creation.
package local

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
	"restaurant_live/internal/repository"
	"restaurant_live/internal/worker"
)

const DefaultBatchSize = 100

type Gateway struct {
	Restaurants repository.RestaurantRepository
	Events      repository.EventLogRepository

	PollInterval time.Duration
	BatchSize    int

	logger zerolog.Logger
}

func New(conn *sql.DB, pollInterval time.Duration, logger zerolog.Logger) *Gateway {
	return &Gateway{
		Restaurants:  repository.NewRestaurantRepository(conn),
		Events:       repository.NewEventLogRepository(conn),
		PollInterval: pollInterval,
		BatchSize:    DefaultBatchSize,
		logger:       logger.With().Str("component", "local_gateway").Logger(),
	}
}

func (g *Gateway) ListAll(ctx context.Context) ([]model.Restaurant, error) {
	restaurants, err := g.Restaurants.List(ctx)
	if err != nil {
		return nil, gateway.Fail(gateway.OpListAll, err)
	}
	return restaurants, nil
}

func (g *Gateway) CreateOne(ctx context.Context, input model.CreateRestaurantInput) (model.Restaurant, error) {
	r := model.Restaurant{
		Name:        input.Name,
		Description: input.Description,
		City:        input.City,
	}
	if err := g.Restaurants.Create(ctx, &r); err != nil {
		return model.Restaurant{}, gateway.Fail(gateway.OpCreateOne, err)
	}
	return r, nil
}

func (g *Gateway) DeleteOne(ctx context.Context, id string) error {
	return gateway.Fail(gateway.OpDeleteOne, g.Restaurants.Delete(ctx, id))
}

// SubscribeOnCreate: streams creations logged after the call.
func (g *Gateway) SubscribeOnCreate(ctx context.Context) (gateway.Subscription, error) {
	cursor, err := g.Events.LatestLogID(ctx)
	if err != nil {
		return nil, gateway.Fail(gateway.OpSubscribeOnCreate, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		events: make(chan gateway.CreatedEvent),
		errs:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	w := worker.NewDispatchWorker(g.Events, sub.deliver, cursor, g.BatchSize, g.PollInterval, g.logger)
	w.OnError = sub.fail

	go func() {
		defer close(sub.done)
		defer close(sub.errs)
		defer close(sub.events)
		w.Run(subCtx)
	}()
	return sub, nil
}

type subscription struct {
	events chan gateway.CreatedEvent
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan gateway.CreatedEvent {
	return s.events
}

func (s *subscription) Errors() <-chan error {
	return s.errs
}

func (s *subscription) deliver(ctx context.Context, r model.Restaurant) error {
	select {
	case s.events <- gateway.CreatedEvent{Restaurant: r}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail: reports a stream error without blocking the worker; extra errors are dropped while one
// is pending.
func (s *subscription) fail(err error) {
	select {
	case s.errs <- gateway.Fail(gateway.OpSubscribeOnCreate, err):
	default:
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

var _ gateway.Gateway = (*Gateway)(nil)

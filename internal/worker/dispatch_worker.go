package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"restaurant_live/internal/model"
	"restaurant_live/internal/repository"
)

// CreateHandler: receives each created restaurant. A non-nil error stops the batch and the
// event is retried on the next tick.
type CreateHandler func(ctx context.Context, r model.Restaurant) error

// DispatchWorker: periodically reads Event_Log past its cursor and hands CREATE events to
// OnCreate, in log order.
type DispatchWorker struct {
	EventRepo repository.EventLogRepository
	OnCreate  CreateHandler
	// OnError, when set, receives batch failures that are not caused by cancellation.
	OnError func(error)

	BatchSize int
	Interval  time.Duration

	logger zerolog.Logger
	cursor int64
}

func NewDispatchWorker(
	eventRepo repository.EventLogRepository,
	onCreate CreateHandler,
	cursor int64,
	batchSize int,
	interval time.Duration,
	logger zerolog.Logger,
) *DispatchWorker {
	return &DispatchWorker{
		EventRepo: eventRepo,
		OnCreate:  onCreate,
		BatchSize: batchSize,
		Interval:  interval,
		logger:    logger.With().Str("component", "dispatch_worker").Logger(),
		cursor:    cursor,
	}
}

// Cursor: the log_id of the last event handled.
func (w *DispatchWorker) Cursor() int64 {
	return w.cursor
}

// Run: polls until ctx is done.
func (w *DispatchWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.logger.Debug().Dur("interval", w.Interval).Int64("cursor", w.cursor).Msg("dispatch worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Msg("dispatch worker stopped")
			return
		case <-ticker.C:
			for {
				n, err := w.ProcessBatch(ctx)
				if err != nil {
					if ctx.Err() == nil && w.OnError != nil {
						w.OnError(err)
					}
					break
				}
				if n < w.BatchSize {
					break
				}
			}
		}
	}
}

// ProcessBatch: reads one batch after the cursor and dispatches it. It returns how many
// log entries the cursor moved past.
func (w *DispatchWorker) ProcessBatch(ctx context.Context) (int, error) {
	// 1. pending logs
	logs, err := w.EventRepo.GetLogsAfter(ctx, w.cursor, w.BatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("error getting pending logs")
		return 0, err
	}
	if len(logs) == 0 {
		return 0, nil
	}

	w.logger.Debug().Int("count", len(logs)).Msg("processing logs")

	// 2. dispatch in order, moving the cursor behind each handled entry
	processed := 0
	for _, log := range logs {
		if err := w.processLog(ctx, log); err != nil {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			if _, handlerErr := err.(handlerError); handlerErr {
				w.logger.Warn().Err(err).Int64("log_id", log.LogID).Msg("handler failed, retrying next tick")
				return processed, err
			}
			// undecodable entries are skipped for good
			w.logger.Error().Err(err).Int64("log_id", log.LogID).Msg("failed to process log")
		}
		w.cursor = log.LogID
		processed++
	}
	return processed, nil
}

type handlerError struct {
	err error
}

func (e handlerError) Error() string {
	return e.err.Error()
}

// processLog: interprets one log entry.
func (w *DispatchWorker) processLog(ctx context.Context, log model.EventLog) error {
	switch log.EventType {
	case model.EventCreate:
		var payload model.Restaurant
		if err := json.Unmarshal([]byte(log.Payload), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal CREATE payload: %w", err)
		}
		if w.OnCreate == nil {
			return nil
		}
		if err := w.OnCreate(ctx, payload); err != nil {
			return handlerError{err: err}
		}
		return nil

	case model.EventDelete:
		// no delete stream
		return nil

	default:
		return fmt.Errorf("unsupported event type: %s", log.EventType)
	}
}

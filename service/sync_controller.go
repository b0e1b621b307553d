package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
	"restaurant_live/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("sync controller already started")
	ErrStopped        = errors.New("sync controller stopped")
)

type SyncOptions struct {
	// DedupEvents: skips stream events whose id is already visible, e.g. our own creation
	// echoed back.
	DedupEvents bool
	// RemoveOnDelete: removes a restaurant from the store once the gateway confirms the delete.
	RemoveOnDelete bool
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{DedupEvents: true, RemoveOnDelete: true}
}

// SyncController: bridges the gateway into the store for the lifetime of one mounted view.
type SyncController struct {
	Gateway gateway.Gateway
	Store   *store.Store

	opts   SyncOptions
	logger zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	sub     gateway.Subscription
	started bool
	stopped bool
	// loaded: flips once the initial fetch resolved; events seen before that wait in early.
	loaded     bool
	early      []model.Restaurant
	loadErr    error
	loadedCh   chan struct{}
	loadedOnce sync.Once

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSyncController(gw gateway.Gateway, st *store.Store, logger zerolog.Logger, opts SyncOptions) *SyncController {
	return &SyncController{
		Gateway:  gw,
		Store:    st,
		opts:     opts,
		logger:   logger.With().Str("component", "sync").Logger(),
		loadedCh: make(chan struct{}),
	}
}

// Start: mount. Opens the created stream, then fetches the full list in the background.
// Events that arrive before the list are kept and re-applied after it.
func (c *SyncController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.mu.Unlock()

	// 1. live stream
	sub, err := c.Gateway.SubscribeOnCreate(runCtx)

	c.mu.Lock()
	if c.stopped {
		// Stop ran while the stream was opening and will not see it
		c.mu.Unlock()
		if err == nil {
			c.closeStream(sub)
		}
		return ErrStopped
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to open the created stream")
	} else {
		c.sub = sub
		c.wg.Add(1)
		go c.pump(runCtx, sub)
	}

	// 2. initial fetch
	c.wg.Add(1)
	go c.fetch(runCtx)
	c.mu.Unlock()
	return nil
}

// Loaded: closed once the initial fetch has resolved, successfully or not, or the controller
// was stopped before it did.
func (c *SyncController) Loaded() <-chan struct{} {
	return c.loadedCh
}

// LoadErr: reports why the initial fetch produced no list: the gateway error, or ErrStopped when
// the controller stopped first. It is nil while loading and after a successful fetch.
func (c *SyncController) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Stop: unmount. Cancels every pending update and closes the stream exactly once.
func (c *SyncController) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		cancel := c.cancel
		sub := c.sub
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			c.closeStream(sub)
		}
		c.wg.Wait()

		c.mu.Lock()
		c.resolveLoad(ErrStopped)
		c.mu.Unlock()
	})
}

func (c *SyncController) closeStream(sub gateway.Subscription) {
	if err := sub.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("closing the created stream")
	}
}

// resolveLoad: records the fetch outcome once and releases Loaded. Must be called with c.mu held.
func (c *SyncController) resolveLoad(err error) {
	c.loadedOnce.Do(func() {
		c.loadErr = err
		close(c.loadedCh)
	})
}

func (c *SyncController) fetch(ctx context.Context) {
	defer c.wg.Done()

	restaurants, err := c.Gateway.ListAll(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		c.resolveLoad(ErrStopped)
		return
	}
	defer c.resolveLoad(err)

	fetched := map[string]bool{}
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch the restaurant list")
	} else {
		c.Store.ReplaceAll(restaurants)
		for _, r := range restaurants {
			fetched[r.ID] = true
		}
	}

	// events that raced the fetch: keep the ones the list did not already contain
	for _, r := range c.early {
		if fetched[r.ID] {
			continue
		}
		c.applyCreated(r)
	}
	c.early = nil
	c.loaded = true
}

func (c *SyncController) pump(ctx context.Context, sub gateway.Subscription) {
	defer c.wg.Done()

	events := sub.Events()
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Error().Err(err).Msg("created stream error")
		case ev, ok := <-events:
			if !ok {
				for _, err := range gateway.PendingErrors(errs) {
					c.logger.Error().Err(err).Msg("created stream error")
				}
				c.logger.Debug().Msg("created stream ended")
				return
			}
			c.onCreated(ctx, ev.Restaurant)
		}
	}
}

func (c *SyncController) onCreated(ctx context.Context, r model.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if !c.loaded {
		c.early = append(c.early, r)
		return
	}
	c.applyCreated(r)
}

// applyCreated: must be called with c.mu held.
func (c *SyncController) applyCreated(r model.Restaurant) {
	if c.opts.DedupEvents && c.Store.Snapshot().Contains(r.ID) {
		c.logger.Debug().Str("id", r.ID).Msg("skipping duplicate created event")
		return
	}
	c.Store.Append(r)
}

// Delete: asks the gateway to delete id. The local row goes away only when RemoveOnDelete is set.
func (c *SyncController) Delete(ctx context.Context, id string) error {
	if err := c.Gateway.DeleteOne(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("failed to delete restaurant")
		return err
	}
	if !c.opts.RemoveOnDelete {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || ctx.Err() != nil {
		return nil
	}
	c.Store.Remove(id)
	return nil
}

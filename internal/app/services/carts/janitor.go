package carts

import (
	"context"
	"sync"
	"time"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/system"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Janitor abandons carts that have been idle past the configured age, so
// stale sessions do not hold merged lines forever.
type Janitor struct {
	store    storage.CartStore
	maxAge   time.Duration
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Janitor)(nil)

// NewJanitor constructs a cart janitor. maxAge defaults to 24h and interval
// to 10m when zero.
func NewJanitor(store storage.CartStore, maxAge, interval time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("cart-janitor")
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{store: store, maxAge: maxAge, interval: interval, log: log}
}

func (j *Janitor) Name() string { return "cart-janitor" }

func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				j.sweep(runCtx)
			}
		}
	}()

	j.log.Info("cart janitor started")
	return nil
}

func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	cancel := j.cancel
	j.running = false
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.maxAge)
	stale, err := j.store.ListStaleCarts(ctx, cutoff)
	if err != nil {
		j.log.WithError(err).Warn("list stale carts failed")
		return
	}

	for _, cart := range stale {
		cart.Status = pos.CartAbandoned
		if _, err := j.store.UpdateCart(ctx, cart); err != nil {
			j.log.WithError(err).Warnf("abandon stale cart %s failed", cart.ID)
			continue
		}
		j.log.WithField("cart_id", cart.ID).Info("stale cart abandoned")
	}
}

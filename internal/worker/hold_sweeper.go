// Package worker contains background workers
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketd/internal/inventory"
	"ticketd/internal/repository"
	"ticketd/pkg/logger"
)

// DefaultSweepInterval is how often the sweeper scans for expired holds
const DefaultSweepInterval = 5 * time.Minute

// HoldSweeper periodically deletes expired seat holds left behind by lazy
// expiry. Availability checks never depend on it; it only keeps the hold
// groups from accumulating dead records.
type HoldSweeper struct {
	inventory *inventory.Manager
	events    *repository.EventRepository
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewHoldSweeper creates a hold sweeper. Zero interval uses
// DefaultSweepInterval.
func NewHoldSweeper(inv *inventory.Manager, events *repository.EventRepository, interval time.Duration) *HoldSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &HoldSweeper{
		inventory: inv,
		events:    events,
		interval:  interval,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (w *HoldSweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})

	w.wg.Add(1)
	go w.run(ctx)
	logger.Get().Info("hold sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the loop to exit and waits for it
func (w *HoldSweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	logger.Get().Info("hold sweeper stopped")
}

func (w *HoldSweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep scans every event and removes its expired holds
func (w *HoldSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	events, err := w.events.List(ctx)
	if err != nil {
		log.Warn("hold sweep failed to list events", zap.Error(err))
		return
	}

	total := 0
	for _, event := range events {
		removed, err := w.inventory.SweepExpired(ctx, event.ID)
		if err != nil {
			log.Warn("hold sweep failed",
				zap.String("event_id", event.ID),
				zap.Error(err))
			continue
		}
		total += removed
	}

	if total > 0 {
		log.Info("swept expired holds", zap.Int("removed", total))
	}
}

package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"lotpulse/models"
	"lotpulse/storage"
)

// FreshnessWorker sweeps active vehicles that no scrape has touched within
// the stale window and flags them. Vehicles are never deleted; a later
// scrape that sees the VIN again flips them back to active.
type FreshnessWorker struct {
	store      *storage.PostgresStore
	staleAfter time.Duration
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewFreshnessWorker(store *storage.PostgresStore, staleAfter time.Duration) *FreshnessWorker {
	if staleAfter <= 0 {
		staleAfter = 72 * time.Hour
	}
	return &FreshnessWorker{
		store:      store,
		staleAfter: staleAfter,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *FreshnessWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a sweep immediately.
func (w *FreshnessWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the freshness sweep loop.
func (w *FreshnessWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Freshness worker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Freshness worker triggered manually")
			w.sweep(ctx, batchSize)
		}
	}
}

func (w *FreshnessWorker) sweep(ctx context.Context, batchSize int) {
	cutoff := time.Now().Add(-w.staleAfter)

	vehicles, err := w.store.GetVehiclesNotSeenSince(ctx, cutoff, batchSize)
	if err != nil {
		log.Printf("Freshness: query error: %v", err)
		return
	}
	if len(vehicles) == 0 {
		return
	}

	var flagged int
	for _, v := range vehicles {
		if err := w.store.MarkVehicleStale(ctx, v.ID); err != nil {
			log.Printf("Freshness: failed to flag %s: %v", v.VIN, err)
			continue
		}
		flagged++
	}

	if flagged > 0 {
		log.Printf("Freshness: flagged %d vehicles not seen since %s", flagged, cutoff.Format(time.RFC3339))
		w.logFunc(models.LogLevelInfo, "freshness", fmt.Sprintf("Flagged %d stale vehicles", flagged))
	}
}

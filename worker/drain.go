package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/replydesk/event"
)

// abandonedError is recorded on processing events recovered by
// RecoverStale.
const abandonedError = "processing abandoned"

// Drain re-runs pending events older than the drain grace period through
// Process and returns how many it picked up. It relies on the claim in
// Process, so it is safe to run next to the queue consumers or another
// drain.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.config.DrainGrace)
	batch, err := w.store.ListByStatus(ctx, event.StatusPending, cutoff, w.config.DrainBatchSize)
	if err != nil {
		return 0, fmt.Errorf("worker: list pending: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, w.config.Concurrency)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		drained int
	)
	for _, evt := range batch {
		select {
		case <-ctx.Done():
			wg.Wait()
			return drained, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(evt *event.InboundEvent) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := w.Process(ctx, evt.ID)
			if err != nil {
				w.logger.ErrorContext(ctx, "drain process failed", "event_id", evt.ID.String(), "error", err)
				return
			}
			if outcome != OutcomeSkipped {
				w.config.Metrics.RecordDrained()
				mu.Lock()
				drained++
				mu.Unlock()
			}
		}(evt)
	}
	wg.Wait()

	w.logger.InfoContext(ctx, "drain complete", "candidates", len(batch), "drained", drained)
	return drained, nil
}

// RecoverStale fails events stuck in processing longer than
// StaleProcessingAfter, for workers that died mid-event. Recovered events
// are never re-run.
func (w *Worker) RecoverStale(ctx context.Context) (int, error) {
	now := w.now()
	stale, err := w.store.ListByStatus(ctx, event.StatusProcessing, now.Add(-w.config.StaleProcessingAfter), w.config.DrainBatchSize)
	if err != nil {
		return 0, fmt.Errorf("worker: list processing: %w", err)
	}

	recovered := 0
	for _, evt := range stale {
		ok, err := w.store.CompareAndSwap(ctx, evt.ID, event.Transition{
			From:      event.StatusProcessing,
			To:        event.StatusFailed,
			At:        now,
			LastError: abandonedError,
		})
		if err != nil {
			return recovered, fmt.Errorf("worker: fail stale event: %w", err)
		}
		if ok {
			recovered++
			w.logger.WarnContext(ctx, "stale processing event failed", "event_id", evt.ID.String())
		}
	}
	return recovered, nil
}

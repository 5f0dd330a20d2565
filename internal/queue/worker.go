// Package queue drains the offline queue of attendance writes that failed
// while the database was unreachable.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 50

	// maxRetries caps how often one entry is retried before it is
	// dropped. Attendance queued this long is stale anyway.
	maxRetries = 20
)

// Worker periodically retries queued operations.
type Worker struct {
	store    database.QueueStore
	recorder *attendance.Recorder
	interval time.Duration
}

// NewWorker creates a queue worker draining into the given recorder.
func NewWorker(store database.QueueStore, recorder *attendance.Recorder) *Worker {
	return &Worker{
		store:    store,
		recorder: recorder,
		interval: defaultInterval,
	}
}

// Run drains the queue on a fixed interval until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if processed, err := w.ProcessOnce(ctx); err != nil {
				log.Printf("queue drain failed: %v", err)
			} else if processed > 0 {
				log.Printf("queue drain: %d entries processed", processed)
			}
		}
	}
}

// ProcessOnce drains one batch of pending entries. Returns the number of
// entries resolved, either replayed or dropped.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	pending, err := w.store.ListPending(ctx, defaultBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing pending queue entries: %w", err)
	}

	resolved := 0
	for i := range pending {
		entry := &pending[i]

		if err := w.replay(ctx, entry); err != nil {
			if entry.RetryCount+1 >= maxRetries {
				log.Printf("dropping queue entry %d after %d retries: %v", entry.ID, maxRetries, err)
				if err := w.store.Delete(ctx, entry.ID); err == nil {
					resolved++
				}
				continue
			}
			if err := w.store.BumpRetry(ctx, entry.ID, err.Error()); err != nil {
				log.Printf("could not bump retry for queue entry %d: %v", entry.ID, err)
			}
			continue
		}

		if err := w.store.Delete(ctx, entry.ID); err != nil {
			// The replay is idempotent, a second run resolves it.
			log.Printf("could not delete queue entry %d: %v", entry.ID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (w *Worker) replay(ctx context.Context, entry *database.QueueEntry) error {
	switch entry.Operation {
	case recognition.QueueOpRecordAttendance:
		return w.replayAttendance(ctx, entry.Payload)
	default:
		return fmt.Errorf("unknown queue operation %q", entry.Operation)
	}
}

func (w *Worker) replayAttendance(ctx context.Context, payload []byte) error {
	var queued recognition.QueuedAttendance
	if err := json.Unmarshal(payload, &queued); err != nil {
		return fmt.Errorf("could not decode payload: %w", err)
	}

	date, err := time.Parse("2006-01-02", queued.Date)
	if err != nil {
		return fmt.Errorf("could not parse date %q: %w", queued.Date, err)
	}

	// An already_marked outcome means another path won the race while
	// this entry waited, which resolves the entry all the same.
	_, err = w.recorder.Record(ctx, queued.StudentID, date, queued.Confidence)
	return err
}

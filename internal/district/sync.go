package district

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const defaultBatchSize = 100

// Exporter pushes one attendance record to the district database.
type Exporter interface {
	Export(ctx context.Context, rec *database.AttendanceRecord) error
}

// Syncer pushes unsynced attendance records to the district office in
// batches and marks them synced locally.
type Syncer struct {
	store     database.AttendanceStore
	exporter  Exporter
	batchSize int
}

// NewSyncer creates a syncer over the local attendance store.
func NewSyncer(store database.AttendanceStore, exporter Exporter) *Syncer {
	return &Syncer{
		store:     store,
		exporter:  exporter,
		batchSize: defaultBatchSize,
	}
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Exported int
	Failed   int
}

// Sync exports all pending records. A record failing to export is retried
// on the next run; it is never marked synced.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	for {
		batch, err := s.store.ListUnsynced(ctx, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("listing unsynced records: %w", err)
		}
		if len(batch) == 0 {
			return report, nil
		}

		var exported []int64
		for i := range batch {
			if err := s.exporter.Export(ctx, &batch[i]); err != nil {
				report.Failed++
				continue
			}
			exported = append(exported, batch[i].ID)
			report.Exported++
		}

		if len(exported) > 0 {
			if err := s.store.MarkSynced(ctx, exported); err != nil {
				return report, fmt.Errorf("marking records synced: %w", err)
			}
		}

		// The last page was partial, everything pending has been
		// seen. Stopping here also avoids spinning on records that
		// keep failing to export.
		if len(exported) == 0 || len(batch) < s.batchSize {
			return report, nil
		}
	}
}

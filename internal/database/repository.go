package database

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateAttendance is returned by AttendanceStore.Insert when a record
// for the same (student, date) already exists. The uniqueness constraint in
// the store is the authoritative guard; callers treat this as the normal
// "already marked" outcome, never as a failure.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this student and date")

// StudentReader provides read access to enrolled students.
type StudentReader interface {
	// GetByCode retrieves an active student by school code, nil if not found.
	GetByCode(ctx context.Context, code string) (*Student, error)
	// ListActive returns all active students with their embeddings,
	// ordered by enrollment (oldest first, stable for matching).
	ListActive(ctx context.Context) ([]Student, error)
	// SearchByName returns active students whose normalized name contains
	// the normalized query.
	SearchByName(ctx context.Context, name string) ([]Student, error)
	// Count returns the number of active students.
	Count(ctx context.Context) (int, error)
}

// StudentWriter provides write access to enrolled students.
type StudentWriter interface {
	StudentReader

	// Enroll stores a new student and returns the database id.
	Enroll(ctx context.Context, s *Student) (int64, error)
	// UpdateEmbedding overwrites the representative embedding (re-enrollment).
	UpdateEmbedding(ctx context.Context, code string, embedding []float32) error
	// Deactivate marks a student inactive; students are never deleted.
	Deactivate(ctx context.Context, code string) error
}

// AttendanceStore provides access to attendance records.
type AttendanceStore interface {
	// Find retrieves the record for (student, date), nil if not found.
	Find(ctx context.Context, studentID int64, date time.Time) (*AttendanceRecord, error)
	// Insert stores a new record or returns ErrDuplicateAttendance if one
	// already exists for the same (student, date).
	Insert(ctx context.Context, rec *AttendanceRecord) (int64, error)
	// ListByDate returns all records on a date with joined student fields.
	ListByDate(ctx context.Context, date time.Time) ([]AttendanceRecord, error)
	// ListByStudent returns the most recent records for a student code.
	ListByStudent(ctx context.Context, code string, limit int) ([]AttendanceRecord, error)
	// CountOnDate returns the number of records on a date.
	CountOnDate(ctx context.Context, date time.Time) (int, error)
	// CountAll returns the total number of attendance records.
	CountAll(ctx context.Context) (int, error)
	// ListUnsynced returns records not yet pushed to the district portal.
	ListUnsynced(ctx context.Context, limit int) ([]AttendanceRecord, error)
	// MarkSynced flags records as exported to the district portal.
	MarkSynced(ctx context.Context, ids []int64) error
}

// QueueStore provides access to the offline retry queue.
type QueueStore interface {
	// Enqueue stores a pending operation for later retry.
	Enqueue(ctx context.Context, operation string, payload []byte) (int64, error)
	// ListPending returns queued operations, oldest first.
	ListPending(ctx context.Context, limit int) ([]QueueEntry, error)
	// Delete removes a completed entry.
	Delete(ctx context.Context, id int64) error
	// BumpRetry increments the retry counter and records the last error.
	BumpRetry(ctx context.Context, id int64, lastError string) error
}

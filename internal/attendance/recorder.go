// Package attendance implements the attendance recorder: at most one
// record per student per calendar day, idempotent under concurrency.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Outcome of a record operation. "already_marked" is a normal outcome,
// never an error: the day's attendance goal was already met.
type Outcome string

const (
	OutcomeRecorded      Outcome = "recorded"
	OutcomeAlreadyMarked Outcome = "already_marked"
)

// Result describes what happened to the (student, date) slot.
type Result struct {
	Outcome   Outcome
	RecordID  int64
	RecordUID string
}

// StoreError signals that the record store failed; the caller may retry
// via the offline queue.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("attendance store %s failed: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// TimeoutError signals that the record store did not answer in time,
// distinguished from a definitive store failure.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("attendance store %s timed out: %v", e.Op, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// Recorder enforces the one-record-per-student-per-day invariant. Each
// (student, date) slot moves from unmarked to marked exactly once; nothing
// moves it back.
type Recorder struct {
	store database.AttendanceStore
	loc   *time.Location
}

// NewRecorder creates a recorder. loc determines what "today" means;
// nil falls back to the server's local time zone.
func NewRecorder(store database.AttendanceStore, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{store: store, loc: loc}
}

// Today returns the current calendar date in the recorder's time zone.
func (r *Recorder) Today() time.Time {
	now := time.Now().In(r.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Record marks a student present on a date. A zero date means today.
// The pre-check is a fast path only; the store's uniqueness constraint is
// the authoritative guard, so two concurrent calls for the same slot yield
// one "recorded" and one "already_marked", never a duplicate row.
func (r *Recorder) Record(ctx context.Context, studentID int64, date time.Time, confidence *float64) (*Result, error) {
	if date.IsZero() {
		date = r.Today()
	}

	existing, err := r.store.Find(ctx, studentID, date)
	if err != nil {
		return nil, classify("lookup", err)
	}
	if existing != nil {
		return &Result{
			Outcome:   OutcomeAlreadyMarked,
			RecordID:  existing.ID,
			RecordUID: existing.RecordUID,
		}, nil
	}

	rec := &database.AttendanceRecord{
		RecordUID:  uuid.NewString(),
		StudentID:  studentID,
		Date:       date,
		Status:     database.StatusPresent,
		Confidence: confidence,
	}

	id, err := r.store.Insert(ctx, rec)
	if errors.Is(err, database.ErrDuplicateAttendance) {
		// Lost the race to a concurrent request; the slot is marked.
		result := &Result{Outcome: OutcomeAlreadyMarked}
		if winner, findErr := r.store.Find(ctx, studentID, date); findErr == nil && winner != nil {
			result.RecordID = winner.ID
			result.RecordUID = winner.RecordUID
		}
		return result, nil
	}
	if err != nil {
		return nil, classify("insert", err)
	}

	return &Result{
		Outcome:   OutcomeRecorded,
		RecordID:  id,
		RecordUID: rec.RecordUID,
	}, nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return &StoreError{Op: op, Err: err}
}

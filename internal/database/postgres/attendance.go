package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// uniqueViolation is the PostgreSQL error code for constraint violations
// on UNIQUE indexes.
const uniqueViolation = "23505"

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Find retrieves the record for (student, date), nil if not found.
func (r *AttendanceRepository) Find(ctx context.Context, studentID int64, date time.Time) (*database.AttendanceRecord, error) {
	query := `
		SELECT id, record_uid, student_id, att_date, marked_at, status,
		       confidence, synced, synced_at
		FROM attendance_records
		WHERE student_id = $1 AND att_date = $2
	`

	rec, err := scanAttendance(r.pool.QueryRow(ctx, query, studentID, dateOnly(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	return rec, nil
}

// Insert stores a new record. A unique violation on (student_id, att_date)
// maps to ErrDuplicateAttendance so concurrent check-then-insert races
// resolve deterministically at the constraint.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *database.AttendanceRecord) (int64, error) {
	query := `
		INSERT INTO attendance_records (record_uid, student_id, att_date, status, confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, marked_at
	`

	status := rec.Status
	if status == "" {
		status = database.StatusPresent
	}

	err := r.pool.QueryRow(ctx, query,
		rec.RecordUID,
		rec.StudentID,
		dateOnly(rec.Date),
		status,
		rec.Confidence,
	).Scan(&rec.ID, &rec.MarkedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, database.ErrDuplicateAttendance
		}
		return 0, fmt.Errorf("insert attendance: %w", err)
	}
	return rec.ID, nil
}

// ListByDate returns all records on a date with joined student fields.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	query := `
		SELECT ar.id, ar.record_uid, ar.student_id, ar.att_date, ar.marked_at,
		       ar.status, ar.confidence, ar.synced, ar.synced_at,
		       s.student_code, s.name, s.class, s.section
		FROM attendance_records ar
		JOIN students s ON s.id = ar.student_id
		WHERE ar.att_date = $1
		ORDER BY ar.marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("query attendance by date: %w", err)
	}
	defer rows.Close()

	return collectAttendanceWithStudent(rows)
}

// ListByStudent returns the most recent records for a student code.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, code string, limit int) ([]database.AttendanceRecord, error) {
	query := `
		SELECT ar.id, ar.record_uid, ar.student_id, ar.att_date, ar.marked_at,
		       ar.status, ar.confidence, ar.synced, ar.synced_at,
		       s.student_code, s.name, s.class, s.section
		FROM attendance_records ar
		JOIN students s ON s.id = ar.student_id
		WHERE s.student_code = $1
		ORDER BY ar.att_date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance by student: %w", err)
	}
	defer rows.Close()

	return collectAttendanceWithStudent(rows)
}

// CountOnDate returns the number of records on a date.
func (r *AttendanceRepository) CountOnDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE att_date = $1`, dateOnly(date)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// CountAll returns the total number of attendance records.
func (r *AttendanceRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// ListUnsynced returns records not yet pushed to the district portal.
func (r *AttendanceRepository) ListUnsynced(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	query := `
		SELECT ar.id, ar.record_uid, ar.student_id, ar.att_date, ar.marked_at,
		       ar.status, ar.confidence, ar.synced, ar.synced_at,
		       s.student_code, s.name, s.class, s.section
		FROM attendance_records ar
		JOIN students s ON s.id = ar.student_id
		WHERE NOT ar.synced
		ORDER BY ar.id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced attendance: %w", err)
	}
	defer rows.Close()

	return collectAttendanceWithStudent(rows)
}

// MarkSynced flags records as exported to the district portal.
func (r *AttendanceRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE attendance_records SET synced = TRUE, synced_at = NOW() WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// dateOnly strips the time component so DATE comparisons are exact.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func scanAttendance(row interface{ Scan(...any) error }) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var confidence sql.NullFloat64
	var syncedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.RecordUID,
		&rec.StudentID,
		&rec.Date,
		&rec.MarkedAt,
		&rec.Status,
		&confidence,
		&rec.Synced,
		&syncedAt,
	)
	if err != nil {
		return nil, err
	}
	if confidence.Valid {
		rec.Confidence = &confidence.Float64
	}
	if syncedAt.Valid {
		rec.SyncedAt = &syncedAt.Time
	}
	return &rec, nil
}

func collectAttendanceWithStudent(rows *sql.Rows) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var confidence sql.NullFloat64
		var syncedAt sql.NullTime

		err := rows.Scan(
			&rec.ID,
			&rec.RecordUID,
			&rec.StudentID,
			&rec.Date,
			&rec.MarkedAt,
			&rec.Status,
			&confidence,
			&rec.Synced,
			&syncedAt,
			&rec.StudentCode,
			&rec.StudentName,
			&rec.Class,
			&rec.Section,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		if confidence.Valid {
			rec.Confidence = &confidence.Float64
		}
		if syncedAt.Valid {
			rec.SyncedAt = &syncedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// Package district exports attendance records into the district education
// office's MySQL reporting database.
package district

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Pool manages the connection pool to the district MySQL database.
type Pool struct {
	db       *sql.DB
	schoolID string
}

// NewPool creates the district connection pool.
func NewPool(dsn, schoolID string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("district MySQL DSN is required")
	}
	if schoolID == "" {
		return nil, errors.New("school id is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open district database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping district database: %w", err)
	}

	return &Pool{db: db, schoolID: schoolID}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing district connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the reporting table expected by the district schema.
func (p *Pool) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS school_attendance (
			record_uid   VARCHAR(36)  NOT NULL,
			school_id    VARCHAR(32)  NOT NULL,
			student_code VARCHAR(64)  NOT NULL,
			student_name VARCHAR(255) NOT NULL,
			class        VARCHAR(32)  NOT NULL,
			section      VARCHAR(32)  NOT NULL,
			att_date     DATE         NOT NULL,
			marked_at    DATETIME     NOT NULL,
			status       VARCHAR(16)  NOT NULL,
			PRIMARY KEY (record_uid)
		)`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating school_attendance table: %w", err)
	}
	return nil
}

// Export upserts one attendance record into the district table. Re-sending
// the same record is harmless, the record uid is the primary key.
func (p *Pool) Export(ctx context.Context, rec *database.AttendanceRecord) error {
	query := `
		INSERT INTO school_attendance
			(record_uid, school_id, student_code, student_name, class, section, att_date, marked_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), marked_at = VALUES(marked_at)`

	_, err := p.db.ExecContext(ctx, query,
		rec.RecordUID,
		p.schoolID,
		rec.StudentCode,
		rec.StudentName,
		rec.Class,
		rec.Section,
		rec.Date.Format("2006-01-02"),
		rec.MarkedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("exporting record %s: %w", rec.RecordUID, err)
	}
	return nil
}

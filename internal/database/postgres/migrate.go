package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema. embeddingDim fixes the vector column length;
// an oracle upgrade that changes the descriptor length requires a new
// deployment, not a silent migration.
//
// The UNIQUE constraint on attendance_records (student_id, att_date) is the
// authoritative guard against double marking: concurrent inserts for the
// same student and day resolve at the database, not in application code.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	_, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createStudents := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS students (
			id              BIGSERIAL PRIMARY KEY,
			student_uid     UUID NOT NULL UNIQUE,
			student_code    VARCHAR(64) NOT NULL,
			name            TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			class           VARCHAR(64) NOT NULL DEFAULT '',
			section         VARCHAR(64) NOT NULL DEFAULT '',
			guardian_phone  VARCHAR(32) NOT NULL DEFAULT '',
			embedding       vector(%d) NOT NULL,
			embedding_dim   INTEGER NOT NULL,
			is_active       BOOLEAN NOT NULL DEFAULT TRUE,
			enrolled_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, embeddingDim)
	if _, err := p.db.ExecContext(ctx, createStudents); err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	// Code uniqueness applies to active students only; a deactivated student
	// frees their code for re-enrollment.
	_, err = p.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS students_code_active_idx
		ON students(student_code) WHERE is_active
	`)
	if err != nil {
		return fmt.Errorf("failed to create student code index: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id          BIGSERIAL PRIMARY KEY,
			record_uid  UUID NOT NULL UNIQUE,
			student_id  BIGINT NOT NULL REFERENCES students(id),
			att_date    DATE NOT NULL,
			marked_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status      VARCHAR(32) NOT NULL DEFAULT 'present',
			confidence  DOUBLE PRECISION,
			synced      BOOLEAN NOT NULL DEFAULT FALSE,
			synced_at   TIMESTAMPTZ,
			UNIQUE (student_id, att_date)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create attendance_records table: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance_records(att_date)
	`)
	if err != nil {
		return fmt.Errorf("failed to create attendance date index: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offline_queue (
			id          BIGSERIAL PRIMARY KEY,
			operation   VARCHAR(64) NOT NULL,
			payload     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error  TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create offline_queue table: %w", err)
	}

	return nil
}

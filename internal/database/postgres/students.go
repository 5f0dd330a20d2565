package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facerec"
)

// StudentRepository provides PostgreSQL-backed student storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `
	id, student_uid, student_code, name, normalized_name, class, section,
	guardian_phone, embedding, embedding_dim, is_active, enrolled_at
`

func scanStudent(row interface{ Scan(...any) error }) (*database.Student, error) {
	var s database.Student
	var vec pgvector.Vector

	err := row.Scan(
		&s.ID,
		&s.StudentUID,
		&s.StudentCode,
		&s.Name,
		&s.NormalizedName,
		&s.Class,
		&s.Section,
		&s.GuardianPhone,
		&vec,
		&s.EmbeddingDim,
		&s.IsActive,
		&s.EnrolledAt,
	)
	if err != nil {
		return nil, err
	}
	s.Embedding = vec.Slice()
	return &s, nil
}

// GetByCode retrieves an active student by school code, nil if not found.
func (r *StudentRepository) GetByCode(ctx context.Context, code string) (*database.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE student_code = $1 AND is_active`

	s, err := scanStudent(r.pool.QueryRow(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return s, nil
}

// ListActive returns all active students, oldest enrollment first. The
// stable order makes the matcher's tie-break deterministic across calls.
func (r *StudentRepository) ListActive(ctx context.Context) ([]database.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE is_active ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

// SearchByName returns active students whose normalized name contains the
// normalized query (diacritic and case insensitive).
func (r *StudentRepository) SearchByName(ctx context.Context, name string) ([]database.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE is_active AND normalized_name LIKE '%' || $1 || '%'
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, facerec.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

func collectStudents(rows *sql.Rows) ([]database.Student, error) {
	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Count returns the number of active students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE is_active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// Enroll stores a new student and returns the database id.
func (r *StudentRepository) Enroll(ctx context.Context, s *database.Student) (int64, error) {
	query := `
		INSERT INTO students (student_uid, student_code, name, normalized_name,
			class, section, guardian_phone, embedding, embedding_dim)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		s.StudentUID,
		s.StudentCode,
		s.Name,
		s.NormalizedName,
		s.Class,
		s.Section,
		s.GuardianPhone,
		pgvector.NewVector(s.Embedding),
		len(s.Embedding),
	).Scan(&s.ID)
	if err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return s.ID, nil
}

// UpdateEmbedding overwrites the representative embedding (re-enrollment).
func (r *StudentRepository) UpdateEmbedding(ctx context.Context, code string, embedding []float32) error {
	query := `
		UPDATE students
		SET embedding = $1, embedding_dim = $2
		WHERE student_code = $3 AND is_active
	`

	result, err := r.pool.Exec(ctx, query, pgvector.NewVector(embedding), len(embedding), code)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no active student with code %s", code)
	}
	return nil
}

// Deactivate marks a student inactive; students are never deleted.
func (r *StudentRepository) Deactivate(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students SET is_active = FALSE WHERE student_code = $1 AND is_active`, code)
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

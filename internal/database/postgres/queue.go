package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// QueueRepository provides PostgreSQL-backed offline queue storage.
type QueueRepository struct {
	pool *Pool
}

// NewQueueRepository creates a new PostgreSQL queue repository.
func NewQueueRepository(pool *Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

// Enqueue stores a pending operation for later retry.
func (r *QueueRepository) Enqueue(ctx context.Context, operation string, payload []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO offline_queue (operation, payload) VALUES ($1, $2) RETURNING id`,
		operation, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue operation: %w", err)
	}
	return id, nil
}

// ListPending returns queued operations, oldest first.
func (r *QueueRepository) ListPending(ctx context.Context, limit int) ([]database.QueueEntry, error) {
	query := `
		SELECT id, operation, payload, created_at, retry_count, last_error
		FROM offline_queue
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []database.QueueEntry
	for rows.Next() {
		var e database.QueueEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.Payload, &e.CreatedAt, &e.RetryCount, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return entries, nil
}

// Delete removes a completed entry.
func (r *QueueRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM offline_queue WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

// BumpRetry increments the retry counter and records the last error.
func (r *QueueRepository) BumpRetry(ctx context.Context, id int64, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE offline_queue SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`,
		id, lastError)
	if err != nil {
		return fmt.Errorf("bump queue retry: %w", err)
	}
	return nil
}

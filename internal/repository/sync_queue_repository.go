package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

const syncQueueColumns = `id, user_id, device_id, entity_type, operation, client_id, server_id, status,
	error_message, retry_count, created_at, updated_at`

// SyncQueueRepository stores ingestion attempt records.
type SyncQueueRepository struct {
	db *sqlx.DB
}

// NewSyncQueueRepository constructs the repository.
func NewSyncQueueRepository(db *sqlx.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

// Insert appends one attempt. retry_count is derived from the number of
// earlier attempts for the same device, client id and operation.
func (r *SyncQueueRepository) Insert(ctx context.Context, entry *models.SyncQueueEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = entry.CreatedAt

	const query = `INSERT INTO sync_queue
	(user_id, device_id, entity_type, operation, client_id, server_id, status, error_message, retry_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		(SELECT COUNT(*) FROM sync_queue WHERE user_id = $1 AND device_id = $2 AND client_id = $5 AND operation = $4),
		$9, $9)
	RETURNING id, retry_count`
	row := Executor(ctx, r.db).QueryRowxContext(ctx, query,
		entry.UserID, entry.DeviceID, entry.EntityType, entry.Operation, entry.ClientID,
		entry.ServerID, entry.Status, entry.ErrorMessage, entry.CreatedAt,
	)
	if err := row.Scan(&entry.ID, &entry.RetryCount); err != nil {
		return fmt.Errorf("insert sync queue entry: %w", err)
	}
	return nil
}

// ListByStatus returns entries for a device in the given status, newest
// first. A zero since disables the time window; limit <= 0 disables the cap.
func (r *SyncQueueRepository) ListByStatus(ctx context.Context, userID, deviceID string, status models.SyncStatus, since time.Time, limit int) ([]models.SyncQueueEntry, error) {
	query := `SELECT ` + syncQueueColumns + ` FROM sync_queue
	WHERE user_id = $1 AND device_id = $2 AND status = $3 AND ($4::timestamptz IS NULL OR updated_at >= $4)
	ORDER BY updated_at DESC, id DESC`
	args := []interface{}{userID, deviceID, status, nullableTime(since)}
	if limit > 0 {
		query += ` LIMIT $5`
		args = append(args, limit)
	}
	var entries []models.SyncQueueEntry
	if err := Executor(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list sync queue entries: %w", err)
	}
	return entries, nil
}

// LastCompletedAt returns the time of the latest completed attempt, if any.
func (r *SyncQueueRepository) LastCompletedAt(ctx context.Context, userID, deviceID string) (*time.Time, error) {
	const query = `SELECT MAX(updated_at) FROM sync_queue WHERE user_id = $1 AND device_id = $2 AND status = $3`
	var last sql.NullTime
	if err := Executor(ctx, r.db).GetContext(ctx, &last, query, userID, deviceID, models.SyncStatusCompleted); err != nil {
		return nil, fmt.Errorf("last completed sync: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

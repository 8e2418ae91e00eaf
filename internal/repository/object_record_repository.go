package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldsync-api/internal/models"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

// ObjectRecordRepository maintains the object store ledger.
type ObjectRecordRepository struct {
	db *sqlx.DB
}

// NewObjectRecordRepository constructs the repository.
func NewObjectRecordRepository(db *sqlx.DB) *ObjectRecordRepository {
	return &ObjectRecordRepository{db: db}
}

// Upsert registers a stored object. Re-registering the same bucket and key
// refreshes the metadata and returns the existing identifier.
func (r *ObjectRecordRepository) Upsert(ctx context.Context, record *models.ObjectRecord) (int64, error) {
	if record.KeyHash == "" {
		record.KeyHash = storage.KeyHash(record.ObjectKey)
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO object_records
	(bucket, object_key, key_hash, content_type, size_bytes, version_id, etag, created_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (bucket, key_hash) DO UPDATE SET
		object_key = EXCLUDED.object_key,
		content_type = EXCLUDED.content_type,
		size_bytes = EXCLUDED.size_bytes,
		version_id = EXCLUDED.version_id,
		etag = EXCLUDED.etag,
		updated_at = EXCLUDED.updated_at
	RETURNING id`
	var id int64
	err := Executor(ctx, r.db).GetContext(ctx, &id, query,
		record.Bucket, record.ObjectKey, record.KeyHash, record.ContentType, record.SizeBytes,
		record.VersionID, record.ETag, record.CreatedBy, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert object record: %w", err)
	}
	record.ID = id
	return id, nil
}

// GetByID fetches one ledger row.
func (r *ObjectRecordRepository) GetByID(ctx context.Context, id int64) (*models.ObjectRecord, error) {
	const query = `SELECT id, bucket, object_key, key_hash, content_type, size_bytes, version_id, etag, created_by, created_at, updated_at
	FROM object_records WHERE id = $1`
	var record models.ObjectRecord
	if err := Executor(ctx, r.db).GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey looks a record up through its key hash.
func (r *ObjectRecordRepository) FindByKey(ctx context.Context, bucket, key string) (*models.ObjectRecord, error) {
	const query = `SELECT id, bucket, object_key, key_hash, content_type, size_bytes, version_id, etag, created_by, created_at, updated_at
	FROM object_records WHERE bucket = $1 AND key_hash = $2`
	var record models.ObjectRecord
	if err := Executor(ctx, r.db).GetContext(ctx, &record, query, bucket, storage.KeyHash(key)); err != nil {
		return nil, err
	}
	return &record, nil
}

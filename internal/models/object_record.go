package models

import "time"

// ObjectRecord is the ledger row for one blob in the object store.
type ObjectRecord struct {
	ID          int64     `db:"id" json:"id"`
	Bucket      string    `db:"bucket" json:"bucket"`
	ObjectKey   string    `db:"object_key" json:"objectKey"`
	KeyHash     string    `db:"key_hash" json:"keyHash"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	VersionID   *string   `db:"version_id" json:"versionId,omitempty"`
	ETag        *string   `db:"etag" json:"etag,omitempty"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

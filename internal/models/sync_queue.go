package models

import "time"

// SyncStatus is the outcome recorded for one ingestion attempt.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// Sync entity types and operations.
const (
	SyncEntitySubmission = "submission"
	SyncOperationCreate  = "create"
)

// SyncQueueEntry is an immutable record of one attempt to ingest a client item.
type SyncQueueEntry struct {
	ID           int64      `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"userId"`
	DeviceID     string     `db:"device_id" json:"deviceId"`
	EntityType   string     `db:"entity_type" json:"entityType"`
	Operation    string     `db:"operation" json:"operation"`
	ClientID     string     `db:"client_id" json:"clientId"`
	ServerID     *int64     `db:"server_id" json:"serverId,omitempty"`
	Status       SyncStatus `db:"status" json:"status"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retryCount"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

// SyncItemStatus is the per-item outcome of a batch sync.
type SyncItemStatus string

const (
	SyncItemSuccess SyncItemStatus = "success"
	SyncItemSkipped SyncItemStatus = "skipped"
	SyncItemError   SyncItemStatus = "error"
)

// SubmissionItem is one client-generated submission.
type SubmissionItem struct {
	ClientID            string                  `json:"clientId" validate:"required,max=100"`
	TemplateID          int64                   `json:"templateId" validate:"required,gt=0"`
	TemplateVersion     int                     `json:"templateVersion" validate:"required,gt=0"`
	Data                json.RawMessage         `json:"data" swaggertype:"object"`
	Status              models.SubmissionStatus `json:"status"`
	Geolocation         *models.Geolocation     `json:"geolocation,omitempty" validate:"omitempty"`
	DeviceInfo          json.RawMessage         `json:"deviceInfo,omitempty" swaggertype:"object"`
	IsOfflineSubmission *bool                   `json:"isOfflineSubmission,omitempty"`
	Attachments         []SubmissionAttachment  `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// SubmissionAttachment references an uploaded object for a form field.
// Attachments without an object id are ignored.
type SubmissionAttachment struct {
	FieldName   string  `json:"fieldName" validate:"required"`
	FileName    string  `json:"fileName" validate:"required"`
	ObjectID    *int64  `json:"objectId,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SyncBatchRequest carries a device's offline backlog.
type SyncBatchRequest struct {
	DeviceID    string           `json:"deviceId"`
	Submissions []SubmissionItem `json:"submissions"`
}

// SyncItemResult reports what happened to one item.
type SyncItemResult struct {
	ClientID string         `json:"clientId"`
	Status   SyncItemStatus `json:"status"`
	Message  string         `json:"message,omitempty"`
	ServerID *int64         `json:"serverId,omitempty"`
}

// SyncBatchResponse aggregates per-item results in input order.
type SyncBatchResponse struct {
	SyncedCount  int              `json:"syncedCount"`
	SkippedCount int              `json:"skippedCount"`
	ErrorCount   int              `json:"errorCount"`
	Results      []SyncItemResult `json:"results"`
}

// SyncQueueItem is the client view of a sync queue entry.
type SyncQueueItem struct {
	ClientID     string            `json:"clientId"`
	EntityType   string            `json:"entityType"`
	Operation    string            `json:"operation"`
	ServerID     *int64            `json:"serverId,omitempty"`
	Status       models.SyncStatus `json:"status"`
	ErrorMessage *string           `json:"errorMessage,omitempty"`
	RetryCount   int               `json:"retryCount"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// SyncStatusResponse summarises the sync state of a device.
type SyncStatusResponse struct {
	DeviceID             string          `json:"deviceId"`
	LastSyncAt           *time.Time      `json:"lastSyncAt"`
	PendingItems         []SyncQueueItem `json:"pendingItems"`
	RecentCompletedItems []SyncQueueItem `json:"recentCompletedItems"`
	RecentFailedItems    []SyncQueueItem `json:"recentFailedItems"`
}

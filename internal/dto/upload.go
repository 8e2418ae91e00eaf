package dto

import (
	"time"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

// InitiateUploadRequest opens a multipart upload. At most one of the scope
// identifiers may be set; none selects the caller's user scope.
type InitiateUploadRequest struct {
	FileName       string `json:"fileName" validate:"required,max=255"`
	ContentType    string `json:"contentType" validate:"required"`
	Parts          int    `json:"parts" validate:"required,min=1"`
	SubmissionID   *int64 `json:"submissionId,omitempty"`
	FormTemplateID *int64 `json:"formTemplateId,omitempty"`
	ProjectID      *int64 `json:"projectId,omitempty"`
}

// InitiateUploadResponse returns the upload handle and part URLs.
type InitiateUploadResponse struct {
	UploadID  string                 `json:"uploadId"`
	Key       string                 `json:"key"`
	PartURLs  []models.UploadPartURL `json:"partUrls"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

// UploadedPart is the client's receipt for one uploaded part.
type UploadedPart struct {
	PartNumber int32  `json:"partNumber" validate:"required,min=1"`
	ETag       string `json:"etag" validate:"required"`
}

// CompleteUploadRequest lists every uploaded part in order.
type CompleteUploadRequest struct {
	UploadID    string         `json:"uploadId" validate:"required"`
	Key         string         `json:"key" validate:"required"`
	ContentType string         `json:"contentType,omitempty"`
	Parts       []UploadedPart `json:"parts" validate:"required,min=1,dive"`
}

// CompleteUploadResponse points at the registered object.
type CompleteUploadResponse struct {
	ObjectID    int64  `json:"objectId"`
	Key         string `json:"key"`
	SizeBytes   int64  `json:"sizeBytes"`
	DownloadURL string `json:"downloadUrl"`
}

// AbortUploadRequest cancels an open upload.
type AbortUploadRequest struct {
	UploadID string `json:"uploadId" validate:"required"`
	Key      string `json:"key" validate:"required"`
}

// DownloadURLResponse is a time-limited link to a stored object.
type DownloadURLResponse struct {
	ObjectID  int64     `json:"objectId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

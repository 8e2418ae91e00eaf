package dto

import (
	"time"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

// CreateSubmissionRequest is the single-item synchronous variant of a sync.
type CreateSubmissionRequest struct {
	SubmissionItem
}

// SubmissionResponse is returned after a successful create.
type SubmissionResponse struct {
	ServerID    int64                   `json:"serverId"`
	ClientID    string                  `json:"clientId"`
	Status      models.SubmissionStatus `json:"status"`
	SubmittedAt *time.Time              `json:"submittedAt,omitempty"`
}

// SubmissionDetail bundles a submission with its attachments.
type SubmissionDetail struct {
	models.Submission
	Files []models.SubmissionFile `json:"files"`
}

// UpdateSubmissionStatusRequest moves a submission forward in its lifecycle.
type UpdateSubmissionStatusRequest struct {
	Status models.SubmissionStatus `json:"status" validate:"required,oneof=submitted verified rejected"`
	Notes  *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

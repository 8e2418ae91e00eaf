package models

import (
	"encoding/json"
	"time"
)

// SubmissionStatus enumerates the lifecycle of a form response.
type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "draft"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusVerified  SubmissionStatus = "verified"
	SubmissionStatusRejected  SubmissionStatus = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusDraft, SubmissionStatusSubmitted, SubmissionStatusVerified, SubmissionStatusRejected:
		return true
	}
	return false
}

// IsReview reports whether the status is a reviewer decision.
func (s SubmissionStatus) IsReview() bool {
	return s == SubmissionStatusVerified || s == SubmissionStatusRejected
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	switch s {
	case SubmissionStatusDraft:
		return next == SubmissionStatusSubmitted
	case SubmissionStatusSubmitted:
		return next.IsReview()
	}
	return false
}

// Submission is one persisted form response.
type Submission struct {
	ID                    int64            `db:"id" json:"id"`
	ClientID              string           `db:"client_id" json:"clientId"`
	FormTemplateID        int64            `db:"form_template_id" json:"formTemplateId"`
	FormTemplateVersionID int64            `db:"form_template_version_id" json:"formTemplateVersionId"`
	SubmittedBy           string           `db:"submitted_by" json:"submittedBy"`
	Status                SubmissionStatus `db:"status" json:"status"`
	SubmittedAt           *time.Time       `db:"submitted_at" json:"submittedAt,omitempty"`
	Latitude              *float64         `db:"latitude" json:"latitude,omitempty"`
	Longitude             *float64         `db:"longitude" json:"longitude,omitempty"`
	LocationAccuracy      *float64         `db:"location_accuracy" json:"locationAccuracy,omitempty"`
	DeviceInfo            json.RawMessage  `db:"device_info" json:"deviceInfo,omitempty"`
	IsOfflineSubmission   bool             `db:"is_offline_submission" json:"isOfflineSubmission"`
	SyncedAt              *time.Time       `db:"synced_at" json:"syncedAt,omitempty"`
	DataObjectID          *int64           `db:"data_object_id" json:"dataObjectId,omitempty"`
	VerifiedBy            *string          `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt            *time.Time       `db:"verified_at" json:"verifiedAt,omitempty"`
	VerificationNotes     *string          `db:"verification_notes" json:"verificationNotes,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updatedAt"`
}

// Geolocation is the optional capture position of a submission.
type Geolocation struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// SubmissionFile links a submission to a stored object for one form field.
type SubmissionFile struct {
	ID           int64     `db:"id" json:"id"`
	SubmissionID int64     `db:"submission_id" json:"submissionId"`
	ObjectID     int64     `db:"object_id" json:"objectId"`
	FieldName    string    `db:"field_name" json:"fieldName"`
	FileName     string    `db:"file_name" json:"fileName"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// SubmissionStatusPatch enumerates every column a status transition may touch.
// Nil fields keep their stored value.
type SubmissionStatusPatch struct {
	ID                int64            `db:"id"`
	From              SubmissionStatus `db:"from_status"`
	To                SubmissionStatus `db:"to_status"`
	SubmittedAt       *time.Time       `db:"submitted_at"`
	VerifiedBy        *string          `db:"verified_by"`
	VerifiedAt        *time.Time       `db:"verified_at"`
	VerificationNotes *string          `db:"verification_notes"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

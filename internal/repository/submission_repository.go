package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

// ErrDuplicateClientID signals a unique violation on submissions.client_id.
var ErrDuplicateClientID = errors.New("submission client id already exists")

const uniqueViolation = "23505"

const submissionColumns = `id, client_id, form_template_id, form_template_version_id, submitted_by, status, submitted_at,
	latitude, longitude, location_accuracy, device_info, is_offline_submission, synced_at, data_object_id,
	verified_by, verified_at, verification_notes, created_at, updated_at`

// SubmissionRepository persists submissions and their file attachments.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByClientID returns the submission carrying the client identifier.
func (r *SubmissionRepository) FindByClientID(ctx context.Context, clientID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE client_id = $1`
	var submission models.Submission
	if err := Executor(ctx, r.db).GetContext(ctx, &submission, query, clientID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetByID returns a submission by surrogate id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := Executor(ctx, r.db).GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Create inserts a submission and assigns its identifier.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	if submission.UpdatedAt.IsZero() {
		submission.UpdatedAt = submission.CreatedAt
	}
	const query = `INSERT INTO submissions
	(client_id, form_template_id, form_template_version_id, submitted_by, status, submitted_at,
	 latitude, longitude, location_accuracy, device_info, is_offline_submission, synced_at, data_object_id,
	 created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id`
	var id int64
	err := Executor(ctx, r.db).GetContext(ctx, &id, query,
		submission.ClientID, submission.FormTemplateID, submission.FormTemplateVersionID, submission.SubmittedBy,
		submission.Status, submission.SubmittedAt, submission.Latitude, submission.Longitude, submission.LocationAccuracy,
		nullableJSON(submission.DeviceInfo), submission.IsOfflineSubmission, submission.SyncedAt, submission.DataObjectID,
		submission.CreatedAt, submission.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create submission %s: %w", submission.ClientID, ErrDuplicateClientID)
		}
		return fmt.Errorf("create submission: %w", err)
	}
	submission.ID = id
	return nil
}

// CreateAttachment links a stored object to a submission field.
func (r *SubmissionRepository) CreateAttachment(ctx context.Context, file *models.SubmissionFile) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submission_files (submission_id, object_id, field_name, file_name, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	var id int64
	if err := Executor(ctx, r.db).GetContext(ctx, &id, query,
		file.SubmissionID, file.ObjectID, file.FieldName, file.FileName, file.Description, file.CreatedAt,
	); err != nil {
		return fmt.Errorf("create submission file: %w", err)
	}
	file.ID = id
	return nil
}

// ListAttachments returns the files attached to a submission.
func (r *SubmissionRepository) ListAttachments(ctx context.Context, submissionID int64) ([]models.SubmissionFile, error) {
	const query = `SELECT id, submission_id, object_id, field_name, file_name, description, created_at
	FROM submission_files WHERE submission_id = $1 ORDER BY id`
	var files []models.SubmissionFile
	if err := Executor(ctx, r.db).SelectContext(ctx, &files, query, submissionID); err != nil {
		return nil, fmt.Errorf("list submission files: %w", err)
	}
	return files, nil
}

// UpdateStatus applies a status patch guarded by the expected current status.
// It returns sql.ErrNoRows when the row is missing or has moved on.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, patch *models.SubmissionStatusPatch) error {
	const query = `UPDATE submissions SET
		status = :to_status,
		submitted_at = COALESCE(:submitted_at, submitted_at),
		verified_by = COALESCE(:verified_by, verified_by),
		verified_at = COALESCE(:verified_at, verified_at),
		verification_notes = COALESCE(:verification_notes, verification_notes),
		updated_at = :updated_at
	WHERE id = :id AND status = :from_status`
	res, err := Executor(ctx, r.db).NamedExecContext(ctx, query, patch)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

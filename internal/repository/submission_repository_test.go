package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync-api/internal/models"
)

var submissionRowColumns = []string{"id", "client_id", "form_template_id", "form_template_version_id", "submitted_by", "status", "submitted_at",
	"latitude", "longitude", "location_accuracy", "device_info", "is_offline_submission", "synced_at", "data_object_id",
	"verified_by", "verified_at", "verification_notes", "created_at", "updated_at"}

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	objectID := int64(9)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO submissions")).
		WithArgs("a1", int64(5), int64(11), "user-1", models.SubmissionStatusDraft, nil, nil, nil, nil,
			[]byte(`{"os":"android"}`), true, sqlmock.AnyArg(), &objectID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))

	submission := &models.Submission{
		ClientID:              "a1",
		FormTemplateID:        5,
		FormTemplateVersionID: 11,
		SubmittedBy:           "user-1",
		Status:                models.SubmissionStatusDraft,
		DeviceInfo:            json.RawMessage(`{"os":"android"}`),
		IsOfflineSubmission:   true,
		SyncedAt:              &now,
		DataObjectID:          &objectID,
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.Equal(t, int64(100), submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "submissions_client_id_key"})

	err := repo.Create(context.Background(), &models.Submission{ClientID: "a1", Status: models.SubmissionStatusSubmitted})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateClientID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryFindByClientID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows(submissionRowColumns).
		AddRow(100, "a1", 5, 11, "user-1", "submitted", time.Now(), 1.5, 2.5, nil, []byte(`{}`), true, time.Now(), 9, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE client_id = $1")).
		WithArgs("a1").
		WillReturnRows(rows)

	found, err := repo.FindByClientID(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, int64(100), found.ID)
	require.Equal(t, models.SubmissionStatusSubmitted, found.Status)
	require.NotNil(t, found.Latitude)
	require.Nil(t, found.LocationAccuracy)

	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE client_id = $1")).
		WithArgs("zz").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByClientID(context.Background(), "zz")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateAttachmentAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO submission_files")).
		WithArgs(int64(100), int64(9), "photo", "house.jpg", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	file := &models.SubmissionFile{SubmissionID: 100, ObjectID: 9, FieldName: "photo", FileName: "house.jpg"}
	require.NoError(t, repo.CreateAttachment(context.Background(), file))
	require.Equal(t, int64(1), file.ID)

	rows := sqlmock.NewRows([]string{"id", "submission_id", "object_id", "field_name", "file_name", "description", "created_at"}).
		AddRow(1, 100, 9, "photo", "house.jpg", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM submission_files WHERE submission_id = $1")).
		WithArgs(int64(100)).
		WillReturnRows(rows)
	files, err := repo.ListAttachments(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now()
	patch := &models.SubmissionStatusPatch{
		ID:          100,
		From:        models.SubmissionStatusDraft,
		To:          models.SubmissionStatusSubmitted,
		SubmittedAt: &now,
		UpdatedAt:   now,
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), patch))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdateStatus(context.Background(), patch), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

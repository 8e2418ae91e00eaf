package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/models"
	"github.com/noah-isme/fieldsync-api/internal/repository"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/logger"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

type submissionStore interface {
	FindByClientID(ctx context.Context, clientID string) (*models.Submission, error)
	GetByID(ctx context.Context, id int64) (*models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	CreateAttachment(ctx context.Context, file *models.SubmissionFile) error
	ListAttachments(ctx context.Context, submissionID int64) ([]models.SubmissionFile, error)
	UpdateStatus(ctx context.Context, patch *models.SubmissionStatusPatch) error
}

type objectLedger interface {
	Upsert(ctx context.Context, record *models.ObjectRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ObjectRecord, error)
	FindByKey(ctx context.Context, bucket, key string) (*models.ObjectRecord, error)
}

type payloadStore interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*storage.ObjectInfo, error)
}

type versionResolver interface {
	ResolveVersion(ctx context.Context, templateID int64, version int) (*models.FormTemplateVersion, error)
}

type unitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type syncRecorder interface {
	Record(ctx context.Context, item SyncAttempt, outcome SyncOutcome) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const payloadContentType = "application/json"

// SubmissionServiceConfig tunes ingestion rules.
type SubmissionServiceConfig struct {
	// AllowReviewStatusOnSync lets devices sync items already marked verified or rejected.
	AllowReviewStatusOnSync bool
	MaxBatchItems           int
}

// SubmissionServiceParams groups the collaborators of SubmissionService.
type SubmissionServiceParams struct {
	UnitOfWork  unitOfWork
	Submissions submissionStore
	Objects     objectLedger
	Store       payloadStore
	Catalog     versionResolver
	Audit       auditLogger
	Tracker     syncRecorder
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      SubmissionServiceConfig
	Clock       func() time.Time
}

// SubmissionService ingests client submissions: payload to the object store,
// metadata to the database, one unit of work per item.
type SubmissionService struct {
	uow         unitOfWork
	submissions submissionStore
	objects     objectLedger
	store       payloadStore
	catalog     versionResolver
	audit       auditLogger
	tracker     syncRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionServiceConfig
	now         func() time.Time
}

// NewSubmissionService constructs the ingestion engine.
func NewSubmissionService(p SubmissionServiceParams) *SubmissionService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &SubmissionService{
		uow:         p.UnitOfWork,
		submissions: p.Submissions,
		objects:     p.Objects,
		store:       p.Store,
		catalog:     p.Catalog,
		audit:       p.Audit,
		tracker:     p.Tracker,
		metrics:     p.Metrics,
		validator:   p.Validator,
		logger:      p.Logger,
		cfg:         p.Config,
		now:         p.Clock,
	}
}

type ingestRequest struct {
	item        dto.SubmissionItem
	actor       models.Identity
	deviceID    string
	action      string
	offline     bool
	allowReview bool
}

type ingestResult struct {
	submission *models.Submission
	skipped    bool
}

// SyncBatch ingests items in input order. Per-item failures are reported in
// the results and never abort the rest of the batch.
func (s *SubmissionService) SyncBatch(ctx context.Context, actor models.Identity, deviceID string, items []dto.SubmissionItem) (*dto.SyncBatchResponse, error) {
	if deviceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "device id is required")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submissions must not be empty")
	}
	if s.cfg.MaxBatchItems > 0 && len(items) > s.cfg.MaxBatchItems {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds %d items", s.cfg.MaxBatchItems))
	}

	start := time.Now()
	log := logger.FromContext(ctx, s.logger).With(zap.String("device_id", deviceID), zap.String("user_id", actor.UserID))
	resp := &dto.SyncBatchResponse{Results: make([]dto.SyncItemResult, 0, len(items))}

	for _, item := range items {
		result := dto.SyncItemResult{ClientID: item.ClientID}
		out, err := s.ingest(ctx, ingestRequest{
			item:        item,
			actor:       actor,
			deviceID:    deviceID,
			action:      models.AuditActionSubmissionSync,
			offline:     true,
			allowReview: s.cfg.AllowReviewStatusOnSync,
		})
		switch {
		case err != nil:
			result.Status = dto.SyncItemError
			result.Message = itemMessage(err)
			resp.ErrorCount++
			log.Warn("sync item failed", zap.String("client_id", item.ClientID), zap.Error(err))
		case out.skipped:
			id := out.submission.ID
			result.Status = dto.SyncItemSkipped
			result.Message = "already synced"
			result.ServerID = &id
			resp.SkippedCount++
		default:
			id := out.submission.ID
			result.Status = dto.SyncItemSuccess
			result.ServerID = &id
			resp.SyncedCount++
		}
		s.metrics.RecordSyncItem(string(result.Status))
		resp.Results = append(resp.Results, result)
	}

	s.metrics.ObserveSyncBatch(len(items), time.Since(start))
	log.Info("sync batch processed",
		zap.Int("items", len(items)),
		zap.Int("synced", resp.SyncedCount),
		zap.Int("skipped", resp.SkippedCount),
		zap.Int("errors", resp.ErrorCount),
	)
	return resp, nil
}

// Create ingests one submission synchronously. A duplicate client id is a
// conflict here rather than a skip. deviceID is optional.
func (s *SubmissionService) Create(ctx context.Context, actor models.Identity, deviceID string, req dto.CreateSubmissionRequest) (*dto.SubmissionResponse, error) {
	if req.Status == "" {
		req.Status = models.SubmissionStatusSubmitted
	}
	if req.Status != models.SubmissionStatusDraft && req.Status != models.SubmissionStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be draft or submitted")
	}
	out, err := s.ingest(ctx, ingestRequest{
		item:     req.SubmissionItem,
		actor:    actor,
		deviceID: deviceID,
		action:   models.AuditActionSubmissionCreate,
	})
	if err != nil {
		return nil, err
	}
	if out.skipped {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("submission %s already exists", req.ClientID))
	}
	return &dto.SubmissionResponse{
		ServerID:    out.submission.ID,
		ClientID:    out.submission.ClientID,
		Status:      out.submission.Status,
		SubmittedAt: out.submission.SubmittedAt,
	}, nil
}

// Get returns a submission with its attachments.
func (s *SubmissionService) Get(ctx context.Context, id int64) (*dto.SubmissionDetail, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	files, err := s.submissions.ListAttachments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission files")
	}
	if files == nil {
		files = []models.SubmissionFile{}
	}
	return &dto.SubmissionDetail{Submission: *submission, Files: files}, nil
}

// UpdateStatus moves a submission one step forward: draft to submitted, or
// submitted to verified/rejected. submitted_at is set only on the first move.
func (s *SubmissionService) UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateSubmissionStatusRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if req.Status.IsReview() && !actor.HasPermission(models.PermissionSubmissionReview) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reviewing submissions requires review permission")
	}

	current, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !current.Status.CanTransition(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move submission from %s to %s", current.Status, req.Status))
	}

	now := s.now().UTC()
	patch := &models.SubmissionStatusPatch{
		ID:        id,
		From:      current.Status,
		To:        req.Status,
		UpdatedAt: now,
	}
	if req.Status == models.SubmissionStatusSubmitted {
		patch.SubmittedAt = &now
	}
	if req.Status.IsReview() {
		reviewer := actor.UserID
		patch.VerifiedBy = &reviewer
		patch.VerifiedAt = &now
		patch.VerificationNotes = req.Notes
	}

	err = s.uow.Do(ctx, func(txCtx context.Context) error {
		if err := s.submissions.UpdateStatus(txCtx, patch); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "submission status changed concurrently")
			}
			return err
		}
		oldValues, _ := json.Marshal(map[string]interface{}{"status": current.Status})
		newValues, _ := json.Marshal(map[string]interface{}{"status": req.Status, "notes": req.Notes})
		return s.audit.CreateAuditLog(txCtx, s.auditEntry(actor, models.AuditActionSubmissionStatus, id, oldValues, newValues))
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission status")
	}

	updated, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload submission")
	}
	return updated, nil
}

func (s *SubmissionService) ingest(ctx context.Context, req ingestRequest) (*ingestResult, error) {
	item := req.item
	if err := s.validator.Var(item.ClientID, "required,max=100"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client id")
	}

	// A retransmitted item is skipped even if the rest of it no longer validates.
	existing, err := s.submissions.FindByClientID(ctx, item.ClientID)
	switch {
	case err == nil:
		return &ingestResult{submission: existing, skipped: true}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check client id")
	}

	if err := s.validator.Struct(item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission item")
	}

	if item.Status == "" {
		item.Status = models.SubmissionStatusSubmitted
	}
	if !item.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", item.Status))
	}
	if item.Status.IsReview() && !req.allowReview {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be draft or submitted")
	}
	payload := bytes.TrimSpace(item.Data)
	if len(payload) == 0 || payload[0] != '{' || !json.Valid(payload) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "data must be a JSON object")
	}

	version, err := s.catalog.ResolveVersion(ctx, item.TemplateID, item.TemplateVersion)
	if err != nil {
		return nil, err
	}

	attempt := SyncAttempt{UserID: req.actor.UserID, DeviceID: req.deviceID, ClientID: item.ClientID}
	offline := req.offline
	if item.IsOfflineSubmission != nil {
		offline = *item.IsOfflineSubmission
	}

	var created *models.Submission
	err = s.uow.Do(ctx, func(txCtx context.Context) error {
		key := payloadKey(item.TemplateID, item.ClientID)
		info, err := s.store.Put(txCtx, key, bytes.NewReader(payload), int64(len(payload)), payloadContentType)
		if err != nil {
			return appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to store submission payload")
		}

		record := &models.ObjectRecord{
			Bucket:      s.store.Bucket(),
			ObjectKey:   key,
			ContentType: payloadContentType,
			SizeBytes:   int64(len(payload)),
			VersionID:   optionalString(info.VersionID),
			ETag:        optionalString(info.ETag),
			CreatedBy:   req.actor.UserID,
		}
		objectID, err := s.objects.Upsert(txCtx, record)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		submission := &models.Submission{
			ClientID:              item.ClientID,
			FormTemplateID:        item.TemplateID,
			FormTemplateVersionID: version.ID,
			SubmittedBy:           req.actor.UserID,
			Status:                item.Status,
			DeviceInfo:            item.DeviceInfo,
			IsOfflineSubmission:   offline,
			DataObjectID:          &objectID,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if item.Status != models.SubmissionStatusDraft {
			submission.SubmittedAt = &now
		}
		if req.offline {
			submission.SyncedAt = &now
		}
		if geo := item.Geolocation; geo != nil {
			lat, lng := geo.Latitude, geo.Longitude
			submission.Latitude = &lat
			submission.Longitude = &lng
			submission.LocationAccuracy = geo.Accuracy
		}
		if err := s.submissions.Create(txCtx, submission); err != nil {
			return err
		}

		for _, att := range item.Attachments {
			if att.ObjectID == nil {
				continue
			}
			file := &models.SubmissionFile{
				SubmissionID: submission.ID,
				ObjectID:     *att.ObjectID,
				FieldName:    att.FieldName,
				FileName:     att.FileName,
				Description:  att.Description,
				CreatedAt:    now,
			}
			if err := s.submissions.CreateAttachment(txCtx, file); err != nil {
				return err
			}
		}

		newValues, _ := json.Marshal(map[string]interface{}{
			"clientId":        item.ClientID,
			"templateId":      item.TemplateID,
			"templateVersion": item.TemplateVersion,
			"status":          item.Status,
			"deviceId":        req.deviceID,
			"dataObjectId":    objectID,
		})
		if err := s.audit.CreateAuditLog(txCtx, s.auditEntry(req.actor, req.action, submission.ID, nil, newValues)); err != nil {
			return err
		}

		if req.deviceID != "" {
			if err := s.tracker.Record(txCtx, attempt, Completed(submission.ID)); err != nil {
				return err
			}
		}
		created = submission
		return nil
	})
	if err == nil {
		return &ingestResult{submission: created}, nil
	}

	if errors.Is(err, repository.ErrDuplicateClientID) {
		winner, lookupErr := s.submissions.FindByClientID(ctx, item.ClientID)
		if lookupErr == nil {
			return &ingestResult{submission: winner, skipped: true}, nil
		}
		err = errors.Join(err, lookupErr)
	}

	if req.deviceID != "" {
		// The failed entry outlives the request so a dropped client still leaves a trace.
		if recErr := s.tracker.Record(context.WithoutCancel(ctx), attempt, Failed(err.Error())); recErr != nil {
			logger.FromContext(ctx, s.logger).Error("failed to record sync failure",
				zap.String("client_id", item.ClientID), zap.Error(recErr))
		}
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return nil, err
	}
	return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, "failed to persist submission")
}

func (s *SubmissionService) auditEntry(actor models.Identity, action string, submissionID int64, oldValues, newValues []byte) *models.AuditLog {
	userID := actor.UserID
	resourceID := strconv.FormatInt(submissionID, 10)
	return &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.AuditResourceSubmission,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
}

// itemMessage keeps validator detail but hides infrastructure causes.
func itemMessage(err error) string {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrValidation.Code {
		return appErr.Error()
	}
	return appErr.Message
}

func payloadKey(templateID int64, clientID string) string {
	return fmt.Sprintf("submissions/%d/%s.json", templateID, url.PathEscape(clientID))
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

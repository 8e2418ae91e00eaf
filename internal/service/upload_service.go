package service

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/logger"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

// Upload lifecycle states reported to metrics.
const (
	UploadStateInitiated = "initiated"
	UploadStateCompleted = "completed"
	UploadStateAborted   = "aborted"
	UploadStateFailed    = "failed"
)

type uploadCatalog interface {
	TemplateExists(ctx context.Context, templateID int64) (bool, error)
	ProjectExists(ctx context.Context, projectID int64) (bool, error)
}

type submissionLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Submission, error)
}

// UploadServiceConfig holds signed URL lifetimes.
type UploadServiceConfig struct {
	PartURLTTL     time.Duration
	DownloadURLTTL time.Duration
}

// UploadService coordinates direct-to-store multipart uploads. The ledger row
// is written only once the store has assembled every part.
type UploadService struct {
	store       storage.ObjectStore
	objects     objectLedger
	submissions submissionLookup
	catalog     uploadCatalog
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         UploadServiceConfig
	now         func() time.Time
	newID       func() string
}

// NewUploadService constructs the coordinator.
func NewUploadService(store storage.ObjectStore, objects objectLedger, submissions submissionLookup, catalog uploadCatalog, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PartURLTTL <= 0 {
		cfg.PartURLTTL = time.Hour
	}
	if cfg.DownloadURLTTL <= 0 {
		cfg.DownloadURLTTL = 15 * time.Minute
	}
	return &UploadService{
		store:       store,
		objects:     objects,
		submissions: submissions,
		catalog:     catalog,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Initiate opens a multipart upload and signs one URL per part.
func (s *UploadService) Initiate(ctx context.Context, actor models.Identity, req dto.InitiateUploadRequest) (*dto.InitiateUploadResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	namespace, err := s.resolveNamespace(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	key := s.objectKey(namespace, req.FileName)
	uploadID, err := s.store.CreateMultipartUpload(ctx, key, req.ContentType)
	if err != nil {
		s.metrics.RecordUploadState(UploadStateFailed)
		return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to open multipart upload")
	}

	urls := make([]models.UploadPartURL, 0, req.Parts)
	for i := 1; i <= req.Parts; i++ {
		part := int32(i)
		url, err := s.store.PresignUploadPart(ctx, key, uploadID, part, s.cfg.PartURLTTL)
		if err != nil {
			_ = s.store.AbortMultipartUpload(ctx, key, uploadID)
			s.metrics.RecordUploadState(UploadStateFailed)
			return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to sign upload part")
		}
		urls = append(urls, models.UploadPartURL{PartNumber: part, URL: url})
	}

	s.metrics.RecordUploadState(UploadStateInitiated)
	logger.FromContext(ctx, s.logger).Info("multipart upload initiated",
		zap.String("key", key), zap.Int("parts", req.Parts), zap.String("user_id", actor.UserID))

	return &dto.InitiateUploadResponse{
		UploadID:  uploadID,
		Key:       key,
		PartURLs:  urls,
		ExpiresAt: s.now().UTC().Add(s.cfg.PartURLTTL),
	}, nil
}

// Complete asks the store to assemble the parts and registers the result.
func (s *UploadService) Complete(ctx context.Context, actor models.Identity, req dto.CompleteUploadRequest) (*dto.CompleteUploadResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	parts := make([]storage.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, storage.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	info, err := s.store.CompleteMultipartUpload(ctx, req.Key, req.UploadID, parts)
	if err != nil {
		if errors.Is(err, storage.ErrUploadNotFound) {
			// A client retrying after a lost response finds the upload closed
			// but the object already registered.
			if resp, ok := s.completedEarlier(ctx, req.Key); ok {
				return resp, nil
			}
		}
		s.metrics.RecordUploadState(UploadStateFailed)
		switch {
		case errors.Is(err, storage.ErrInvalidPart):
			return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "uploaded parts do not match")
		case errors.Is(err, storage.ErrUploadNotFound):
			return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "upload is not open")
		}
		return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to complete multipart upload")
	}

	head, err := s.store.Head(ctx, req.Key)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to inspect uploaded object")
	}
	contentType := head.ContentType
	if contentType == "" {
		contentType = req.ContentType
	}
	etag := head.ETag
	if etag == "" && info != nil {
		etag = info.ETag
	}
	versionID := head.VersionID
	if versionID == "" && info != nil {
		versionID = info.VersionID
	}

	record := &models.ObjectRecord{
		Bucket:      s.store.Bucket(),
		ObjectKey:   req.Key,
		ContentType: contentType,
		SizeBytes:   head.Size,
		VersionID:   optionalString(versionID),
		ETag:        optionalString(etag),
		CreatedBy:   actor.UserID,
	}
	objectID, err := s.objects.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register uploaded object")
	}

	url, err := s.store.PresignGet(ctx, req.Key, s.cfg.DownloadURLTTL)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to sign download url")
	}

	s.metrics.RecordUploadState(UploadStateCompleted)
	logger.FromContext(ctx, s.logger).Info("multipart upload completed",
		zap.String("key", req.Key), zap.Int64("object_id", objectID), zap.Int64("size", head.Size))

	return &dto.CompleteUploadResponse{
		ObjectID:    objectID,
		Key:         req.Key,
		SizeBytes:   head.Size,
		DownloadURL: url,
	}, nil
}

func (s *UploadService) completedEarlier(ctx context.Context, key string) (*dto.CompleteUploadResponse, bool) {
	record, err := s.objects.FindByKey(ctx, s.store.Bucket(), key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.FromContext(ctx, s.logger).Warn("ledger lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	url, err := s.store.PresignGet(ctx, record.ObjectKey, s.cfg.DownloadURLTTL)
	if err != nil {
		return nil, false
	}
	return &dto.CompleteUploadResponse{
		ObjectID:    record.ID,
		Key:         record.ObjectKey,
		SizeBytes:   record.SizeBytes,
		DownloadURL: url,
	}, true
}

// Abort releases every uploaded part. No ledger row is written.
func (s *UploadService) Abort(ctx context.Context, req dto.AbortUploadRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if err := s.store.AbortMultipartUpload(ctx, req.Key, req.UploadID); err != nil {
		if errors.Is(err, storage.ErrUploadNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to abort multipart upload")
	}
	s.metrics.RecordUploadState(UploadStateAborted)
	logger.FromContext(ctx, s.logger).Info("multipart upload aborted", zap.String("key", req.Key))
	return nil
}

// DownloadURL signs a time-limited GET for a registered object.
func (s *UploadService) DownloadURL(ctx context.Context, objectID int64) (*dto.DownloadURLResponse, error) {
	record, err := s.objects.GetByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "object not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load object")
	}
	url, err := s.store.PresignGet(ctx, record.ObjectKey, s.cfg.DownloadURLTTL)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrStoreFailure, err, "failed to sign download url")
	}
	return &dto.DownloadURLResponse{
		ObjectID:  record.ID,
		URL:       url,
		ExpiresAt: s.now().UTC().Add(s.cfg.DownloadURLTTL),
	}, nil
}

func (s *UploadService) resolveNamespace(ctx context.Context, actor models.Identity, req dto.InitiateUploadRequest) (string, error) {
	scopes := 0
	for _, id := range []*int64{req.SubmissionID, req.FormTemplateID, req.ProjectID} {
		if id != nil {
			scopes++
		}
	}
	if scopes > 1 {
		return "", appErrors.Clone(appErrors.ErrValidation, "only one of submissionId, formTemplateId or projectId may be set")
	}

	switch {
	case req.SubmissionID != nil:
		if _, err := s.submissions.GetByID(ctx, *req.SubmissionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("submission %d not found", *req.SubmissionID))
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
		}
		return scopedNamespace(models.UploadScopeSubmission, strconv.FormatInt(*req.SubmissionID, 10)), nil
	case req.FormTemplateID != nil:
		ok, err := s.catalog.TemplateExists(ctx, *req.FormTemplateID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("form template %d not found", *req.FormTemplateID))
		}
		return scopedNamespace(models.UploadScopeFormTemplate, strconv.FormatInt(*req.FormTemplateID, 10)), nil
	case req.ProjectID != nil:
		ok, err := s.catalog.ProjectExists(ctx, *req.ProjectID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("project %d not found", *req.ProjectID))
		}
		return scopedNamespace(models.UploadScopeProject, strconv.FormatInt(*req.ProjectID, 10)), nil
	}

	if actor.UserID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "user scope requires an authenticated caller")
	}
	return scopedNamespace(models.UploadScopeUser, actor.UserID), nil
}

// objectKey derives {namespace}/{hash(name)}-{random}{ext}.
func (s *UploadService) objectKey(namespace, fileName string) string {
	sum := blake2b.Sum256([]byte(fileName))
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("%s/%s-%s%s", namespace, hex.EncodeToString(sum[:])[:16], s.newID(), ext)
}

func scopedNamespace(scope models.UploadScope, id string) string {
	return string(scope) + "/" + id
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

type syncQueueStore interface {
	Insert(ctx context.Context, entry *models.SyncQueueEntry) error
	ListByStatus(ctx context.Context, userID, deviceID string, status models.SyncStatus, since time.Time, limit int) ([]models.SyncQueueEntry, error)
	LastCompletedAt(ctx context.Context, userID, deviceID string) (*time.Time, error)
}

// SyncAttempt identifies the client item an outcome belongs to.
type SyncAttempt struct {
	UserID   string
	DeviceID string
	ClientID string
}

// SyncOutcome is either Completed or Failed.
type SyncOutcome struct {
	Status   models.SyncStatus
	ServerID *int64
	Reason   string
}

// Completed marks an attempt that produced a server row.
func Completed(serverID int64) SyncOutcome {
	return SyncOutcome{Status: models.SyncStatusCompleted, ServerID: &serverID}
}

// Failed marks an attempt that was rejected or rolled back.
func Failed(reason string) SyncOutcome {
	return SyncOutcome{Status: models.SyncStatusFailed, Reason: reason}
}

// SyncTrackerConfig bounds the status views.
type SyncTrackerConfig struct {
	CompletedWindow time.Duration
	CompletedLimit  int
}

// SyncTracker appends one immutable record per ingestion attempt. It does not
// schedule retries.
type SyncTracker struct {
	repo   syncQueueStore
	logger *zap.Logger
	cfg    SyncTrackerConfig
	now    func() time.Time
}

// NewSyncTracker constructs the tracker.
func NewSyncTracker(repo syncQueueStore, logger *zap.Logger, cfg SyncTrackerConfig) *SyncTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CompletedWindow <= 0 {
		cfg.CompletedWindow = 24 * time.Hour
	}
	if cfg.CompletedLimit <= 0 {
		cfg.CompletedLimit = 50
	}
	return &SyncTracker{repo: repo, logger: logger, cfg: cfg, now: time.Now}
}

// Record inserts the attempt. Inside a unit of work the row shares its
// transaction; otherwise it is written straight to the pool.
func (t *SyncTracker) Record(ctx context.Context, item SyncAttempt, outcome SyncOutcome) error {
	entry := &models.SyncQueueEntry{
		UserID:     item.UserID,
		DeviceID:   item.DeviceID,
		EntityType: models.SyncEntitySubmission,
		Operation:  models.SyncOperationCreate,
		ClientID:   item.ClientID,
		ServerID:   outcome.ServerID,
		Status:     outcome.Status,
		CreatedAt:  t.now().UTC(),
	}
	if outcome.Reason != "" {
		reason := outcome.Reason
		entry.ErrorMessage = &reason
	}
	if err := t.repo.Insert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sync attempt")
	}
	return nil
}

// ListPending returns entries still awaiting processing for the device.
func (t *SyncTracker) ListPending(ctx context.Context, userID, deviceID string) ([]models.SyncQueueEntry, error) {
	entries, err := t.repo.ListByStatus(ctx, userID, deviceID, models.SyncStatusPending, time.Time{}, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending sync items")
	}
	return entries, nil
}

// ListRecentCompleted returns completed entries updated since the given time,
// most recent first, capped at the configured limit.
func (t *SyncTracker) ListRecentCompleted(ctx context.Context, userID, deviceID string, since time.Time) ([]models.SyncQueueEntry, error) {
	entries, err := t.repo.ListByStatus(ctx, userID, deviceID, models.SyncStatusCompleted, since, t.cfg.CompletedLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed sync items")
	}
	return entries, nil
}

// Status assembles the device view: last successful sync, pending items,
// and completed and failed items inside the trailing window.
func (t *SyncTracker) Status(ctx context.Context, userID, deviceID string) (*dto.SyncStatusResponse, error) {
	if deviceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "device id is required")
	}
	since := t.now().UTC().Add(-t.cfg.CompletedWindow)

	last, err := t.repo.LastCompletedAt(ctx, userID, deviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync status")
	}
	pending, err := t.ListPending(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	completed, err := t.ListRecentCompleted(ctx, userID, deviceID, since)
	if err != nil {
		return nil, err
	}
	failed, err := t.repo.ListByStatus(ctx, userID, deviceID, models.SyncStatusFailed, since, t.cfg.CompletedLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list failed sync items")
	}

	return &dto.SyncStatusResponse{
		DeviceID:             deviceID,
		LastSyncAt:           last,
		PendingItems:         toSyncQueueItems(pending),
		RecentCompletedItems: toSyncQueueItems(completed),
		RecentFailedItems:    toSyncQueueItems(failed),
	}, nil
}

func toSyncQueueItems(entries []models.SyncQueueEntry) []dto.SyncQueueItem {
	items := make([]dto.SyncQueueItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.SyncQueueItem{
			ClientID:     e.ClientID,
			EntityType:   e.EntityType,
			Operation:    e.Operation,
			ServerID:     e.ServerID,
			Status:       e.Status,
			ErrorMessage: e.ErrorMessage,
			RetryCount:   e.RetryCount,
			UpdatedAt:    e.UpdatedAt,
		})
	}
	return items
}

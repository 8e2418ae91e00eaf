package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/fieldsync-api/internal/models"
	"github.com/noah-isme/fieldsync-api/internal/repository"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

type txMarker struct{}

// memoryDB is an in-memory relational store whose unit of work restores a
// snapshot when fn fails, mirroring a rolled back transaction.
type memoryDB struct {
	mu          sync.Mutex
	nextID      int64
	submissions map[int64]models.Submission
	files       []models.SubmissionFile
	objects     map[int64]models.ObjectRecord
	audits      []models.AuditLog
	queue       []models.SyncQueueEntry

	auditErr error
	// committed holds rows written by a competing transaction; they survive
	// a rollback of ours.
	committed []models.Submission
	// beforeCreate runs ahead of the client id check in Create, letting tests
	// insert a competing row.
	beforeCreate func(db *memoryDB, s *models.Submission)
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		submissions: make(map[int64]models.Submission),
		objects:     make(map[int64]models.ObjectRecord),
	}
}

type memorySnapshot struct {
	nextID      int64
	submissions map[int64]models.Submission
	files       []models.SubmissionFile
	objects     map[int64]models.ObjectRecord
	audits      []models.AuditLog
	queue       []models.SyncQueueEntry
}

func (db *memoryDB) snapshot() memorySnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := memorySnapshot{
		nextID:      db.nextID,
		submissions: make(map[int64]models.Submission, len(db.submissions)),
		files:       append([]models.SubmissionFile(nil), db.files...),
		objects:     make(map[int64]models.ObjectRecord, len(db.objects)),
		audits:      append([]models.AuditLog(nil), db.audits...),
		queue:       append([]models.SyncQueueEntry(nil), db.queue...),
	}
	for k, v := range db.submissions {
		snap.submissions[k] = v
	}
	for k, v := range db.objects {
		snap.objects[k] = v
	}
	return snap
}

func (db *memoryDB) restore(snap memorySnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = snap.nextID
	db.submissions = snap.submissions
	db.files = snap.files
	db.objects = snap.objects
	db.audits = snap.audits
	db.queue = snap.queue
	for _, s := range db.committed {
		db.submissions[s.ID] = s
	}
}

func (db *memoryDB) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return repository.ErrNestedUnitOfWork
	}
	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memoryDB) id() int64 {
	db.nextID++
	return db.nextID
}

// submissionStore

func (db *memoryDB) FindByClientID(_ context.Context, clientID string) (*models.Submission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, s := range db.submissions {
		if s.ClientID == clientID {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (db *memoryDB) GetByID(_ context.Context, id int64) (*models.Submission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (db *memoryDB) Create(_ context.Context, submission *models.Submission) error {
	if db.beforeCreate != nil {
		hook := db.beforeCreate
		db.beforeCreate = nil
		hook(db, submission)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, s := range db.submissions {
		if s.ClientID == submission.ClientID {
			return repository.ErrDuplicateClientID
		}
	}
	submission.ID = db.id()
	db.submissions[submission.ID] = *submission
	return nil
}

func (db *memoryDB) CreateAttachment(_ context.Context, file *models.SubmissionFile) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	file.ID = db.id()
	db.files = append(db.files, *file)
	return nil
}

func (db *memoryDB) ListAttachments(_ context.Context, submissionID int64) ([]models.SubmissionFile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.SubmissionFile
	for _, f := range db.files {
		if f.SubmissionID == submissionID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (db *memoryDB) UpdateStatus(_ context.Context, patch *models.SubmissionStatusPatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.submissions[patch.ID]
	if !ok || s.Status != patch.From {
		return sql.ErrNoRows
	}
	s.Status = patch.To
	if patch.SubmittedAt != nil {
		s.SubmittedAt = patch.SubmittedAt
	}
	if patch.VerifiedBy != nil {
		s.VerifiedBy = patch.VerifiedBy
	}
	if patch.VerifiedAt != nil {
		s.VerifiedAt = patch.VerifiedAt
	}
	if patch.VerificationNotes != nil {
		s.VerificationNotes = patch.VerificationNotes
	}
	s.UpdatedAt = patch.UpdatedAt
	db.submissions[patch.ID] = s
	return nil
}

// objectLedger

type memoryObjects struct{ db *memoryDB }

func (o memoryObjects) Upsert(_ context.Context, record *models.ObjectRecord) (int64, error) {
	db := o.db
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, existing := range db.objects {
		if existing.Bucket == record.Bucket && existing.ObjectKey == record.ObjectKey {
			record.ID = id
			db.objects[id] = *record
			return id, nil
		}
	}
	record.ID = db.id()
	record.KeyHash = storage.KeyHash(record.ObjectKey)
	db.objects[record.ID] = *record
	return record.ID, nil
}

func (o memoryObjects) GetByID(_ context.Context, id int64) (*models.ObjectRecord, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	r, ok := o.db.objects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (o memoryObjects) FindByKey(_ context.Context, bucket, key string) (*models.ObjectRecord, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	for _, r := range o.db.objects {
		if r.Bucket == bucket && r.ObjectKey == key {
			found := r
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

// auditLogger

func (db *memoryDB) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if db.auditErr != nil {
		return db.auditErr
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.audits = append(db.audits, *log)
	return nil
}

// syncQueueStore

type memoryQueue struct{ db *memoryDB }

func (q memoryQueue) Insert(_ context.Context, entry *models.SyncQueueEntry) error {
	db := q.db
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range db.queue {
		if e.UserID == entry.UserID && e.DeviceID == entry.DeviceID && e.ClientID == entry.ClientID {
			entry.RetryCount++
		}
	}
	entry.ID = db.id()
	entry.UpdatedAt = entry.CreatedAt
	db.queue = append(db.queue, *entry)
	return nil
}

func (q memoryQueue) ListByStatus(_ context.Context, userID, deviceID string, status models.SyncStatus, since time.Time, limit int) ([]models.SyncQueueEntry, error) {
	db := q.db
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.SyncQueueEntry
	for _, e := range db.queue {
		if e.UserID != userID || e.DeviceID != deviceID || e.Status != status {
			continue
		}
		if !since.IsZero() && e.UpdatedAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q memoryQueue) LastCompletedAt(ctx context.Context, userID, deviceID string) (*time.Time, error) {
	entries, _ := q.ListByStatus(ctx, userID, deviceID, models.SyncStatusCompleted, time.Time{}, 1)
	if len(entries) == 0 {
		return nil, nil
	}
	at := entries[0].UpdatedAt
	return &at, nil
}

func (db *memoryDB) queueFor(clientID string) []models.SyncQueueEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.SyncQueueEntry
	for _, e := range db.queue {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out
}

// catalogRepository

type memoryCatalog struct {
	templates    map[int64][]int
	projects     map[int64]bool
	versionCalls int
}

func (c *memoryCatalog) TemplateExists(_ context.Context, templateID int64) (bool, error) {
	_, ok := c.templates[templateID]
	return ok, nil
}

func (c *memoryCatalog) FindVersion(_ context.Context, templateID int64, version int) (*models.FormTemplateVersion, error) {
	c.versionCalls++
	for _, v := range c.templates[templateID] {
		if v == version {
			return &models.FormTemplateVersion{ID: templateID*100 + int64(v), FormTemplateID: templateID, Version: v}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *memoryCatalog) ProjectExists(_ context.Context, projectID int64) (bool, error) {
	return c.projects[projectID], nil
}

// CacheRepository

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.items == nil {
		m.items = make(map[string][]byte)
	}
	m.items[key] = raw
	return nil
}

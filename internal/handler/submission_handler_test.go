package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
)

type submissionServiceMock struct {
	createErr    error
	lastDevice   string
	lastID       int64
	lastStatus   dto.UpdateSubmissionStatusRequest
	getErr       error
	updateCalled bool
}

func (m *submissionServiceMock) Create(ctx context.Context, actor models.Identity, deviceID string, req dto.CreateSubmissionRequest) (*dto.SubmissionResponse, error) {
	m.lastDevice = deviceID
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.SubmissionResponse{ServerID: 1, ClientID: req.ClientID, Status: models.SubmissionStatusSubmitted}, nil
}

func (m *submissionServiceMock) Get(ctx context.Context, id int64) (*dto.SubmissionDetail, error) {
	m.lastID = id
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &dto.SubmissionDetail{Submission: models.Submission{ID: id}}, nil
}

func (m *submissionServiceMock) UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateSubmissionStatusRequest) (*models.Submission, error) {
	m.updateCalled = true
	m.lastID = id
	m.lastStatus = req
	return &models.Submission{ID: id, Status: req.Status}, nil
}

func TestSubmissionHandlerCreate(t *testing.T) {
	svc := &submissionServiceMock{}
	h := NewSubmissionHandler(svc)

	c, w := newTestContext(http.MethodPost, "/submissions", `{"clientId":"c1","templateId":5,"templateVersion":1,"data":{}}`)
	c.Request.Header.Set("X-Device-ID", "dev-1")
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "dev-1", svc.lastDevice)

	svc.createErr = appErrors.Clone(appErrors.ErrConflict, "submission c1 already exists")
	c, w = newTestContext(http.MethodPost, "/submissions", `{"clientId":"c1","templateId":5,"templateVersion":1,"data":{}}`)
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerGet(t *testing.T) {
	svc := &submissionServiceMock{}
	h := NewSubmissionHandler(svc)

	c, w := newTestContext(http.MethodGet, "/submissions/42", "")
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), svc.lastID)

	c, w = newTestContext(http.MethodGet, "/submissions/abc", "")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.getErr = appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	c, w = newTestContext(http.MethodGet, "/submissions/7", "")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionHandlerUpdateStatus(t *testing.T) {
	svc := &submissionServiceMock{}
	h := NewSubmissionHandler(svc)

	c, w := newTestContext(http.MethodPatch, "/submissions/3/status", `{"status":"verified","notes":"ok"}`)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubmissionStatusVerified, svc.lastStatus.Status)
	require.NotNil(t, svc.lastStatus.Notes)
	assert.Equal(t, "ok", *svc.lastStatus.Notes)

	svc.updateCalled = false
	c, w = newTestContext(http.MethodPatch, "/submissions/3/status", `{"status":`)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.UpdateStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.updateCalled)
}

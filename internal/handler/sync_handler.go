package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/response"
)

type syncService interface {
	SyncBatch(ctx context.Context, actor models.Identity, deviceID string, items []dto.SubmissionItem) (*dto.SyncBatchResponse, error)
}

type syncStatusService interface {
	Status(ctx context.Context, userID, deviceID string) (*dto.SyncStatusResponse, error)
}

// SyncHandler exposes the offline synchronisation endpoints.
type SyncHandler struct {
	service syncService
	status  syncStatusService
}

// NewSyncHandler builds a new handler.
func NewSyncHandler(service syncService, status syncStatusService) *SyncHandler {
	return &SyncHandler{service: service, status: status}
}

// SyncSubmissions godoc
// @Summary Upload a batch of offline submissions
// @Description Items are processed in order; per-item failures are reported in the results.
// @Tags Sync
// @Accept json
// @Produce json
// @Param X-Device-ID header string false "Device identifier (overridden by deviceId in the body)"
// @Param payload body dto.SyncBatchRequest true "Sync batch"
// @Success 200 {object} response.Envelope{data=dto.SyncBatchResponse}
// @Failure 400 {object} response.Envelope
// @Router /sync/submissions [post]
func (h *SyncHandler) SyncSubmissions(c *gin.Context) {
	var req dto.SyncBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = strings.TrimSpace(c.GetHeader(deviceIDHeader))
	}

	result, err := h.service.SyncBatch(c.Request.Context(), identityFromContext(c), deviceID, req.Submissions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Status godoc
// @Summary Get sync status for a device
// @Tags Sync
// @Produce json
// @Param deviceId query string false "Device identifier (falls back to X-Device-ID)"
// @Success 200 {object} response.Envelope{data=dto.SyncStatusResponse}
// @Failure 400 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Query("deviceId"))
	if deviceID == "" {
		deviceID = strings.TrimSpace(c.GetHeader(deviceIDHeader))
	}
	status, err := h.status.Status(c.Request.Context(), identityFromContext(c).UserID, deviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

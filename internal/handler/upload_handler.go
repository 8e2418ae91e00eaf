package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync-api/internal/dto"
	"github.com/noah-isme/fieldsync-api/internal/middleware"
	"github.com/noah-isme/fieldsync-api/internal/models"
	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/response"
)

type uploadService interface {
	Initiate(ctx context.Context, actor models.Identity, req dto.InitiateUploadRequest) (*dto.InitiateUploadResponse, error)
	Complete(ctx context.Context, actor models.Identity, req dto.CompleteUploadRequest) (*dto.CompleteUploadResponse, error)
	Abort(ctx context.Context, req dto.AbortUploadRequest) error
	DownloadURL(ctx context.Context, objectID int64) (*dto.DownloadURLResponse, error)
}

// UploadHandler exposes the multipart upload lifecycle.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler builds a new handler.
func NewUploadHandler(service uploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Initiate godoc
// @Summary Open a multipart upload
// @Tags Uploads
// @Accept json
// @Produce json
// @Param payload body dto.InitiateUploadRequest true "Upload request"
// @Success 201 {object} response.Envelope{data=dto.InitiateUploadResponse}
// @Router /uploads/multipart [post]
func (h *UploadHandler) Initiate(c *gin.Context) {
	var req dto.InitiateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}
	resp, err := h.service.Initiate(c.Request.Context(), identityFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, resp.Key)
	response.Created(c, resp)
}

// Complete godoc
// @Summary Complete a multipart upload
// @Tags Uploads
// @Accept json
// @Produce json
// @Param payload body dto.CompleteUploadRequest true "Uploaded parts"
// @Success 200 {object} response.Envelope{data=dto.CompleteUploadResponse}
// @Failure 502 {object} response.Envelope
// @Router /uploads/multipart/complete [post]
func (h *UploadHandler) Complete(c *gin.Context) {
	var req dto.CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}
	resp, err := h.service.Complete(c.Request.Context(), identityFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, strconv.FormatInt(resp.ObjectID, 10))
	response.JSON(c, http.StatusOK, resp)
}

// Abort godoc
// @Summary Abort a multipart upload
// @Tags Uploads
// @Accept json
// @Param payload body dto.AbortUploadRequest true "Upload handle"
// @Success 204
// @Router /uploads/multipart/abort [post]
func (h *UploadHandler) Abort(c *gin.Context) {
	var req dto.AbortUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}
	if err := h.service.Abort(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, req.Key)
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Get a signed download URL for a stored object
// @Tags Uploads
// @Produce json
// @Param id path int true "Object ID"
// @Success 200 {object} response.Envelope{data=dto.DownloadURLResponse}
// @Router /objects/{id}/download-url [get]
func (h *UploadHandler) DownloadURL(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.service.DownloadURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

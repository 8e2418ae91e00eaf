package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/fieldsync-api/pkg/errors"
	"github.com/noah-isme/fieldsync-api/pkg/logger"
	"github.com/noah-isme/fieldsync-api/pkg/response"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

type signedObjectStore interface {
	Accept(ctx context.Context, token, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, token string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// StorageHandler serves signed URLs issued by the local object store. It is
// mounted only when the filesystem backend is active.
type StorageHandler struct {
	store   signedObjectStore
	maxBody int64
}

// NewStorageHandler builds a new handler. maxBody caps a single request body.
func NewStorageHandler(store signedObjectStore, maxBody int64) *StorageHandler {
	return &StorageHandler{store: store, maxBody: maxBody}
}

// Upload godoc
// @Summary Upload an object or part against a signed token
// @Tags Storage
// @Accept octet-stream
// @Param token query string true "Signed token"
// @Success 200 "ETag header carries the stored checksum"
// @Failure 403 {object} response.Envelope
// @Router /storage/objects [put]
func (h *StorageHandler) Upload(c *gin.Context) {
	body := io.Reader(c.Request.Body)
	if h.maxBody > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	etag, err := h.store.Accept(c.Request.Context(), c.Query("token"), c.ContentType(), body)
	if err != nil {
		response.Error(c, storageError(c, err))
		return
	}
	c.Header("ETag", strconv.Quote(etag))
	c.Status(http.StatusOK)
}

// Download godoc
// @Summary Download an object against a signed token
// @Tags Storage
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /storage/objects [get]
func (h *StorageHandler) Download(c *gin.Context) {
	body, info, err := h.store.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, storageError(c, err))
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if info.ETag != "" {
		c.Header("ETag", strconv.Quote(info.ETag))
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, nil)
}

func storageError(c *gin.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidToken):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired storage token")
	case errors.Is(err, storage.ErrObjectNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "object not found")
	case errors.Is(err, storage.ErrUploadNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "upload not found")
	case errors.Is(err, storage.ErrInvalidPart):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload part")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return appErrors.Clone(appErrors.ErrValidation, "request body too large")
	}
	logger.FromContext(c.Request.Context(), nil).Error("local storage request failed", zap.Error(err))
	return appErrors.WrapAs(appErrors.ErrStoreFailure, err, "")
}

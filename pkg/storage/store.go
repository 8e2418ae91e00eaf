package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Sentinel errors shared by every backend.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadNotFound = errors.New("multipart upload not found")
	ErrInvalidPart    = errors.New("invalid multipart part list")
)

// ObjectInfo describes one stored object as reported by the backend.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	VersionID   string
}

// CompletedPart is one uploaded part of a multipart upload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// ObjectStore is the durable blob store used for submission payloads and files.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*ObjectInfo, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

// Exists reports whether key is present in the store.
func Exists(ctx context.Context, store ObjectStore, key string) (bool, error) {
	if _, err := store.Head(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// KeyHash returns the deterministic ledger hash of an object key.
func KeyHash(key string) string {
	sum := xxh3.HashString128(key).Bytes()
	return hex.EncodeToString(sum[:])
}

// NormalizeETag strips the quoting S3 puts around entity tags.
func NormalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}

var (
	_ ObjectStore = (*S3Store)(nil)
	_ ObjectStore = (*LocalStore)(nil)
)

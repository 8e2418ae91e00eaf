package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStoreConfig configures the filesystem-backed object store.
type LocalStoreConfig struct {
	BaseDir string
	Bucket  string
	// BaseURL is the absolute URL of the endpoint that accepts signed tokens.
	BaseURL string
	Signer  *SignedURLSigner
}

// LocalStore persists objects on disk under a base directory. It mimics the
// subset of S3 semantics the sync core relies on, including multipart uploads,
// and hands out signed URLs served by the storage HTTP handler.
type LocalStore struct {
	baseDir string
	bucket  string
	baseURL string
	signer  *SignedURLSigner

	mu sync.Mutex
}

type localMeta struct {
	ContentType string `json:"contentType"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size"`
}

type localManifest struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(cfg LocalStoreConfig) (*LocalStore, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "./data/objects"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "local"
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("local store requires a signer")
	}
	for _, dir := range []string{"objects", "meta", "multipart"} {
		if err := os.MkdirAll(filepath.Join(cfg.BaseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return &LocalStore{
		baseDir: cfg.BaseDir,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  cfg.Signer,
	}, nil
}

// Bucket returns the logical bucket name recorded in the ledger.
func (s *LocalStore) Bucket() string {
	return s.bucket
}

// Put copies body into the object path and records its metadata.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	written, etag, err := writeHashed(path, body)
	if err != nil {
		return nil, fmt.Errorf("write object %s: %w", key, err)
	}
	meta := localMeta{ContentType: contentType, ETag: etag, Size: written}
	if err := s.writeMeta(key, meta); err != nil {
		return nil, err
	}
	return &ObjectInfo{Key: key, Size: written, ContentType: contentType, ETag: etag}, nil
}

// Get returns a read handle for the stored object.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	path, err := s.objectPath(key)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("open object %s: %w", key, ErrObjectNotFound)
		}
		return nil, nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return file, info, nil
}

// Head reads object metadata without opening the payload.
func (s *LocalStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metaPath, err := s.metaPath(key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("head object %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}
	var meta localMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode object metadata %s: %w", key, err)
	}
	return &ObjectInfo{Key: key, Size: meta.Size, ContentType: meta.ContentType, ETag: meta.ETag}, nil
}

// Delete removes a stored object if present.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	metaPath, _ := s.metaPath(key)
	for _, p := range []string{path, metaPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete object %s: %w", key, err)
		}
	}
	return nil
}

// PresignPut returns a signed URL accepting a single-shot upload of key.
func (s *LocalStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return s.signedURL(Grant{Op: GrantPut, Key: key, ContentType: contentType}, ttl)
}

// PresignGet returns a signed download URL for key.
func (s *LocalStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.signedURL(Grant{Op: GrantGet, Key: key}, ttl)
}

// CreateMultipartUpload reserves a staging directory and returns its handle.
func (s *LocalStore) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.objectPath(key); err != nil {
		return "", err
	}
	uploadID := uuid.NewString()
	dir := s.uploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload staging: %w", err)
	}
	raw, err := json.Marshal(localManifest{Key: key, ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("encode upload manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644); err != nil {
		return "", fmt.Errorf("write upload manifest: %w", err)
	}
	return uploadID, nil
}

// PresignUploadPart returns a signed URL for one part of an open upload.
func (s *LocalStore) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (string, error) {
	return s.signedURL(Grant{Op: GrantPart, Key: key, UploadID: uploadID, PartNumber: partNumber}, ttl)
}

// WritePart stores one part of an open upload and returns its entity tag.
func (s *LocalStore) WritePart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if partNumber < 1 {
		return "", fmt.Errorf("part number %d: %w", partNumber, ErrInvalidPart)
	}
	manifest, err := s.readManifest(uploadID)
	if err != nil {
		return "", err
	}
	if manifest.Key != key {
		return "", fmt.Errorf("upload %s does not belong to %s: %w", uploadID, key, ErrUploadNotFound)
	}
	_, etag, err := writeHashed(s.partPath(uploadID, partNumber), body)
	if err != nil {
		return "", fmt.Errorf("write part %d: %w", partNumber, err)
	}
	return etag, nil
}

// CompleteMultipartUpload assembles the parts in order, verifying each
// supplied entity tag against what was stored.
func (s *LocalStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.readManifest(uploadID)
	if err != nil {
		return nil, err
	}
	if manifest.Key != key {
		return nil, fmt.Errorf("upload %s does not belong to %s: %w", uploadID, key, ErrUploadNotFound)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts supplied: %w", ErrInvalidPart)
	}
	if !sort.SliceIsSorted(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber }) {
		return nil, fmt.Errorf("parts out of order: %w", ErrInvalidPart)
	}

	digests := make([]byte, 0, len(parts)*md5.Size)
	for i, part := range parts {
		if i > 0 && parts[i-1].PartNumber == part.PartNumber {
			return nil, fmt.Errorf("duplicate part %d: %w", part.PartNumber, ErrInvalidPart)
		}
		stored, err := fileMD5(s.partPath(uploadID, part.PartNumber))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("part %d missing: %w", part.PartNumber, ErrInvalidPart)
			}
			return nil, fmt.Errorf("hash part %d: %w", part.PartNumber, err)
		}
		if hex.EncodeToString(stored) != NormalizeETag(part.ETag) {
			return nil, fmt.Errorf("part %d checksum mismatch: %w", part.PartNumber, ErrInvalidPart)
		}
		digests = append(digests, stored...)
	}

	readers := make([]io.Reader, 0, len(parts))
	closers := make([]io.Closer, 0, len(parts))
	defer func() {
		for _, c := range closers {
			c.Close() //nolint:errcheck
		}
	}()
	for _, part := range parts {
		f, err := os.Open(s.partPath(uploadID, part.PartNumber))
		if err != nil {
			return nil, fmt.Errorf("open part %d: %w", part.PartNumber, err)
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}

	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	size, _, err := writeHashed(path, io.MultiReader(readers...))
	if err != nil {
		return nil, fmt.Errorf("assemble object %s: %w", key, err)
	}
	composite := md5.Sum(digests)
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(composite[:]), len(parts))
	if err := s.writeMeta(key, localMeta{ContentType: manifest.ContentType, ETag: etag, Size: size}); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(s.uploadDir(uploadID)); err != nil {
		return nil, fmt.Errorf("cleanup upload staging: %w", err)
	}
	return &ObjectInfo{Key: key, Size: size, ContentType: manifest.ContentType, ETag: etag}, nil
}

// AbortMultipartUpload discards all staged parts for the upload.
func (s *LocalStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.readManifest(uploadID)
	if err != nil {
		return err
	}
	if manifest.Key != key {
		return fmt.Errorf("upload %s does not belong to %s: %w", uploadID, key, ErrUploadNotFound)
	}
	if err := os.RemoveAll(s.uploadDir(uploadID)); err != nil {
		return fmt.Errorf("abort upload %s: %w", uploadID, err)
	}
	return nil
}

// Accept stores a body uploaded against a signed put or part token and
// returns the resulting entity tag.
func (s *LocalStore) Accept(ctx context.Context, token, contentType string, body io.Reader) (string, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	switch grant.Op {
	case GrantPut:
		if grant.ContentType != "" {
			contentType = grant.ContentType
		}
		info, err := s.Put(ctx, grant.Key, body, -1, contentType)
		if err != nil {
			return "", err
		}
		return info.ETag, nil
	case GrantPart:
		return s.WritePart(ctx, grant.Key, grant.UploadID, grant.PartNumber, body)
	default:
		return "", fmt.Errorf("%w: token does not grant uploads", ErrInvalidToken)
	}
}

// Open resolves a signed get token into the object stream.
func (s *LocalStore) Open(ctx context.Context, token string) (io.ReadCloser, *ObjectInfo, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, err
	}
	if grant.Op != GrantGet {
		return nil, nil, fmt.Errorf("%w: token does not grant downloads", ErrInvalidToken)
	}
	return s.Get(ctx, grant.Key)
}

func (s *LocalStore) signedURL(grant Grant, ttl time.Duration) (string, error) {
	if _, err := s.objectPath(grant.Key); err != nil {
		return "", err
	}
	token, _, err := s.signer.Sign(grant, ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s url: %w", grant.Op, err)
	}
	return s.baseURL + "?token=" + url.QueryEscape(token), nil
}

func (s *LocalStore) readManifest(uploadID string) (*localManifest, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, fmt.Errorf("upload %q: %w", uploadID, ErrUploadNotFound)
	}
	raw, err := os.ReadFile(filepath.Join(s.uploadDir(uploadID), "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("upload %s: %w", uploadID, ErrUploadNotFound)
		}
		return nil, fmt.Errorf("read upload manifest: %w", err)
	}
	var manifest localManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode upload manifest: %w", err)
	}
	return &manifest, nil
}

func (s *LocalStore) writeMeta(key string, meta localMeta) error {
	path, err := s.metaPath(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode object metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare metadata directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write object metadata: %w", err)
	}
	return nil
}

func (s *LocalStore) objectPath(key string) (string, error) {
	return s.resolve("objects", key, "")
}

func (s *LocalStore) metaPath(key string) (string, error) {
	return s.resolve("meta", key, ".json")
}

func (s *LocalStore) uploadDir(uploadID string) string {
	return filepath.Join(s.baseDir, "multipart", uploadID)
}

func (s *LocalStore) partPath(uploadID string, partNumber int32) string {
	return filepath.Join(s.uploadDir(uploadID), fmt.Sprintf("part-%05d", partNumber))
}

func (s *LocalStore) resolve(area, key, suffix string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, area, clean+suffix), nil
}

func writeHashed(path string, r io.Reader) (int64, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, "", err
	}
	tmp := path + ".tmp-" + uuid.NewString()
	file, err := os.Create(tmp)
	if err != nil {
		return 0, "", err
	}
	hash := md5.New()
	n, copyErr := io.Copy(io.MultiWriter(file, hash), r)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return 0, "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, "", err
	}
	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

func fileMD5(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck
	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return nil, err
	}
	return hash.Sum(nil), nil
}

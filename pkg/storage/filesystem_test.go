package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(LocalStoreConfig{
		BaseDir: t.TempDir(),
		Bucket:  "test",
		BaseURL: "http://localhost:8080/api/v1/storage/objects",
		Signer:  NewSignedURLSigner("secret", time.Hour),
	})
	require.NoError(t, err)
	return store
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

func TestLocalStorePutGetDelete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "submissions/5/a1.json", strings.NewReader(`{"q":1}`), 7, "application/json")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, md5Hex(`{"q":1}`), info.ETag)

	body, got, err := store.Get(ctx, "submissions/5/a1.json")
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `{"q":1}`, string(raw))
	assert.Equal(t, "application/json", got.ContentType)

	require.NoError(t, store.Delete(ctx, "submissions/5/a1.json"))
	exists, err := Exists(ctx, store, "submissions/5/a1.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store := newTestLocalStore(t)

	path, err := store.objectPath("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, store.baseDir))

	_, err = store.Put(context.Background(), "", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)
}

func TestLocalStoreMultipartRoundTrip(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	key := "uploads/users/7/abc-file.zip"

	uploadID, err := store.CreateMultipartUpload(ctx, key, "application/zip")
	require.NoError(t, err)

	partURL, err := store.PresignUploadPart(ctx, key, uploadID, 1, time.Minute)
	require.NoError(t, err)
	etag1, err := store.Accept(ctx, tokenFromURL(t, partURL), "", strings.NewReader("hello "))
	require.NoError(t, err)
	etag2, err := store.WritePart(ctx, key, uploadID, 2, strings.NewReader("world"))
	require.NoError(t, err)

	info, err := store.CompleteMultipartUpload(ctx, key, uploadID, []CompletedPart{
		{PartNumber: 1, ETag: `"` + etag1 + `"`},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.True(t, strings.HasSuffix(info.ETag, "-2"))

	getURL, err := store.PresignGet(ctx, key, time.Minute)
	require.NoError(t, err)
	body, _, err := store.Open(ctx, tokenFromURL(t, getURL))
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(raw))

	_, err = store.CompleteMultipartUpload(ctx, key, uploadID, []CompletedPart{{PartNumber: 1, ETag: etag1}})
	assert.True(t, errors.Is(err, ErrUploadNotFound))
}

func TestLocalStoreCompleteRejectsChecksumMismatch(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	key := "uploads/users/7/bad.bin"

	uploadID, err := store.CreateMultipartUpload(ctx, key, "application/octet-stream")
	require.NoError(t, err)
	_, err = store.WritePart(ctx, key, uploadID, 1, strings.NewReader("data"))
	require.NoError(t, err)

	_, err = store.CompleteMultipartUpload(ctx, key, uploadID, []CompletedPart{{PartNumber: 1, ETag: md5Hex("other")}})
	assert.True(t, errors.Is(err, ErrInvalidPart))

	_, err = store.CompleteMultipartUpload(ctx, key, uploadID, []CompletedPart{{PartNumber: 2, ETag: md5Hex("data")}})
	assert.True(t, errors.Is(err, ErrInvalidPart))

	exists, err := Exists(ctx, store, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStoreAbortThenComplete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	key := "uploads/projects/3/video.mp4"

	uploadID, err := store.CreateMultipartUpload(ctx, key, "video/mp4")
	require.NoError(t, err)
	etag, err := store.WritePart(ctx, key, uploadID, 1, strings.NewReader("frame"))
	require.NoError(t, err)

	require.NoError(t, store.AbortMultipartUpload(ctx, key, uploadID))

	_, err = store.CompleteMultipartUpload(ctx, key, uploadID, []CompletedPart{{PartNumber: 1, ETag: etag}})
	assert.True(t, errors.Is(err, ErrUploadNotFound))
	assert.True(t, errors.Is(store.AbortMultipartUpload(ctx, key, uploadID), ErrUploadNotFound))
}

func TestLocalStoreAcceptRejectsGetToken(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	putURL, err := store.PresignPut(ctx, "files/a.txt", "text/plain", time.Minute)
	require.NoError(t, err)
	etag, err := store.Accept(ctx, tokenFromURL(t, putURL), "application/octet-stream", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, md5Hex("abc"), etag)

	info, err := store.Head(ctx, "files/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", info.ContentType)

	getURL, err := store.PresignGet(ctx, "files/a.txt", time.Minute)
	require.NoError(t, err)
	_, err = store.Accept(ctx, tokenFromURL(t, getURL), "", strings.NewReader("x"))
	require.Error(t, err)
}

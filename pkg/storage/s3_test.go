package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putInput      *s3.PutObjectInput
	completeInput *s3.CompleteMultipartUploadInput
	headOut       *s3.HeadObjectOutput
	headErr       error
	completeErr   error
	abortErr      error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = params
	return &s3.PutObjectOutput{ETag: aws.String(`"abc"`), VersionId: aws.String("v1")}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return f.headOut, f.headErr
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.completeInput = params
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"final-2"`), VersionId: aws.String("v9")}, nil
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, f.abortErr
}

type fakePresign struct {
	expires time.Duration
}

func (f *fakePresign) apply(optFns []func(*s3.PresignOptions)) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
}

func (f *fakePresign) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.apply(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + aws.ToString(params.Key) + "?put"}, nil
}

func (f *fakePresign) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.apply(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + aws.ToString(params.Key) + "?get"}, nil
}

func (f *fakePresign) PresignUploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.apply(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + aws.ToString(params.Key) + "?partNumber=" + strconv.Itoa(int(aws.ToInt32(params.PartNumber)))}, nil
}

func TestS3StorePutNormalizesETag(t *testing.T) {
	client := &fakeS3{}
	store := newS3Store("bucket", client, &fakePresign{})

	info, err := store.Put(context.Background(), "submissions/5/a1.json", strings.NewReader("{}"), 2, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ETag)
	assert.Equal(t, "v1", info.VersionID)
	assert.Equal(t, int64(2), aws.ToInt64(client.putInput.ContentLength))
	assert.Equal(t, "bucket", aws.ToString(client.putInput.Bucket))
}

func TestS3StoreMapsNotFound(t *testing.T) {
	store := newS3Store("bucket", &fakeS3{headErr: &smithy.GenericAPIError{Code: "NotFound"}}, &fakePresign{})

	exists, err := Exists(context.Background(), store, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestS3StoreCompleteMultipartUpload(t *testing.T) {
	client := &fakeS3{}
	store := newS3Store("bucket", client, &fakePresign{})

	info, err := store.CompleteMultipartUpload(context.Background(), "k", "upload-1", []CompletedPart{
		{PartNumber: 1, ETag: "e1"},
		{PartNumber: 2, ETag: `"e2"`},
	})
	require.NoError(t, err)
	assert.Equal(t, "final-2", info.ETag)
	assert.Equal(t, "v9", info.VersionID)

	parts := client.completeInput.MultipartUpload.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, `"e1"`, aws.ToString(parts[0].ETag))
	assert.Equal(t, `"e2"`, aws.ToString(parts[1].ETag))
	assert.Equal(t, int32(2), aws.ToInt32(parts[1].PartNumber))
}

func TestS3StoreMapsMultipartErrors(t *testing.T) {
	client := &fakeS3{completeErr: &smithy.GenericAPIError{Code: "InvalidPart"}}
	store := newS3Store("bucket", client, &fakePresign{})

	_, err := store.CompleteMultipartUpload(context.Background(), "k", "upload-1", []CompletedPart{{PartNumber: 1, ETag: "bad"}})
	assert.True(t, errors.Is(err, ErrInvalidPart))

	client.completeErr = &smithy.GenericAPIError{Code: "NoSuchUpload"}
	_, err = store.CompleteMultipartUpload(context.Background(), "k", "upload-1", []CompletedPart{{PartNumber: 1, ETag: "e"}})
	assert.True(t, errors.Is(err, ErrUploadNotFound))

	client.abortErr = errors.New("connection reset")
	err = store.AbortMultipartUpload(context.Background(), "k", "upload-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUploadNotFound))
}

func TestS3StorePresignUsesTTL(t *testing.T) {
	presign := &fakePresign{}
	store := newS3Store("bucket", &fakeS3{}, presign)

	url, err := store.PresignUploadPart(context.Background(), "k", "upload-1", 3, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/k?partNumber=3", url)
	assert.Equal(t, 30*time.Minute, presign.expires)

	uploadID, err := store.CreateMultipartUpload(context.Background(), "k", "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", uploadID)
}

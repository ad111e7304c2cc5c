package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/jobmanager/internal/config"
)

type storedObject struct {
	data        []byte
	contentType string
}

// fakeS3 keeps objects in memory, keyed by bucket/key
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]storedObject
	putErr  error
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]storedObject{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = storedObject{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestService(client API, bucket string) *Service {
	cfg := &config.Config{Storage: config.StorageConfig{Bucket: bucket}}
	return NewService(client, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCVKey(t *testing.T) {
	assert.Equal(t, "job-applications/3-resume.pdf", CVKey(3, "resume.pdf"))
	assert.Equal(t, "job-applications/42-Curriculum Vitae.docx", CVKey(42, "Curriculum Vitae.docx"))
}

func TestService_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeS3(), "cvs")
	data := bytes.Repeat([]byte{0x25}, 500)

	res, err := svc.Put(ctx, CVKey(3, "resume.pdf"), bytes.NewReader(data), int64(len(data)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "etag-1", res.ETag)
	assert.Equal(t, "cvs", res.Bucket)

	obj, err := svc.Get(ctx, "job-applications/3-resume.pdf")
	require.NoError(t, err)
	defer obj.Body.Close()

	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, int64(500), obj.Size)
}

func TestService_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeS3(), "cvs")
	key := CVKey(3, "resume.pdf")

	_, err := svc.Put(ctx, key, bytes.NewReader([]byte("first")), 5, "application/pdf")
	require.NoError(t, err)
	_, err = svc.Put(ctx, key, bytes.NewReader([]byte("second")), 6, "application/pdf")
	require.NoError(t, err)

	obj, err := svc.Get(ctx, key)
	require.NoError(t, err)
	got, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "second", string(got))
}

func TestService_BucketNotConfigured(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	svc := newTestService(fake, "")

	assert.False(t, svc.Configured())

	_, err := svc.Put(ctx, "k", bytes.NewReader([]byte("x")), 1, "")
	assert.ErrorIs(t, err, ErrBucketNotConfigured)

	_, err = svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrBucketNotConfigured)

	_, err = svc.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrBucketNotConfigured)

	assert.ErrorIs(t, svc.Delete(ctx, "k"), ErrBucketNotConfigured)
	assert.Empty(t, fake.objects)
}

func TestService_GetMissing(t *testing.T) {
	svc := newTestService(newFakeS3(), "cvs")

	_, err := svc.Get(context.Background(), "job-applications/9-missing.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestService_GetFailure(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("connection reset")
	svc := newTestService(fake, "cvs")

	_, err := svc.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestService_PutFailure(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	svc := newTestService(fake, "cvs")

	_, err := svc.Put(context.Background(), "k", bytes.NewReader([]byte("x")), 1, "")
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "AccessDenied", apiErr.ErrorCode())
}

func TestService_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeS3(), "cvs")

	ok, err := svc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Put(ctx, "k", bytes.NewReader([]byte("x")), 1, "")
	require.NoError(t, err)

	ok, err = svc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Delete(ctx, "k"))
	ok, err = svc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrimETag(t *testing.T) {
	assert.Equal(t, "abc", trimETag(aws.String(`"abc"`)))
	assert.Equal(t, "abc", trimETag(aws.String("abc")))
	assert.Equal(t, "", trimETag(nil))
}

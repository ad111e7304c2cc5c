// Package storage is the blob store holding uploaded CVs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(
		NewS3Client,
		fx.Annotate(
			func(c *s3.Client) API { return c },
			fx.As(new(API)),
		),
		NewService,
	),
)

var (
	// ErrBucketNotConfigured is returned by every operation when no bucket name is set
	ErrBucketNotConfigured = errors.New("storage bucket not configured")
	ErrObjectNotFound      = errors.New("object not found")
)

// API is the subset of the S3 client used by Service
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object is a stored blob. Callers must close Body.
type Object struct {
	Key         string
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// PutResult describes a completed write
type PutResult struct {
	Key    string
	Bucket string
	ETag   string
	Size   int64
}

// NewS3Client builds the process-wide S3 client
func NewS3Client(awsCfg aws.Config, cfg *config.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Storage.UsePathStyle
	})
}

// Service reads and writes objects in the configured bucket
type Service struct {
	client API
	bucket string
	log    *slog.Logger
}

func NewService(client API, cfg *config.Config, log *slog.Logger) *Service {
	log = log.With(logger.Scope("storage"))
	if cfg.Storage.Bucket == "" {
		log.Warn("no CV bucket configured, uploads and downloads will fail")
	}
	return &Service{
		client: client,
		bucket: cfg.Storage.Bucket,
		log:    log,
	}
}

// Bucket returns the configured bucket name, which may be empty
func (s *Service) Bucket() string {
	return s.bucket
}

// Configured reports whether a bucket name is set
func (s *Service) Configured() bool {
	return s.bucket != ""
}

// Put writes body under key, replacing any existing object
func (s *Service) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*PutResult, error) {
	if !s.Configured() {
		return nil, ErrBucketNotConfigured
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Error("failed to put object",
			slog.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	s.log.Debug("object stored",
		slog.String("key", key),
		slog.Int64("size", size),
	)

	return &PutResult{
		Key:    key,
		Bucket: s.bucket,
		ETag:   trimETag(out.ETag),
		Size:   size,
	}, nil
}

// Get opens the object stored under key
func (s *Service) Get(ctx context.Context, key string) (*Object, error) {
	if !s.Configured() {
		return nil, ErrBucketNotConfigured
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get object %s: %w", key, ErrObjectNotFound)
		}
		s.log.Error("failed to get object",
			slog.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return &Object{
		Key:         key,
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// Exists reports whether an object is stored under key
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Configured() {
		return false, ErrBucketNotConfigured
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Configured() {
		return ErrBucketNotConfigured
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	s.log.Debug("object deleted", slog.String("key", key))
	return nil
}

// CVKey is the deterministic key of an application's CV. Uploading again
// under the same application and file name replaces the previous object.
func CVKey(applicationID int64, fileName string) string {
	return fmt.Sprintf("job-applications/%d-%s", applicationID, fileName)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

func trimETag(etag *string) string {
	v := aws.ToString(etag)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

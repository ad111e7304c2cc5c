package applications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emergent-company/jobmanager/domain/notifications"
	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/database"
	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/internal/storage"
	"github.com/emergent-company/jobmanager/pkg/apperror"
	"github.com/emergent-company/jobmanager/pkg/logger"
	"github.com/emergent-company/jobmanager/pkg/tracing"
)

// Content types stored for each accepted CV extension
var cvContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Store is the persistence the service needs
type Store interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id int64) (*Application, error)
	SetCVKey(ctx context.Context, id int64, key string) error
	FindLatest(ctx context.Context, jobID int64, email string) (*Application, error)
}

// JobLookup checks that a job exists
type JobLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Publisher enqueues new-application notifications
type Publisher interface {
	Publish(ctx context.Context, msg notifications.Message) (string, error)
}

// BlobStore holds CV files
type BlobStore interface {
	Configured() bool
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*storage.PutResult, error)
	Get(ctx context.Context, key string) (*storage.Object, error)
}

type Service struct {
	store     Store
	jobs      JobLookup
	publisher Publisher
	blobs     BlobStore
	maxUpload int64
	log       *slog.Logger
}

func NewService(store Store, jobs JobLookup, publisher Publisher, blobs BlobStore, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		jobs:      jobs,
		publisher: publisher,
		blobs:     blobs,
		maxUpload: cfg.Storage.MaxUploadSize,
		log:       log.With(logger.Scope("applications.svc")),
	}
}

// Submit stores an application for jobID and announces it on the
// notification queue. The row is committed before publishing; when the
// publish fails the row stays and the error is returned.
func (s *Service) Submit(ctx context.Context, jobID int64, req SubmitRequest) (_ int64, err error) {
	ctx, span := tracing.Start(ctx, "applications.submit", attribute.Int64("jobmanager.job.id", jobID))
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(req.CandidateName)
	email := strings.TrimSpace(req.CandidateEmail)
	if err := validateCandidate(name, email); err != nil {
		return 0, err
	}

	exists, err := s.jobs.Exists(ctx, jobID)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	if !exists {
		return 0, apperror.NewNotFound("Job", strconv.FormatInt(jobID, 10))
	}

	app := &Application{JobID: jobID, CandidateName: name, CandidateEmail: email}
	if err := s.store.Create(ctx, app); err != nil {
		// the job was deleted after the existence check
		if database.IsForeignKeyViolation(err) {
			return 0, apperror.NewNotFound("Job", strconv.FormatInt(jobID, 10))
		}
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	msgID, err := s.publisher.Publish(ctx, notifications.Message{
		JobID:          jobID,
		CandidateName:  name,
		CandidateEmail: email,
	})
	if err != nil {
		s.log.Warn("application stored but notification not published",
			slog.Int64("application_id", app.ID),
			slog.Int64("job_id", jobID),
			logger.Error(err),
		)
		return app.ID, publishError(err)
	}

	s.log.Info("application submitted",
		slog.Int64("application_id", app.ID),
		slog.Int64("job_id", jobID),
		slog.String("message_id", msgID),
	)
	return app.ID, nil
}

// UploadCv stores a CV for an existing application and records its key.
// Uploading the same file name again overwrites the stored CV.
func (s *Service) UploadCv(ctx context.Context, req UploadRequest) (err error) {
	ctx, span := tracing.Start(ctx, "applications.upload_cv",
		attribute.Int64("jobmanager.application.id", req.ApplicationID),
		attribute.Int("jobmanager.cv.size", len(req.Content)),
	)
	defer func() { endSpan(span, err) }()

	ext, err := s.validateUpload(req)
	if err != nil {
		return err
	}
	if !s.blobs.Configured() {
		return apperror.NewDependencyUnavailable("CV bucket not configured", storage.ErrBucketNotConfigured)
	}

	app, err := s.store.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if app == nil {
		return apperror.NewNotFound("Job application", strconv.FormatInt(req.ApplicationID, 10))
	}

	key := storage.CVKey(app.ID, req.FileName)
	contentType := resolveContentType(req.ContentType, ext)
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(req.Content), int64(len(req.Content)), contentType); err != nil {
		if errors.Is(err, storage.ErrBucketNotConfigured) {
			return apperror.NewDependencyUnavailable("CV bucket not configured", err)
		}
		return apperror.NewDependencyFailed("Failed to store CV", err)
	}

	if err := s.store.SetCVKey(ctx, app.ID, key); err != nil {
		if database.IsNoRows(err) {
			return apperror.NewNotFound("Job application", strconv.FormatInt(app.ID, 10))
		}
		return apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("cv uploaded",
		slog.Int64("application_id", app.ID),
		slog.String("key", key),
		slog.Int("size", len(req.Content)),
	)
	return nil
}

// GetCv opens the CV of the most recent application by email for jobID
func (s *Service) GetCv(ctx context.Context, jobID int64, email string) (_ *CV, err error) {
	ctx, span := tracing.Start(ctx, "applications.get_cv", attribute.Int64("jobmanager.job.id", jobID))
	defer func() { endSpan(span, err) }()

	email = strings.TrimSpace(email)
	app, err := s.store.FindLatest(ctx, jobID, email)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if app == nil || !app.HasCV() {
		return nil, apperror.ErrNotFound.WithMessage("CV not found")
	}

	obj, err := s.blobs.Get(ctx, *app.CVKey)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn("cv read failed",
				slog.Int64("application_id", app.ID),
				slog.String("key", *app.CVKey),
				logger.Error(err),
			)
		}
		return nil, apperror.ErrNotFound.WithMessage("CV not found").WithInternal(err)
	}

	return &CV{
		Body:        obj.Body,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		FileName:    fileNameFromKey(*app.CVKey, app.ID),
	}, nil
}

func validateCandidate(name, email string) error {
	if name == "" {
		return apperror.NewInvalidInput("candidateName", "candidateName is required")
	}
	if email == "" {
		return apperror.NewInvalidInput("candidateEmail", "candidateEmail is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.NewInvalidInput("candidateEmail", "candidateEmail is not a valid email address")
	}
	return nil
}

func (s *Service) validateUpload(req UploadRequest) (string, error) {
	if len(req.Content) == 0 {
		return "", apperror.NewInvalidInput("file", "file is empty")
	}
	if s.maxUpload > 0 && int64(len(req.Content)) > s.maxUpload {
		return "", apperror.NewInvalidInput("file", fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}
	if req.FileName == "" || strings.ContainsAny(req.FileName, `/\`) {
		return "", apperror.NewInvalidInput("file", "invalid file name")
	}
	ext := filepath.Ext(req.FileName)
	if _, ok := cvContentTypes[ext]; !ok {
		return "", apperror.NewInvalidInput("file", "only .pdf and .docx files are accepted")
	}
	return ext, nil
}

// resolveContentType keeps the uploaded type unless it is missing or generic
func resolveContentType(uploaded, ext string) string {
	uploaded = strings.TrimSpace(uploaded)
	if uploaded == "" || uploaded == "application/octet-stream" {
		return cvContentTypes[ext]
	}
	return uploaded
}

func fileNameFromKey(key string, id int64) string {
	return strings.TrimPrefix(key, storage.CVKey(id, ""))
}

func publishError(err error) error {
	if errors.Is(err, queue.ErrQueueNotFound) || errors.Is(err, queue.ErrQueueNotConfigured) {
		return apperror.NewDependencyUnavailable("Queue not found", err)
	}
	return apperror.NewDependencyFailed("Failed to publish notification", err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package postings

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emergent-company/jobmanager/pkg/apperror"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

const maxListLimit = 200

// Store is the persistence the service needs
type Store interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id int64) (*Job, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With(logger.Scope("postings.svc")),
	}
}

func (s *Service) Create(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if err := validateCreateRequest(&req); err != nil {
		return nil, err
	}

	job := &Job{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Company:     req.Company,
		Location:    req.Location,
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("job created", slog.Int64("job_id", job.ID), slog.String("title", job.Title))
	return job, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if job == nil {
		return nil, apperror.NewNotFound("Job", strconv.FormatInt(id, 10))
	}
	return job, nil
}

// Exists reports whether a job with id is stored
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(ctx, id)
}

// List returns every job unless params.Limit asks for a page
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit < 0 {
		params.Limit = 0
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	res, err := s.store.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return res, nil
}

func validateCreateRequest(req *CreateJobRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return apperror.NewInvalidInput("title", "title is required")
	}
	for field, v := range map[string]*float64{"salaryMin": req.SalaryMin, "salaryMax": req.SalaryMax} {
		if v != nil && *v < 0 {
			return apperror.NewInvalidInput(field, field+" must not be negative")
		}
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		return apperror.NewInvalidInput("salaryMin", "salaryMin must not exceed salaryMax")
	}
	return nil
}

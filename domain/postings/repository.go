package postings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/jobmanager/internal/database"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("postings.repo")),
	}
}

// Create inserts job and fills in its generated id and timestamp
func (r *Repository) Create(ctx context.Context, job *Job) error {
	_, err := r.db.NewInsert().
		Model(job).
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the job does not exist
func (r *Repository) GetByID(ctx context.Context, id int64) (*Job, error) {
	var job Job
	err := r.db.NewSelect().
		Model(&job).
		Where("j.id = ?", id).
		Scan(ctx)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("j.id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	return ok, nil
}

// List returns jobs newest first
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var jobs []Job
	q := r.db.NewSelect().
		Model(&jobs).
		Order("j.created_at DESC", "j.id DESC")
	if params.Limit > 0 {
		q = q.Limit(params.Limit).Offset(params.Offset)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return &ListResult{Data: jobs, Total: total}, nil
}

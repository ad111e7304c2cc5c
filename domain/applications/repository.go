package applications

import (
	"context"
	"database/sql"
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
		log: log.With(logger.Scope("applications.repo")),
	}
}

func (r *Repository) Create(ctx context.Context, app *Application) error {
	_, err := r.db.NewInsert().
		Model(app).
		Returning("id, created_at, updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert job application: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the application does not exist
func (r *Repository) GetByID(ctx context.Context, id int64) (*Application, error) {
	var app Application
	err := r.db.NewSelect().
		Model(&app).
		Where("ja.id = ?", id).
		Scan(ctx)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job application: %w", err)
	}
	return &app, nil
}

// SetCVKey points the application at its stored CV. It returns
// sql.ErrNoRows when the application is gone.
func (r *Repository) SetCVKey(ctx context.Context, id int64, key string) error {
	res, err := r.db.NewUpdate().
		Model((*Application)(nil)).
		Set("cv_key = ?", key).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set cv key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set cv key on application %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// FindLatest returns the most recent application by email for a job, or
// nil, nil when there is none.
func (r *Repository) FindLatest(ctx context.Context, jobID int64, email string) (*Application, error) {
	var app Application
	err := r.db.NewSelect().
		Model(&app).
		Where("ja.job_id = ?", jobID).
		Where("ja.candidate_email = ?", email).
		OrderExpr("ja.created_at DESC, ja.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job application: %w", err)
	}
	return &app, nil
}

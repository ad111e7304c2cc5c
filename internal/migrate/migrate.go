// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/emergent-company/jobmanager/migrations"
)

var Module = fx.Options(
	fx.Provide(NewMigrator),
)

// Migrator runs the embedded migrations against the application database
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

func NewMigrator(db *bun.DB, logger *zap.Logger) (*Migrator, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db.DB, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return &Migrator{provider: p, logger: logger.Named("migrator")}, nil
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	m.report(results)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if len(results) == 0 {
		m.logger.Info("schema already up to date")
	}
	return nil
}

// UpTo applies pending migrations up to and including version
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	results, err := m.provider.UpTo(ctx, version)
	m.report(results)
	if err != nil {
		return fmt.Errorf("migrate up to %d: %w", version, err)
	}
	return nil
}

// Down rolls back the most recent migration
func (m *Migrator) Down(ctx context.Context) error {
	res, err := m.provider.Down(ctx)
	if res != nil {
		m.report([]*goose.MigrationResult{res})
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Status logs one line per known migration
func (m *Migrator) Status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	for _, s := range statuses {
		fields := []zap.Field{
			zap.Int64("version", s.Source.Version),
			zap.String("file", s.Source.Path),
			zap.String("state", string(s.State)),
		}
		if !s.AppliedAt.IsZero() {
			fields = append(fields, zap.Time("applied_at", s.AppliedAt))
		}
		m.logger.Info("migration", fields...)
	}
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

func (m *Migrator) report(results []*goose.MigrationResult) {
	for _, r := range results {
		if r.Error != nil {
			m.logger.Error("migration failed",
				zap.Int64("version", r.Source.Version),
				zap.String("direction", r.Direction),
				zap.Error(r.Error),
			)
			continue
		}
		m.logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("direction", r.Direction),
			zap.Duration("duration", r.Duration),
		)
	}
}

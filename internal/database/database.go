// Package database owns the shared Postgres connection: one pgx pool for the
// process, exposed to repositories through bun.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

const (
	connectTimeout     = 10 * time.Second
	slowQueryThreshold = time.Second
)

var Module = fx.Module("database",
	fx.Provide(
		NewPgxPool,
		NewBunDB,
		fx.Annotate(
			func(db *bun.DB) bun.IDB { return db },
			fx.As(new(bun.IDB)),
		),
	),
)

// NewPgxPool opens the pool, verifies it with a ping and closes it on shutdown
func NewPgxPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	log = log.With(logger.Scope("database"))

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnIdleTime = cfg.Database.MaxIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to postgres",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)),
		slog.String("db", cfg.Database.Database),
		slog.Int("pool_size", cfg.Database.MaxOpenConns),
	)

	lc.Append(fx.StopHook(func() {
		log.Info("closing database pool")
		pool.Close()
	}))

	return pool, nil
}

// NewBunDB wraps the pgx pool in a bun.DB
func NewBunDB(lc fx.Lifecycle, pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) (*bun.DB, error) {
	log = log.With(logger.Scope("bun"))

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	if cfg.Database.QueryDebug {
		db.AddQueryHook(NewQueryLoggingHook(log))
	}

	lc.Append(fx.StopHook(db.Close))

	return db, nil
}

// QueryLoggingHook logs failed and slow queries, and every query at debug level
type QueryLoggingHook struct {
	log       *slog.Logger
	threshold time.Duration
}

func NewQueryLoggingHook(log *slog.Logger) *QueryLoggingHook {
	return &QueryLoggingHook{log: log, threshold: slowQueryThreshold}
}

func (h *QueryLoggingHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLoggingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.log.ErrorContext(ctx, "query error",
			slog.String("operation", event.Operation()),
			slog.String("query", event.Query),
			slog.Duration("duration", duration),
			logger.Error(event.Err),
		)
	case duration > h.threshold:
		h.log.WarnContext(ctx, "slow query",
			slog.String("operation", event.Operation()),
			slog.String("query", event.Query),
			slog.Duration("duration", duration),
		)
	default:
		h.log.DebugContext(ctx, "query",
			slog.String("query", event.Query),
			slog.Duration("duration", duration),
		)
	}
}

// IsNoRows reports whether err means the query matched nothing
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsForeignKeyViolation reports whether err is a Postgres
// foreign_key_violation (SQLSTATE 23503)
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

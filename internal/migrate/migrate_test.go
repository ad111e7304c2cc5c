package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/emergent-company/jobmanager/migrations"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	seen := map[int64]string{}
	for _, name := range files {
		version, err := goose.NumericComponent(name)
		require.NoError(t, err, name)
		if prev, ok := seen[version]; ok {
			t.Fatalf("duplicate migration version %d: %s and %s", version, prev, name)
		}
		seen[version] = name

		body, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), "%s has no Up section", name)
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), "%s has no Down section", name)
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	var all strings.Builder
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	for _, name := range files {
		body, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		all.Write(body)
	}

	for _, table := range []string{"kb.jobs", "kb.job_applications", "kb.application_notifications"} {
		assert.Contains(t, all.String(), "CREATE TABLE "+table+" ")
	}
}

func TestNewMigrator_LoadsEmbeddedSources(t *testing.T) {
	sqldb, _, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewMigrator(db, zap.NewNop())
	require.NoError(t, err)

	sources := m.provider.ListSources()
	require.Len(t, sources, 3)
	assert.Equal(t, int64(1), sources[0].Version)
	assert.Equal(t, int64(3), sources[2].Version)
}

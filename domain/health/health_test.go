package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/jobs"
	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/internal/queue/queuetest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	e := echo.New()
	RegisterRoutes(e, h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Queue.Name = "applications"
	return cfg
}

func TestHealth(t *testing.T) {
	rec := serve(newHandler(fakePinger{}, testConfig(), nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"message":"CV_BUCKET not set"`)

	rec = serve(newHandler(fakePinger{err: errors.New("connection refused")}, testConfig(), nil), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestHealthz(t *testing.T) {
	rec := serve(newHandler(fakePinger{err: errors.New("down")}, testConfig(), nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	idle := jobs.NewWorker(jobs.DefaultWorkerConfig("notifications", "applications"), nil, nil, discard)

	rec := serve(newHandler(fakePinger{}, testConfig(), []*jobs.Worker{idle}), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)

	rec = serve(newHandler(fakePinger{err: errors.New("down")}, testConfig(), nil), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReady_StoppedWorker(t *testing.T) {
	client := queue.NewClient(queuetest.New(), discard)
	w := jobs.NewWorker(jobs.DefaultWorkerConfig("notifications", "missing"), client, nil, discard)
	require.Error(t, w.Start(context.Background()))

	rec := serve(newHandler(fakePinger{}, testConfig(), []*jobs.Worker{w}), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"stopped"`)
}

func TestMetricsAndVersion(t *testing.T) {
	h := newHandler(fakePinger{}, testConfig(), nil)

	rec := serve(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = serve(h, "/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"dev"`)
}

func TestDebug(t *testing.T) {
	orig := hostStats
	t.Cleanup(func() { hostStats = orig })
	hostStats = func(context.Context) (map[string]any, error) {
		return map[string]any{"load1": 0.5}, nil
	}

	cfg := testConfig()
	cfg.Environment = "local"
	rec := serve(newHandler(fakePinger{}, cfg, nil), "/debug")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"load1":0.5`)

	hostStats = func(context.Context) (map[string]any, error) {
		return nil, errors.New("not supported")
	}
	rec = serve(newHandler(fakePinger{}, cfg, nil), "/debug")
	assert.Contains(t, rec.Body.String(), `"host_error":"not supported"`)

	cfg.Environment = "production"
	rec = serve(newHandler(fakePinger{}, cfg, nil), "/debug")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/jobs"
	"github.com/emergent-company/jobmanager/internal/version"
)

const checkTimeout = 5 * time.Second

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerParams struct {
	fx.In

	Pool    *pgxpool.Pool
	Config  *config.Config
	Workers []*jobs.Worker `group:"workers"`
}

type Handler struct {
	db      Pinger
	cfg     *config.Config
	workers []*jobs.Worker
	startAt time.Time
}

func NewHandler(p HandlerParams) *Handler {
	return newHandler(p.Pool, p.Config, p.Workers)
}

func newHandler(db Pinger, cfg *config.Config, workers []*jobs.Worker) *Handler {
	return &Handler{
		db:      db,
		cfg:     cfg,
		workers: workers,
		startAt: time.Now(),
	}
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WorkerStatus is a queue worker as reported by /ready
type WorkerStatus struct {
	Name     string             `json:"name"`
	State    string             `json:"state"`
	QueueURL string             `json:"queueUrl,omitempty"`
	Metrics  jobs.WorkerMetrics `json:"metrics"`
}

// Health reports database connectivity and which dependencies are configured
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	checks := map[string]Check{
		"database": {Status: "healthy"},
		"storage":  configuredCheck(h.cfg.Storage.Bucket != "", "CV_BUCKET not set"),
		"queue":    configuredCheck(h.cfg.Queue.Name != "", "NOTIFICATION_QUEUE_NAME not set"),
	}
	status := "healthy"
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = Check{Status: "unhealthy", Message: err.Error()}
		status = "unhealthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    checks,
	})
}

// Healthz is the liveness probe
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready fails when the database is unreachable or a worker has stopped
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}

	workers := make([]WorkerStatus, 0, len(h.workers))
	ready := true
	for _, w := range h.workers {
		state := w.State()
		if state == jobs.StateStopped {
			ready = false
		}
		workers = append(workers, WorkerStatus{
			Name:     w.Name(),
			State:    state.String(),
			QueueURL: w.QueueURL(),
			Metrics:  w.Metrics(),
		})
	}

	if !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Worker stopped",
			"workers": workers,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ready",
		"workers": workers,
	})
}

// Version reports build metadata
func (h *Handler) Version(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Current())
}

func configuredCheck(ok bool, missing string) Check {
	if ok {
		return Check{Status: "configured"}
	}
	return Check{Status: "unconfigured", Message: missing}
}

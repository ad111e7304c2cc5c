// Command worker runs only the notification worker, plus the health and
// metrics endpoints. Use it when the API runs with
// NOTIFICATION_WORKER_ENABLED=false.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/jobmanager/domain/health"
	"github.com/emergent-company/jobmanager/domain/notifications"
	"github.com/emergent-company/jobmanager/domain/scheduler"
	"github.com/emergent-company/jobmanager/domain/tracing"
	"github.com/emergent-company/jobmanager/internal/awsclient"
	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/database"
	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/internal/server"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		logger.Module,
		config.Module,
		fx.Decorate(forceWorker),
		tracing.Module,
		database.Module,
		server.Module,
		awsclient.Module,
		queue.Module,
		scheduler.Module,

		health.Module,
		notifications.PublisherModule,
		notifications.WorkerModule,
	).Run()
}

// forceWorker ignores NOTIFICATION_WORKER_ENABLED, which only controls the
// in-process worker of the API server
func forceWorker(cfg *config.Config) *config.Config {
	cfg.Notifications.WorkerEnabled = true
	return cfg
}

// Command server runs the job manager HTTP API. Unless
// NOTIFICATION_WORKER_ENABLED=false it also runs the notification worker
// in-process.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/jobmanager/domain/applications"
	"github.com/emergent-company/jobmanager/domain/health"
	"github.com/emergent-company/jobmanager/domain/notifications"
	"github.com/emergent-company/jobmanager/domain/postings"
	"github.com/emergent-company/jobmanager/domain/scheduler"
	"github.com/emergent-company/jobmanager/domain/tracing"
	"github.com/emergent-company/jobmanager/internal/awsclient"
	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/database"
	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/internal/server"
	"github.com/emergent-company/jobmanager/internal/storage"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

func main() {
	// .env.local overrides .env; neither overrides the real environment
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		config.Module,
		tracing.Module,
		database.Module,
		server.Module,
		tracing.EchoModule,
		awsclient.Module,
		storage.Module,
		queue.Module,
		scheduler.Module,

		// Domain
		health.Module,
		postings.Module,
		notifications.PublisherModule,
		notifications.WorkerModule,
		applications.Module,
	).Run()
}

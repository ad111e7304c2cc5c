package notifications

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/domain/scheduler"
	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/jobs"
	"github.com/emergent-company/jobmanager/internal/queue"
)

const depthTaskName = "notifications.queue-depth"

// PublisherModule is what the API needs to enqueue notifications
var PublisherModule = fx.Module("notifications.publisher",
	fx.Provide(
		fx.Annotate(
			func(c *queue.Client) QueueSender { return c },
			fx.As(new(QueueSender)),
		),
		NewPublisher,
	),
	fx.Invoke(RegisterDepthTask),
)

// WorkerModule runs the consumer side
var WorkerModule = fx.Module("notifications.worker",
	fx.Provide(
		NewRepository,
		fx.Annotate(
			func(r *Repository) Ledger { return r },
			fx.As(new(Ledger)),
		),
		fx.Annotate(
			func(c *queue.Client) jobs.Consumer { return c },
			fx.As(new(jobs.Consumer)),
		),
		NewSender,
		NewProcessor,
		NewWorker,
		fx.Annotate(
			func(w *Worker) *jobs.Worker { return w.Worker },
			fx.ResultTags(`group:"workers"`),
		),
	),
	fx.Invoke(RegisterWorkerLifecycle),
)

// NewSender picks Mailgun when it is fully configured, otherwise logs
func NewSender(cfg *config.Config, log *slog.Logger) (Sender, error) {
	n := &cfg.Notifications
	if !n.MailgunConfigured() {
		log.Info("using log-only notification sender")
		return NewLogSender(log), nil
	}

	templates, err := NewTemplates(n.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("using Mailgun notification sender",
		slog.String("domain", n.MailgunDomain),
		slog.String("to", n.Recipient))
	return NewMailgunSender(n, templates, log), nil
}

// RegisterWorkerLifecycle starts the worker with the application. A queue
// that cannot be resolved fails startup.
func RegisterWorkerLifecycle(lc fx.Lifecycle, w *Worker, cfg *config.Config, log *slog.Logger) {
	if !cfg.Notifications.WorkerEnabled {
		log.Info("notification worker disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
}

// RegisterDepthTask samples the queue depth on the scheduler
func RegisterDepthTask(s *scheduler.Scheduler, c *queue.Client, p *Publisher, cfg *config.Config) error {
	return s.AddIntervalTask(depthTaskName, cfg.Notifications.DepthInterval, SampleDepth(c, p))
}

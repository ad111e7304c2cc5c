package notifications

import (
	"log/slog"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/jobs"
)

// Worker drains the notification queue
type Worker struct {
	*jobs.Worker
}

func NewWorker(cfg *config.Config, consumer jobs.Consumer, processor *Processor, log *slog.Logger) *Worker {
	wc := jobs.DefaultWorkerConfig("notifications", cfg.Queue.Name)
	wc.BatchSize = cfg.Queue.MaxMessages
	wc.WaitTime = cfg.Queue.WaitTime
	wc.VisibilityTimeout = cfg.Queue.VisibilityTimeout
	wc.ReceiveBackoff = cfg.Queue.ReceiveBackoff

	return &Worker{Worker: jobs.NewWorker(wc, consumer, processor.Process, log)}
}

package notifications

import (
	"context"
	"log/slog"

	"github.com/emergent-company/jobmanager/pkg/logger"
)

// Sender performs the side effect of a notification
type Sender interface {
	Send(ctx context.Context, msg Message, body string) error
}

// LogSender only writes the notification to the log
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(logger.Scope("notifications.log"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message, body string) error {
	s.log.InfoContext(ctx, "Received message: "+body,
		slog.Int64("job_id", msg.JobID),
		slog.String("candidate_email", msg.CandidateEmail),
	)
	return nil
}

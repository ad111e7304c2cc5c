package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/pkg/logger"
	"github.com/emergent-company/jobmanager/pkg/tracing"
)

// Processor handles one received notification. It is safe to run more than
// once for the same queue message: the ledger row keyed by message id
// records delivery, and a delivered message is acknowledged without sending
// again.
type Processor struct {
	ledger Ledger
	sender Sender
	log    *slog.Logger
}

func NewProcessor(ledger Ledger, sender Sender, log *slog.Logger) *Processor {
	return &Processor{
		ledger: ledger,
		sender: sender,
		log:    log.With(logger.Scope("notifications.processor")),
	}
}

// Process returns nil when the message may be deleted from the queue
func (p *Processor) Process(ctx context.Context, qm queue.Message) error {
	ctx, span := tracing.Start(ctx, "notifications.process",
		attribute.String("jobmanager.message.id", qm.ID),
		attribute.Int("jobmanager.message.receive_count", qm.ReceiveCount),
	)
	defer span.End()

	msg, err := Parse(qm.Body)
	if err != nil {
		// can never succeed, so acknowledge instead of redelivering forever
		processedTotal.WithLabelValues("malformed").Inc()
		p.log.Warn("discarding malformed notification",
			slog.String("message_id", qm.ID),
			slog.String("body", qm.Body),
			logger.Error(err),
		)
		return nil
	}

	n, err := p.ledger.Record(ctx, qm.ID, msg, qm.Body)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if n.Status == StatusDelivered {
		processedTotal.WithLabelValues("duplicate").Inc()
		p.log.Info("notification already delivered",
			slog.String("message_id", qm.ID),
			slog.Int("receive_count", n.ReceiveCount),
		)
		return nil
	}

	if err := p.sender.Send(ctx, msg, qm.Body); err != nil {
		processedTotal.WithLabelValues("send_failed").Inc()
		return fmt.Errorf("deliver notification: %w", err)
	}
	if err := p.ledger.MarkDelivered(ctx, n.ID); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	processedTotal.WithLabelValues("delivered").Inc()
	return nil
}

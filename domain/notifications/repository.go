package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/jobmanager/pkg/logger"
)

// Ledger records processed notifications
type Ledger interface {
	Record(ctx context.Context, messageID string, msg Message, body string) (*Notification, error)
	MarkDelivered(ctx context.Context, id int64) error
}

type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("notifications.repo")),
	}
}

// Record inserts the ledger row for messageID, or bumps receive_count when
// the message was seen before. The returned row reflects the stored state.
func (r *Repository) Record(ctx context.Context, messageID string, msg Message, body string) (*Notification, error) {
	n := &Notification{
		MessageID:      messageID,
		JobID:          msg.JobID,
		CandidateName:  msg.CandidateName,
		CandidateEmail: msg.CandidateEmail,
		Body:           body,
		Status:         StatusReceived,
		ReceiveCount:   1,
	}

	_, err := r.db.NewInsert().
		Model(n).
		On("CONFLICT (message_id) DO UPDATE").
		Set("receive_count = n.receive_count + 1").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("record notification %s: %w", messageID, err)
	}
	return n, nil
}

func (r *Repository) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("status = ?", StatusDelivered).
		Set("delivered_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification %d delivered: %w", id, err)
	}
	return nil
}

package notifications

import (
	"time"

	"github.com/uptrace/bun"
)

// Status of a processed notification
type Status string

const (
	StatusReceived  Status = "received"
	StatusDelivered Status = "delivered"
)

// Notification is the worker's record of a received message, keyed by the
// queue message id. A delivered row means the side effect already happened.
type Notification struct {
	bun.BaseModel `bun:"table:kb.application_notifications,alias:n"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	MessageID      string     `bun:"message_id,notnull,unique" json:"messageId"`
	JobID          int64      `bun:"job_id,notnull" json:"jobId"`
	CandidateName  string     `bun:"candidate_name,notnull" json:"candidateName"`
	CandidateEmail string     `bun:"candidate_email,notnull" json:"candidateEmail"`
	Body           string     `bun:"body,notnull" json:"body"`
	Status         Status     `bun:"status,notnull" json:"status"`
	ReceiveCount   int        `bun:"receive_count,notnull" json:"receiveCount"`
	DeliveredAt    *time.Time `bun:"delivered_at" json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

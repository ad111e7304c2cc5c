package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

// QueueSender is the queue surface the publisher needs
type QueueSender interface {
	Resolve(ctx context.Context, name string) (string, error)
	Send(ctx context.Context, url, body string) (string, error)
}

// Publisher sends notification messages to the well-known queue. The queue
// URL is resolved on first use and cached; it is dropped again if the queue
// disappears.
type Publisher struct {
	client    QueueSender
	queueName string
	log       *slog.Logger

	mu  sync.Mutex
	url string
}

func NewPublisher(client QueueSender, cfg *config.Config, log *slog.Logger) *Publisher {
	return &Publisher{
		client:    client,
		queueName: cfg.Queue.Name,
		log:       log.With(logger.Scope("notifications.publisher")),
	}
}

// QueueURL resolves (or returns the cached) queue URL
func (p *Publisher) QueueURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	cached := p.url
	p.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	// concurrent callers may resolve twice; both get the same URL
	url, err := p.client.Resolve(ctx, p.queueName)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return url, nil
}

// Publish enqueues msg and returns the queue's message id. Errors wrapping
// queue.ErrQueueNotFound or queue.ErrQueueNotConfigured mean the queue could
// not be resolved.
func (p *Publisher) Publish(ctx context.Context, msg Message) (string, error) {
	url, err := p.QueueURL(ctx)
	if err != nil {
		return "", err
	}

	id, err := p.client.Send(ctx, url, msg.Body())
	if err != nil {
		if errors.Is(err, queue.ErrQueueNotFound) {
			p.forget(url)
		}
		return "", err
	}

	publishedTotal.Inc()
	p.log.Debug("notification published",
		slog.String("message_id", id),
		slog.Int64("job_id", msg.JobID),
	)
	return id, nil
}

func (p *Publisher) forget(url string) {
	p.mu.Lock()
	if p.url == url {
		p.url = ""
	}
	p.mu.Unlock()
}

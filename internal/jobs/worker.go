// Package jobs runs long-lived queue consumers.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

// WorkerConfig configures a queue consumer
type WorkerConfig struct {
	// Name labels log lines and metrics
	Name string
	// QueueName is resolved once when the worker starts
	QueueName string
	// BatchSize is the maximum number of messages per receive (default: 10)
	BatchSize int32
	// WaitTime is the long-poll duration of a receive (default: 20s)
	WaitTime time.Duration
	// VisibilityTimeout hides received messages from other consumers; zero
	// keeps the queue's own setting
	VisibilityTimeout time.Duration
	// ReceiveBackoff is the pause after a failed receive (default: 1s)
	ReceiveBackoff time.Duration
}

func DefaultWorkerConfig(name, queueName string) WorkerConfig {
	return WorkerConfig{
		Name:           name,
		QueueName:      queueName,
		BatchSize:      queue.MaxBatchSize,
		WaitTime:       queue.MaxWaitTime,
		ReceiveBackoff: time.Second,
	}
}

// Consumer is the queue surface a Worker needs
type Consumer interface {
	Resolve(ctx context.Context, name string) (string, error)
	Receive(ctx context.Context, url string, opts queue.ReceiveOptions) ([]queue.Message, error)
	Delete(ctx context.Context, url, receiptHandle string) error
}

// ProcessFunc handles one message. A nil error acknowledges the message;
// any error leaves it on the queue for redelivery.
type ProcessFunc func(ctx context.Context, msg queue.Message) error

// State is the lifecycle state of a Worker
type State int32

const (
	StateIdle State = iota
	StateStarting
	StatePolling
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Worker receives messages in a loop and hands each one to a ProcessFunc.
//
// Only the long-poll receive observes cancellation. Once a batch has been
// received it is processed and acknowledged in full before the loop checks
// for shutdown again.
type Worker struct {
	config   WorkerConfig
	log      *slog.Logger
	consumer Consumer
	process  ProcessFunc

	mu        sync.Mutex
	state     State
	queueURL  string
	cancel    context.CancelFunc
	stoppedCh chan struct{}

	received      int64
	processedOK   int64
	failureCount  int64
	deleted       int64
	receiveErrors int64
	metricsMu     sync.RWMutex
}

func NewWorker(config WorkerConfig, consumer Consumer, process ProcessFunc, log *slog.Logger) *Worker {
	if config.BatchSize <= 0 {
		config.BatchSize = queue.MaxBatchSize
	}
	if config.WaitTime <= 0 {
		config.WaitTime = queue.MaxWaitTime
	}
	if config.ReceiveBackoff <= 0 {
		config.ReceiveBackoff = time.Second
	}

	return &Worker{
		config:   config,
		log:      log.With(logger.Scope("jobs.worker"), slog.String("worker", config.Name)),
		consumer: consumer,
		process:  process,
	}
}

// Start resolves the queue and launches the receive loop in the background.
// A resolution failure is returned and the worker never polls. ctx bounds
// the resolution only; the loop runs until Stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateStarting || w.state == StatePolling || w.state == StateProcessing {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStarting
	w.mu.Unlock()

	url, err := w.resolve(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopped := make(chan struct{})

	w.mu.Lock()
	w.queueURL = url
	w.cancel = cancel
	w.stoppedCh = stopped
	w.mu.Unlock()

	go func() {
		defer close(stopped)
		w.loop(runCtx, url)
	}()
	return nil
}

// Run resolves the queue and blocks in the receive loop until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	w.setState(StateStarting)
	url, err := w.resolve(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.queueURL = url
	w.mu.Unlock()

	w.loop(ctx, url)
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish, or for
// ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stoppedCh
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-stopped:
		w.log.Info("worker stopped gracefully")
	case <-ctx.Done():
		w.log.Warn("worker stop timeout, forcing shutdown")
	}
	return nil
}

func (w *Worker) resolve(ctx context.Context) (string, error) {
	url, err := w.consumer.Resolve(ctx, w.config.QueueName)
	if err != nil {
		w.setState(StateStopped)
		w.log.Error("failed to resolve queue",
			slog.String("queue", w.config.QueueName),
			logger.Error(err),
		)
		return "", fmt.Errorf("worker %s: %w", w.config.Name, err)
	}

	w.log.Info("worker starting",
		slog.String("queue", w.config.QueueName),
		slog.Int("batch_size", int(w.config.BatchSize)),
		slog.Duration("wait_time", w.config.WaitTime),
	)
	return url, nil
}

func (w *Worker) loop(ctx context.Context, url string) {
	defer w.setState(StateStopped)

	opts := queue.ReceiveOptions{
		MaxMessages:       w.config.BatchSize,
		WaitTime:          w.config.WaitTime,
		VisibilityTimeout: w.config.VisibilityTimeout,
	}

	for ctx.Err() == nil {
		w.setState(StatePolling)

		msgs, err := w.consumer.Receive(ctx, url, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.incrementReceiveError()
			w.log.Warn("receive failed", logger.Error(err))
			w.sleep(ctx, w.config.ReceiveBackoff)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		w.setState(StateProcessing)
		w.processBatch(context.WithoutCancel(ctx), url, msgs)
	}
}

// processBatch runs on a context that ignores shutdown so a received batch
// is never abandoned halfway.
func (w *Worker) processBatch(ctx context.Context, url string, msgs []queue.Message) {
	w.addReceived(len(msgs))
	w.log.Debug("processing batch", slog.Int("count", len(msgs)))

	for _, msg := range msgs {
		if err := w.process(ctx, msg); err != nil {
			w.IncrementFailure()
			w.log.Warn("message processing failed, leaving for redelivery",
				slog.String("message_id", msg.ID),
				slog.Int("receive_count", msg.ReceiveCount),
				logger.Error(err),
			)
			continue
		}
		w.IncrementSuccess()

		if err := w.consumer.Delete(ctx, url, msg.ReceiptHandle); err != nil {
			w.log.Warn("failed to delete processed message",
				slog.String("message_id", msg.ID),
				logger.Error(err),
			)
			continue
		}
		w.incrementDeleted()
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	stateGauge.WithLabelValues(w.config.Name).Set(float64(s))
}

func (w *Worker) Name() string {
	return w.config.Name
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// QueueURL returns the resolved queue URL, empty before a successful start
func (w *Worker) QueueURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queueURL
}

// IsRunning reports whether the loop is active
func (w *Worker) IsRunning() bool {
	s := w.State()
	return s == StatePolling || s == StateProcessing
}

func (w *Worker) Metrics() WorkerMetrics {
	w.metricsMu.RLock()
	defer w.metricsMu.RUnlock()

	return WorkerMetrics{
		Received:      w.received,
		Processed:     w.processedOK + w.failureCount,
		Succeeded:     w.processedOK,
		Failed:        w.failureCount,
		Deleted:       w.deleted,
		ReceiveErrors: w.receiveErrors,
	}
}

func (w *Worker) IncrementSuccess() {
	w.metricsMu.Lock()
	w.processedOK++
	w.metricsMu.Unlock()
	messagesTotal.WithLabelValues(w.config.Name, "succeeded").Inc()
}

func (w *Worker) IncrementFailure() {
	w.metricsMu.Lock()
	w.failureCount++
	w.metricsMu.Unlock()
	messagesTotal.WithLabelValues(w.config.Name, "failed").Inc()
}

func (w *Worker) addReceived(n int) {
	w.metricsMu.Lock()
	w.received += int64(n)
	w.metricsMu.Unlock()
	messagesTotal.WithLabelValues(w.config.Name, "received").Add(float64(n))
}

func (w *Worker) incrementDeleted() {
	w.metricsMu.Lock()
	w.deleted++
	w.metricsMu.Unlock()
	messagesTotal.WithLabelValues(w.config.Name, "deleted").Inc()
}

func (w *Worker) incrementReceiveError() {
	w.metricsMu.Lock()
	w.receiveErrors++
	w.metricsMu.Unlock()
	receiveErrorsTotal.WithLabelValues(w.config.Name).Inc()
}

// WorkerMetrics contains worker counters since process start
type WorkerMetrics struct {
	Received      int64 `json:"received"`
	Processed     int64 `json:"processed"`
	Succeeded     int64 `json:"succeeded"`
	Failed        int64 `json:"failed"`
	Deleted       int64 `json:"deleted"`
	ReceiveErrors int64 `json:"receive_errors"`
}

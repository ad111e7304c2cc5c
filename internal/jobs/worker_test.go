package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/jobmanager/internal/queue"
	"github.com/emergent-company/jobmanager/internal/queue/queuetest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newQueue(t *testing.T) (*queuetest.Fake, *queue.Client, string) {
	t.Helper()
	fake := queuetest.New()
	fake.MaxWait = 10 * time.Millisecond
	url := fake.CreateQueue("applications")
	return fake, queue.NewClient(fake, discard), url
}

func testConfig() WorkerConfig {
	cfg := DefaultWorkerConfig("test", "applications")
	cfg.ReceiveBackoff = 5 * time.Millisecond
	return cfg
}

func send(t *testing.T, c *queue.Client, url string, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		_, err := c.Send(context.Background(), url, b)
		require.NoError(t, err)
	}
}

func stop(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig("notifications", "applications")

	assert.Equal(t, "notifications", cfg.Name)
	assert.Equal(t, "applications", cfg.QueueName)
	assert.Equal(t, int32(10), cfg.BatchSize)
	assert.Equal(t, 20*time.Second, cfg.WaitTime)
	assert.Equal(t, time.Second, cfg.ReceiveBackoff)
}

func TestNewWorker_AppliesDefaults(t *testing.T) {
	w := NewWorker(WorkerConfig{Name: "x"}, nil, nil, discard)

	assert.Equal(t, int32(queue.MaxBatchSize), w.config.BatchSize)
	assert.Equal(t, queue.MaxWaitTime, w.config.WaitTime)
	assert.Equal(t, time.Second, w.config.ReceiveBackoff)
	assert.Equal(t, StateIdle, w.State())
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:       "idle",
		StateStarting:   "starting",
		StatePolling:    "polling",
		StateProcessing: "processing",
		StateStopped:    "stopped",
		State(42):       "state(42)",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}

func TestWorker_ResolveFailureIsFatal(t *testing.T) {
	fake := queuetest.New()
	var processed atomic.Int32
	cfg := testConfig()
	cfg.QueueName = "does-not-exist"

	w := NewWorker(cfg, queue.NewClient(fake, discard), func(context.Context, queue.Message) error {
		processed.Add(1)
		return nil
	}, discard)

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrQueueNotFound)
	assert.Equal(t, StateStopped, w.State())
	assert.False(t, w.IsRunning())
	assert.Empty(t, w.QueueURL())
	assert.Zero(t, processed.Load())

	// Stop after a failed start is a no-op
	stop(t, w)
}

func TestWorker_ProcessesAndDeletesBatch(t *testing.T) {
	fake, client, url := newQueue(t)
	send(t, client, url, "a", "b", "c", "d", "e")

	var mu sync.Mutex
	var seen []string
	w := NewWorker(testConfig(), client, func(_ context.Context, msg queue.Message) error {
		mu.Lock()
		seen = append(seen, msg.Body)
		mu.Unlock()
		return nil
	}, discard)

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, url, w.QueueURL())

	require.Eventually(t, func() bool { return fake.Len(url) == 0 }, 2*time.Second, 5*time.Millisecond)
	stop(t, w)

	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, seen)
	mu.Unlock()

	m := w.Metrics()
	assert.Equal(t, int64(5), m.Received)
	assert.Equal(t, int64(5), m.Succeeded)
	assert.Equal(t, int64(5), m.Deleted)
	assert.Zero(t, m.Failed)
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_FailedMessageIsRedelivered(t *testing.T) {
	fake, client, url := newQueue(t)
	send(t, client, url, "ok-1", "poison", "ok-2")

	var failPoison atomic.Bool
	failPoison.Store(true)
	var poisonAttempts atomic.Int32

	w := NewWorker(testConfig(), client, func(_ context.Context, msg queue.Message) error {
		if msg.Body == "poison" {
			poisonAttempts.Add(1)
			if failPoison.Load() {
				return errors.New("sender unavailable")
			}
		}
		return nil
	}, discard)
	require.NoError(t, w.Start(context.Background()))
	defer stop(t, w)

	// the two good messages are acknowledged, the failed one stays in flight
	require.Eventually(t, func() bool { return fake.Len(url) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"poison"}, fake.Bodies(url))
	assert.Equal(t, int32(1), poisonAttempts.Load())

	failPoison.Store(false)
	fake.ExpireVisibility()

	require.Eventually(t, func() bool { return fake.Len(url) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), poisonAttempts.Load())

	m := w.Metrics()
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(3), m.Succeeded)
	assert.Equal(t, int64(3), m.Deleted)
}

// flakyConsumer fails the first receives, then delegates
type flakyConsumer struct {
	*queue.Client
	failures atomic.Int32
	err      error
}

func (f *flakyConsumer) Receive(ctx context.Context, url string, opts queue.ReceiveOptions) ([]queue.Message, error) {
	if f.failures.Add(-1) >= 0 {
		cause := f.err
		if cause == nil {
			cause = errors.New("throttled")
		}
		return nil, fmt.Errorf("receive messages: %w", cause)
	}
	return f.Client.Receive(ctx, url, opts)
}

func TestWorker_ReceiveErrorLoopsAgain(t *testing.T) {
	fake, client, url := newQueue(t)
	send(t, client, url, "a")

	consumer := &flakyConsumer{Client: client}
	consumer.failures.Store(3)

	w := NewWorker(testConfig(), consumer, func(context.Context, queue.Message) error { return nil }, discard)
	require.NoError(t, w.Start(context.Background()))
	defer stop(t, w)

	require.Eventually(t, func() bool { return fake.Len(url) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), w.Metrics().ReceiveErrors)
}

// a canceled request inside the SDK is not a shutdown of the worker
func TestWorker_CanceledReceiveWhileRunningLoopsAgain(t *testing.T) {
	fake, client, url := newQueue(t)
	send(t, client, url, "a")

	consumer := &flakyConsumer{Client: client, err: context.Canceled}
	consumer.failures.Store(2)

	w := NewWorker(testConfig(), consumer, func(context.Context, queue.Message) error { return nil }, discard)
	require.NoError(t, w.Start(context.Background()))
	defer stop(t, w)

	require.Eventually(t, func() bool { return fake.Len(url) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), w.Metrics().ReceiveErrors)
	assert.NotEqual(t, StateStopped, w.State())
}

func TestWorker_StopFinishesReceivedBatch(t *testing.T) {
	fake, client, url := newQueue(t)
	send(t, client, url, "a", "b", "c")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var processed atomic.Int32

	w := NewWorker(testConfig(), client, func(ctx context.Context, _ queue.Message) error {
		once.Do(func() { close(started) })
		<-release
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed.Add(1)
		return nil
	}, discard)
	require.NoError(t, w.Start(context.Background()))

	<-started
	assert.Equal(t, StateProcessing, w.State())

	stopped := make(chan struct{})
	go func() {
		stop(t, w)
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the batch finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped

	assert.Equal(t, int32(3), processed.Load())
	assert.Equal(t, 0, fake.Len(url))
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_StartIsIdempotent(t *testing.T) {
	_, client, _ := newQueue(t)
	w := NewWorker(testConfig(), client, func(context.Context, queue.Message) error { return nil }, discard)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)

	stop(t, w)
	assert.False(t, w.IsRunning())
}

func TestWorker_StartContextOnlyBoundsResolution(t *testing.T) {
	fake, client, url := newQueue(t)
	w := NewWorker(testConfig(), client, func(context.Context, queue.Message) error { return nil }, discard)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	send(t, client, url, "after-start")
	require.Eventually(t, func() bool { return fake.Len(url) == 0 }, 2*time.Second, 5*time.Millisecond)
	stop(t, w)
}

func TestWorker_RunReturnsOnCancel(t *testing.T) {
	_, client, _ := newQueue(t)
	w := NewWorker(testConfig(), client, func(context.Context, queue.Message) error { return nil }, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_MetricsConcurrent(t *testing.T) {
	w := &Worker{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.IncrementSuccess()
				w.IncrementFailure()
				_ = w.Metrics()
			}
		}()
	}
	wg.Wait()

	m := w.Metrics()
	assert.Equal(t, int64(2000), m.Processed)
	assert.Equal(t, int64(1000), m.Succeeded)
	assert.Equal(t, int64(1000), m.Failed)
}

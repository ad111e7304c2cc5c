package notifications

import (
	"context"
	"fmt"

	"github.com/emergent-company/jobmanager/internal/queue"
)

// DepthReader samples the queue depth
type DepthReader interface {
	ApproximateDepth(ctx context.Context, url string) (queue.Depth, error)
}

// SampleDepth returns a scheduler task that records the queue depth gauge
func SampleDepth(reader DepthReader, publisher *Publisher) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		url, err := publisher.QueueURL(ctx)
		if err != nil {
			return fmt.Errorf("resolve queue: %w", err)
		}
		depth, err := reader.ApproximateDepth(ctx, url)
		if err != nil {
			return err
		}
		queueDepth.WithLabelValues("visible").Set(float64(depth.Visible))
		queueDepth.WithLabelValues("in_flight").Set(float64(depth.InFlight))
		return nil
	}
}

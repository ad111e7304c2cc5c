package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobmanager",
		Subsystem: "notifications",
		Name:      "published_total",
		Help:      "Notification messages sent to the queue.",
	})

	processedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobmanager",
		Subsystem: "notifications",
		Name:      "processed_total",
		Help:      "Received notifications by result.",
	}, []string{"result"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobmanager",
		Subsystem: "notifications",
		Name:      "queue_depth",
		Help:      "Approximate number of messages on the notification queue.",
	}, []string{"state"})
)

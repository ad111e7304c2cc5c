package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobmanager",
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "Queue messages handled by workers, by outcome.",
	}, []string{"worker", "outcome"})

	receiveErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobmanager",
		Subsystem: "worker",
		Name:      "receive_errors_total",
		Help:      "Failed receive calls.",
	}, []string{"worker"})

	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobmanager",
		Subsystem: "worker",
		Name:      "state",
		Help:      "Current worker state (0 idle, 1 starting, 2 polling, 3 processing, 4 stopped).",
	}, []string{"worker"})
)

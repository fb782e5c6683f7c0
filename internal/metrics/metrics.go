// Package metrics exposes Prometheus instrumentation for the sync queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued counts jobs admitted to the durable store.
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncrelay_jobs_enqueued_total",
		Help: "The total number of jobs admitted to the queue",
	})

	// JobsDropped counts enqueue payloads rejected by validation.
	JobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncrelay_jobs_dropped_total",
		Help: "The total number of enqueue payloads dropped by validation",
	})

	// Deliveries counts delivery attempts by classified outcome.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncrelay_deliveries_total",
		Help: "The total number of delivery attempts by outcome",
	}, []string{"outcome"}) // outcome: success, retry, failed

	// QueueDepth tracks the number of jobs currently queued.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncrelay_queue_depth",
		Help: "Number of jobs currently in the durable queue",
	})
)

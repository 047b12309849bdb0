package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	// queueDepth gauges items waiting per stream, excluding the one in flight.
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "powboard_queue_depth",
			Help: "Events buffered per ingestion stream.",
		},
		[]string{"stream"},
	)

	// itemsTotal counts processed items by outcome
	// (inserted, duplicate, error, panic, rejected).
	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powboard_ingest_items_total",
			Help: "Ingested items by stream and outcome.",
		},
		[]string{"stream", "outcome"},
	)

	// itemDuration records how long one write took.
	itemDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powboard_ingest_duration_seconds",
			Help:    "Duration of one event write in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream"},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, itemsTotal, itemDuration)
}

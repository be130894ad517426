package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, registered on the default prometheus registry and exposed
// by the server's /metrics endpoint.
var (
	enqueuedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_enqueued_total",
		Help: "Audit entries accepted by the ingestion queue.",
	})

	droppedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_dropped_total",
		Help: "Audit entries evicted by the drop-oldest overflow policy.",
	})

	flushedBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_batches_flushed_total",
		Help: "Flush cycles that drained at least one entry.",
	})

	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_sink_failures_total",
		Help: "Per-sink write failures.",
	}, []string{"sink"})

	lostEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_lost_total",
		Help: "Entries for which every sink write failed.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Current number of entries waiting in the ingestion queue.",
	})
)

package syncqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsSyncedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fiscaliza",
		Subsystem: "sync",
		Name:      "operations_synced_total",
		Help:      "Queued operations successfully applied to the remote store.",
	}, []string{"entity", "operation"})

	opsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fiscaliza",
		Subsystem: "sync",
		Name:      "operations_failed_total",
		Help:      "Queued operations that failed a drain attempt.",
	}, []string{"entity", "operation"})

	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fiscaliza",
		Subsystem: "sync",
		Name:      "operations_pending",
		Help:      "Operations currently waiting in the local queue.",
	})
)

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "presence"

	tracker = "tracker"
	store   = "store"
)

// Cycle results.
const (
	ResultUpdated     = "updated"
	ResultStale       = "stale"
	ResultUnavailable = "unavailable"
	ResultMalformed   = "malformed"
	ResultSaveFailed  = "save_failed"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by result",
		},
		[]string{"result"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle",
			Buckets:   prometheus.DefBuckets,
		},
	)
	SnapshotReadRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "snapshot_read_retries_total",
			Help:      "Status report reads retried after an empty or failed read",
		},
	)
	OnlineEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "online_entities",
			Help:      "Entities online in the last persisted roster",
		},
	)
	RosterEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "roster_entities",
			Help:      "Entities in the last persisted roster",
		},
	)
	ServiceOnlineCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tracker,
			Name:      "service_online_count",
			Help:      "Online count reported for each service",
		},
		[]string{"service"},
	)
	StoreWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: store,
			Name:      "write_failures_total",
			Help:      "Failed writes by backend",
		},
		[]string{"backend"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with r once per process.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			CyclesTotal,
			CycleDuration,
			SnapshotReadRetries,
			OnlineEntities,
			RosterEntities,
			ServiceOnlineCount,
			StoreWriteFailures,
		)
	})
}

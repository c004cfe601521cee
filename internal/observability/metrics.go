// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	InstructionsProcessed *prometheus.CounterVec
	InstructionDuration   *prometheus.HistogramVec
	TransfersApplied      prometheus.Counter
	FeesCollected         prometheus.Counter
	FeeUnitsCollected     prometheus.Counter

	// Rewards metrics
	DistributionsCompleted prometheus.Counter
	DistributionLegs       prometheus.Counter
	UnitsDistributed       prometheus.Counter
	LiquidityRequests      prometheus.Counter
	HoldersTracked         prometheus.Gauge

	// Archive metrics
	RecordsArchived *prometheus.CounterVec
	ArchiveErrors   *prometheus.CounterVec

	// Feed metrics
	FeedClients       prometheus.Gauge
	FeedEventsDropped prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "spl_rewards_token"
	}

	return &Metrics{
		// Engine metrics
		InstructionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "instructions_processed_total",
			Help:      "Total number of instructions processed by program, kind and outcome",
		}, []string{"program", "kind", "outcome"}),
		InstructionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "instruction_duration_seconds",
			Help:      "Instruction execution duration by program and kind",
			Buckets:   prometheus.DefBuckets,
		}, []string{"program", "kind"}),
		TransfersApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transfers_applied_total",
			Help:      "Total number of fee-aware transfers applied",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fees_collected_total",
			Help:      "Total number of transfers that routed a nonzero fee",
		}),
		FeeUnitsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fee_units_collected_total",
			Help:      "Total token units routed to the fee collector",
		}),

		// Rewards metrics
		DistributionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "distributions_completed_total",
			Help:      "Total number of completed reward distributions",
		}),
		DistributionLegs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "distribution_legs_total",
			Help:      "Total number of distribution legs paid out",
		}),
		UnitsDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "units_distributed_total",
			Help:      "Total reference asset units paid out",
		}),
		LiquidityRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "liquidity_requests_total",
			Help:      "Total number of liquidity contribution requests",
		}),
		HoldersTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "holders_tracked",
			Help:      "Current number of holders on the balance ledger",
		}),

		// Archive metrics
		RecordsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "records_archived_total",
			Help:      "Total number of records persisted by record type",
		}, []string{"record_type"}),
		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of archive persistence errors by record type",
		}, []string{"record_type"}),

		// Feed metrics
		FeedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Current number of connected feed clients",
		}),
		FeedEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_dropped_total",
			Help:      "Total number of feed events dropped on slow clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInstruction records one processed instruction and its duration.
func RecordInstruction(program, kind, outcome string, seconds float64) {
	DefaultMetrics.InstructionsProcessed.WithLabelValues(program, kind, outcome).Inc()
	DefaultMetrics.InstructionDuration.WithLabelValues(program, kind).Observe(seconds)
}

// RecordTransfer records one applied transfer and its fee.
func RecordTransfer(fee uint64) {
	DefaultMetrics.TransfersApplied.Inc()
	if fee > 0 {
		DefaultMetrics.FeesCollected.Inc()
		DefaultMetrics.FeeUnitsCollected.Add(float64(fee))
	}
}

// RecordDistribution records one completed distribution.
func RecordDistribution(legs int, units uint64) {
	DefaultMetrics.DistributionsCompleted.Inc()
	DefaultMetrics.DistributionLegs.Add(float64(legs))
	DefaultMetrics.UnitsDistributed.Add(float64(units))
}

// RecordLiquidityRequest records one liquidity contribution request.
func RecordLiquidityRequest() {
	DefaultMetrics.LiquidityRequests.Inc()
}

// RecordArchive records an archive write and its outcome.
func RecordArchive(recordType string, err error) {
	DefaultMetrics.RecordsArchived.WithLabelValues(recordType).Inc()
	if err != nil {
		DefaultMetrics.ArchiveErrors.WithLabelValues(recordType).Inc()
	}
}

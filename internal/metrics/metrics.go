package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashless_ledger_operations_total",
		Help: "Ledger operations processed, labeled by outcome",
	}, []string{"operation", "outcome"})

	ledgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cashless_ledger_operation_duration_seconds",
		Help:    "Latency distribution of ledger operations",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	feesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashless_fees_collected_minor_total",
		Help: "Transfer fees charged, in minor units",
	})

	reconciliationMismatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashless_reconciliation_mismatched_accounts",
		Help: "Accounts whose stored balance differs from their ledger sum at the last run",
	})
)

const OutcomeSuccess = "success"

// ObserveOperation records one finished operation. outcome is OutcomeSuccess
// or the error kind that ended it.
func ObserveOperation(operation string, started time.Time, outcome string) {
	ledgerOperationsTotal.WithLabelValues(operation, outcome).Inc()
	ledgerOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func AddFees(minor int64) {
	if minor > 0 {
		feesCollected.Add(float64(minor))
	}
}

func SetReconciliationMismatches(n int) {
	reconciliationMismatches.Set(float64(n))
}

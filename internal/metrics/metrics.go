package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	// MinedTotal is informational only; ledger amounts never pass through floats
	MinedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mining_ledger",
		Name:      "mined_amount_total",
		Help:      "Crypto credited by mining accrual.",
	}, []string{"crypto_type"})

	AccrualDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mining_ledger",
		Name:      "accrual_duration_seconds",
		Help:      "Time spent accruing one user's active sessions.",
		Buckets:   prometheus.DefBuckets,
	})

	LedgerEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mining_ledger",
		Name:      "ledger_entries_total",
		Help:      "Balance changes posted, by transaction type.",
	}, []string{"transaction_type"})

	OperationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mining_ledger",
		Name:      "operation_errors_total",
		Help:      "Failed lifecycle operations, by operation and error kind.",
	}, []string{"operation", "kind"})

	BestEffortFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mining_ledger",
		Name:      "best_effort_failures_total",
		Help:      "Swallowed side-effect failures (notifications, audit, referral, price feed).",
	}, []string{"component"})

	EmailsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mining_ledger",
		Name:      "emails_processed_total",
		Help:      "Queued emails handled by the dispatcher, by outcome.",
	}, []string{"outcome"})

	PriceFeedLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mining_ledger",
		Name:      "price_feed_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful USD rate refresh.",
	})
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MinedTotal,
			AccrualDuration,
			LedgerEntries,
			OperationErrors,
			BestEffortFailures,
			EmailsProcessed,
			PriceFeedLastSuccess,
		)
	})
}

func ObserveMined(cryptoType string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	MinedTotal.WithLabelValues(cryptoType).Add(f)
}

func ObserveAccrual(start time.Time) {
	AccrualDuration.Observe(time.Since(start).Seconds())
}

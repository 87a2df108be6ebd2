// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PayoutsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payouts_created_total",
			Help: "Total number of payouts created",
		},
		[]string{"franchise_id"},
	)

	PayoutsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payouts_settled_total",
			Help: "Total number of payouts settled by terminal status",
		},
		[]string{"status"},
	)

	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "ledger_settlement_duration_seconds",
			Help: "Duration of payout settlement in seconds",
		},
	)

	WalletPostings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_wallet_postings_total",
			Help: "Total number of wallet journal entries written",
		},
		[]string{"type"},
	)

	WalletDriftDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_wallet_drift_detected_total",
			Help: "Number of wallets whose cached balance drifted from the journal",
		},
	)

	SharePurchaseConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_share_purchase_conflicts_total",
			Help: "Share purchase confirmations rejected for oversubscription",
		},
	)
)

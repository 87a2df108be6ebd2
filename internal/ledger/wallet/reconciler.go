// internal/ledger/wallet/reconciler.go
package wallet

import (
	"context"
	"database/sql"
	"time"

	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/models"
)

// Reconciler periodically re-derives wallet caches from the journal.
// Drift is logged with the observed delta and then corrected; the
// journal itself is never rewritten.
type Reconciler struct {
	db       *sql.DB
	interval time.Duration
	limit    int
	logger   logger.Logger
}

func NewReconciler(db *sql.DB, interval time.Duration, limit int, log logger.Logger) *Reconciler {
	return &Reconciler{
		db:       db,
		interval: interval,
		limit:    limit,
		logger:   log.WithFields(map[string]interface{}{"component": "wallet-reconciler"}),
	}
}

// Run blocks until ctx is cancelled, reconciling on every tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error("reconciliation pass failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// ReconcileOnce corrects every drifted wallet cache, up to the batch
// limit, and returns how many wallets were corrected. Drift covers the
// aggregate counters as well as the balance, so a wallet whose balance
// happens to match but whose counters do not still gets repaired.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.id, w.balance, COALESCE(j.derived, 0) AS derived
		FROM wallets w
		LEFT JOIN (
			SELECT wallet_id,
			       SUM(amount) AS derived,
			       COALESCE(SUM(ABS(amount)) FILTER (WHERE type = $1 OR (type = $2 AND amount >= 0)), 0) AS income,
			       COALESCE(SUM(ABS(amount)) FILTER (WHERE type = $3 OR (type = $2 AND amount < 0)), 0) AS expenses,
			       COALESCE(SUM(ABS(amount)) FILTER (WHERE type = $4), 0) AS payouts,
			       COALESCE(SUM(ABS(amount)) FILTER (WHERE type = $5), 0) AS royalties
			FROM wallet_transactions
			WHERE status = $6
			GROUP BY wallet_id
		) j ON j.wallet_id = w.id
		WHERE w.balance <> COALESCE(j.derived, 0)
		   OR w.total_income <> COALESCE(j.income, 0)
		   OR w.total_expenses <> COALESCE(j.expenses, 0)
		   OR w.total_payouts <> COALESCE(j.payouts, 0)
		   OR w.total_royalties <> COALESCE(j.royalties, 0)
		LIMIT $7`,
		string(models.TransactionTypeRevenue), string(models.TransactionTypeTransfer),
		string(models.TransactionTypeExpense), string(models.TransactionTypePayout),
		string(models.TransactionTypeRoyalty),
		string(models.TransactionStatusCompleted), r.limit,
	)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("find drifted wallets", err)
	}
	defer rows.Close()

	type drifted struct {
		id              string
		cached, derived int64
	}
	var found []drifted
	for rows.Next() {
		var d drifted
		if err := rows.Scan(&d.id, &d.cached, &d.derived); err != nil {
			return 0, errors.NewQueryExecutionFailedError("scan drifted wallet", err)
		}
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		return 0, errors.NewQueryExecutionFailedError("iterate drifted wallets", err)
	}

	corrected := 0
	for _, d := range found {
		if err := r.correct(ctx, d.id, d.cached, d.derived); err != nil {
			r.logger.Error("wallet correction failed", map[string]interface{}{
				"walletId": d.id,
				"error":    err.Error(),
			})
			continue
		}
		corrected++
	}
	return corrected, nil
}

func (r *Reconciler) correct(ctx context.Context, walletID string, cached, derived int64) error {
	metrics.WalletDriftDetected.Inc()
	r.logger.Warn("wallet cache drift detected", map[string]interface{}{
		"walletId": walletID,
		"cached":   cached,
		"derived":  derived,
		"delta":    cached - derived,
	})

	// Re-derive every aggregate counter alongside the balance. Counters
	// accumulate absolute volumes per entry, so the sums must be split
	// by sign: a net SUM(amount) would cancel offsetting entries of one
	// type (transfer +100 and transfer -100 contribute 100 to income
	// and 100 to expenses, not zero to both).
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, amount >= 0 AS credit, SUM(ABS(amount))
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2
		GROUP BY type, amount >= 0`,
		walletID, string(models.TransactionStatusCompleted),
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("derive wallet counters", err)
	}
	defer rows.Close()

	var income, expenses, payouts, royalties int64
	for rows.Next() {
		var txType string
		var credit bool
		var abs int64
		if err := rows.Scan(&txType, &credit, &abs); err != nil {
			return errors.NewQueryExecutionFailedError("scan wallet counter", err)
		}
		signed := abs
		if !credit {
			signed = -abs
		}
		i, e, p, ro := counterDeltas(models.TransactionType(txType), signed)
		income += i
		expenses += e
		payouts += p
		royalties += ro
	}
	if err := rows.Err(); err != nil {
		return errors.NewQueryExecutionFailedError("iterate wallet counters", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1,
		    total_income = $2,
		    total_expenses = $3,
		    total_payouts = $4,
		    total_royalties = $5,
		    updated_at = $6
		WHERE id = $7`,
		derived, income, expenses, payouts, royalties, time.Now().UTC(), walletID,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("correct wallet cache", err)
	}
	return nil
}

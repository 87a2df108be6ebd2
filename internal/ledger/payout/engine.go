// internal/ledger/payout/engine.go
package payout

import (
	"context"
	"database/sql"
	"time"

	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/ledger/captable"
	"franchise-ledger/internal/ledger/money"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"

	"github.com/google/uuid"
)

// Notifier delivers payout statements after settlement. Like audit
// indexing, delivery is non-critical and runs outside the settlement
// transaction.
type Notifier interface {
	PayoutSettled(ctx context.Context, p *models.Payout, dists []models.Distribution) error
}

// Engine computes payout splits and drives the settlement state
// machine. Indexer and Notifier are optional collaborators; a nil value
// skips that step.
type Engine struct {
	db       *sql.DB
	captable *captable.Service
	wallets  *wallet.Service
	settler  Settler
	indexer  Indexer
	notifier Notifier
	percents SplitPercents
	logger   logger.Logger
}

func NewEngine(db *sql.DB, ct *captable.Service, wallets *wallet.Service, settler Settler, indexer Indexer, notifier Notifier, percents SplitPercents, log logger.Logger) *Engine {
	return &Engine{
		db:       db,
		captable: ct,
		wallets:  wallets,
		settler:  settler,
		indexer:  indexer,
		notifier: notifier,
		percents: percents,
		logger:   log.WithFields(map[string]interface{}{"component": "payout-engine"}),
	}
}

// CreatePayout computes the split for one revenue period, snapshots the
// cap table and writes the payout with its distributions atomically.
// The (franchise_id, payout_date) constraint guarantees at most one
// payout per period; a duplicate surfaces as CONFLICT. A loss period
// persists the deficit and creates no distribution rows.
func (e *Engine) CreatePayout(ctx context.Context, franchiseID string, payoutDate time.Time, totalRevenue, operatingExpenses int64) (*models.Payout, []models.Distribution, error) {
	split, err := ComputeSplit(totalRevenue, operatingExpenses, e.percents)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	p := &models.Payout{
		ID:                uuid.New().String(),
		FranchiseID:       franchiseID,
		PayoutDate:        payoutDate,
		TotalRevenue:      split.TotalRevenue,
		OperatingExpenses: split.OperatingExpenses,
		RoyaltyAmount:     split.RoyaltyAmount,
		PlatformFee:       split.PlatformFee,
		ManagerBonus:      split.ManagerBonus,
		EmployeeBonuses:   split.EmployeeBonuses,
		NetProfit:         split.NetProfit,
		Deficit:           split.Deficit,
		ShareholderAmount: split.ShareholderAmount,
		Status:            models.PayoutStatusPending,
		CreatedAt:         now,
	}

	dists, err := e.buildDistributions(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	err = database.WithinTx(ctx, e.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payouts (
				id, franchise_id, payout_date, total_revenue, operating_expenses,
				royalty_amount, platform_fee, manager_bonus, employee_bonuses,
				net_profit, deficit, shareholder_amount, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			p.ID, p.FranchiseID, p.PayoutDate, p.TotalRevenue, p.OperatingExpenses,
			p.RoyaltyAmount, p.PlatformFee, p.ManagerBonus, p.EmployeeBonuses,
			p.NetProfit, p.Deficit, p.ShareholderAmount, string(p.Status), p.CreatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errors.NewConflictError("Payout already exists for period",
					franchiseID+" @ "+payoutDate.Format("2006-01-02"))
			}
			return errors.NewQueryExecutionFailedError("insert payout", err)
		}

		for i := range dists {
			d := &dists[i]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO distributions (
					id, payout_id, investor_id, wallet_id, shares,
					share_bps, amount, status, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				d.ID, d.PayoutID, d.InvestorID, d.WalletID, d.Shares,
				d.ShareBps, d.Amount, string(d.Status), d.CreatedAt,
			); err != nil {
				return errors.NewQueryExecutionFailedError("insert distribution", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.PayoutsCreated.WithLabelValues(franchiseID).Inc()
	e.logger.Info("payout created", map[string]interface{}{
		"payoutId":          p.ID,
		"franchiseId":       franchiseID,
		"payoutDate":        payoutDate.Format("2006-01-02"),
		"netProfit":         p.NetProfit,
		"deficit":           p.Deficit,
		"shareholderAmount": p.ShareholderAmount,
		"distributions":     len(dists),
	})
	return p, dists, nil
}

// buildDistributions snapshots the cap table and allocates the
// shareholder remainder pro-rata. Ownership is ordered largest holder
// first, so the allocation remainder lands deterministically.
func (e *Engine) buildDistributions(ctx context.Context, p *models.Payout) ([]models.Distribution, error) {
	if p.ShareholderAmount <= 0 {
		return nil, nil
	}

	holders, err := e.captable.Ownership(ctx, p.FranchiseID)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, nil
	}

	weights := make([]int64, len(holders))
	for i, h := range holders {
		weights[i] = h.Shares
	}
	amounts := money.Allocate(p.ShareholderAmount, weights)
	if amounts == nil {
		return nil, nil
	}

	dists := make([]models.Distribution, 0, len(holders))
	for i, h := range holders {
		w, err := e.wallets.EnsureWallet(ctx, models.WalletOwnerInvestor, h.InvestorID)
		if err != nil {
			return nil, err
		}
		dists = append(dists, models.Distribution{
			ID:         uuid.New().String(),
			PayoutID:   p.ID,
			InvestorID: h.InvestorID,
			WalletID:   w.ID,
			Shares:     h.Shares,
			ShareBps:   h.BasisPoints,
			Amount:     amounts[i],
			Status:     models.DistributionStatusPending,
			CreatedAt:  p.CreatedAt,
		})
	}
	return dists, nil
}

// SettlePayout executes the external transfers for a pending payout and
// finalizes the ledger. Settlement is all-or-nothing: any transfer
// failure marks the payout failed with zero journal writes; on success
// one transaction records every wallet entry, completes the
// distributions and stamps the payout. Repeat calls on a terminal
// payout return INVALID_STATE_TRANSITION without side effects.
//
// Every read runs before the pending-to-processing transition, so a
// load failure leaves the payout pending and retryable. Once the
// payout is processing, both remaining failure paths (transfer error,
// finalization error) land it in the failed terminal state.
func (e *Engine) SettlePayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	p, err := e.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PayoutStatusPending {
		return nil, errors.NewStateError("payout", string(p.Status), string(models.PayoutStatusProcessing))
	}

	dists, addresses, err := e.loadDistributions(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	franchiseWallet, err := e.wallets.EnsureWallet(ctx, models.WalletOwnerFranchise, p.FranchiseID)
	if err != nil {
		return nil, err
	}
	brandWallet, err := e.wallets.EnsureWallet(ctx, models.WalletOwnerBrand, p.FranchiseID)
	if err != nil {
		return nil, err
	}

	res, err := e.db.ExecContext(ctx, `
		UPDATE payouts SET status = $1 WHERE id = $2 AND status = $3`,
		string(models.PayoutStatusProcessing), payoutID, string(models.PayoutStatusPending),
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("mark payout processing", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to another settle attempt.
		return nil, errors.NewStateError("payout", string(p.Status), string(models.PayoutStatusProcessing))
	}
	p.Status = models.PayoutStatusProcessing

	started := time.Now()
	hash, err := e.executeTransfers(ctx, p, dists, addresses, franchiseWallet.Address, brandWallet.Address)
	if err != nil {
		e.markFailed(ctx, p)
		return nil, err
	}

	processedAt := time.Now().UTC()
	err = database.WithinTx(ctx, e.db, func(tx *sql.Tx) error {
		if p.RoyaltyAmount > 0 {
			if _, err := e.wallets.PostInTx(ctx, tx, franchiseWallet.ID,
				models.TransactionTypeRoyalty, -p.RoyaltyAmount,
				"royalty for "+p.PayoutDate.Format("2006-01-02"),
				models.EntityRef("payout", p.ID)); err != nil {
				return err
			}
			if _, err := e.wallets.PostInTx(ctx, tx, brandWallet.ID,
				models.TransactionTypeRoyalty, p.RoyaltyAmount,
				"royalty from "+p.FranchiseID,
				models.EntityRef("payout", p.ID)); err != nil {
				return err
			}
		}
		if p.ShareholderAmount > 0 {
			if _, err := e.wallets.PostInTx(ctx, tx, franchiseWallet.ID,
				models.TransactionTypePayout, -p.ShareholderAmount,
				"shareholder payout "+money.FormatCents(p.ShareholderAmount),
				models.EntityRef("payout", p.ID)); err != nil {
				return err
			}
		}
		for i := range dists {
			d := &dists[i]
			if _, err := e.wallets.PostInTx(ctx, tx, d.WalletID,
				models.TransactionTypePayout, d.Amount,
				"payout distribution "+money.FormatCents(d.Amount),
				models.EntityRef("payout", p.ID)); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE distributions SET status = $1, transaction_hash = $2 WHERE id = $3`,
				string(models.DistributionStatusCompleted), d.TransactionHash, d.ID,
			); err != nil {
				return errors.NewQueryExecutionFailedError("complete distribution", err)
			}
			d.Status = models.DistributionStatusCompleted
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payouts SET status = $1, transaction_hash = $2, processed_at = $3 WHERE id = $4`,
			string(models.PayoutStatusCompleted), hash, processedAt, p.ID,
		); err != nil {
			return errors.NewQueryExecutionFailedError("complete payout", err)
		}
		return nil
	})
	if err != nil {
		e.markFailed(ctx, p)
		return nil, err
	}

	p.Status = models.PayoutStatusCompleted
	p.TransactionHash = hash
	p.ProcessedAt = &processedAt

	metrics.SettlementDuration.Observe(time.Since(started).Seconds())
	metrics.PayoutsSettled.WithLabelValues(string(models.PayoutStatusCompleted)).Inc()
	e.logger.Info("payout settled", map[string]interface{}{
		"payoutId":      p.ID,
		"franchiseId":   p.FranchiseID,
		"distributions": len(dists),
		"txHash":        hash,
	})

	e.afterSettlement(ctx, p, dists)
	return p, nil
}

// executeTransfers runs the royalty transfer plus one transfer per
// distribution. The returned hash identifies the settlement batch on
// the external network.
func (e *Engine) executeTransfers(ctx context.Context, p *models.Payout, dists []models.Distribution, addresses map[string]string, franchiseAddr, brandAddr string) (string, error) {
	var hash string

	if p.RoyaltyAmount > 0 {
		res, err := e.settler.Transfer(ctx, TransferRequest{
			PayoutID:    p.ID,
			Reference:   "royalty",
			FromAddress: franchiseAddr,
			ToAddress:   brandAddr,
			Amount:      p.RoyaltyAmount,
		})
		if err != nil {
			return "", err
		}
		hash = res.TransactionHash
	}

	for i := range dists {
		d := &dists[i]
		res, err := e.settler.Transfer(ctx, TransferRequest{
			PayoutID:    p.ID,
			Reference:   d.ID,
			FromAddress: franchiseAddr,
			ToAddress:   addresses[d.WalletID],
			Amount:      d.Amount,
		})
		if err != nil {
			return "", err
		}
		d.TransactionHash = res.TransactionHash
		if hash == "" {
			hash = res.TransactionHash
		}
	}
	return hash, nil
}

// markFailed moves a processing payout and its unsettled distributions
// to the failed terminal state. The journal stays untouched; resolution
// is manual.
func (e *Engine) markFailed(ctx context.Context, p *models.Payout) {
	err := database.WithinTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payouts SET status = $1 WHERE id = $2 AND status = $3`,
			string(models.PayoutStatusFailed), p.ID, string(models.PayoutStatusProcessing),
		); err != nil {
			return errors.NewQueryExecutionFailedError("fail payout", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE distributions SET status = $1 WHERE payout_id = $2 AND status = $3`,
			string(models.DistributionStatusFailed), p.ID, string(models.DistributionStatusPending),
		); err != nil {
			return errors.NewQueryExecutionFailedError("fail distributions", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to mark payout failed", map[string]interface{}{
			"payoutId": p.ID,
			"error":    err.Error(),
		})
		return
	}
	p.Status = models.PayoutStatusFailed
	metrics.PayoutsSettled.WithLabelValues(string(models.PayoutStatusFailed)).Inc()
}

// afterSettlement runs the non-critical post-commit steps. Failures are
// logged and never unwind the settled payout.
func (e *Engine) afterSettlement(ctx context.Context, p *models.Payout, dists []models.Distribution) {
	if e.indexer != nil {
		if err := e.indexer.IndexPayout(ctx, p, dists); err != nil {
			e.logger.Warn("payout audit indexing failed", map[string]interface{}{
				"payoutId": p.ID,
				"error":    err.Error(),
			})
		}
	}
	if e.notifier != nil {
		if err := e.notifier.PayoutSettled(ctx, p, dists); err != nil {
			e.logger.Warn("payout statement delivery failed", map[string]interface{}{
				"payoutId": p.ID,
				"error":    err.Error(),
			})
		}
	}
}

// GetPayout loads one payout row.
func (e *Engine) GetPayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	var p models.Payout
	var status string
	var hash sql.NullString
	var processedAt sql.NullTime
	err := e.db.QueryRowContext(ctx, `
		SELECT id, franchise_id, payout_date, total_revenue, operating_expenses,
		       royalty_amount, platform_fee, manager_bonus, employee_bonuses,
		       net_profit, deficit, shareholder_amount, status,
		       transaction_hash, processed_at, created_at
		FROM payouts
		WHERE id = $1`,
		payoutID).
		Scan(&p.ID, &p.FranchiseID, &p.PayoutDate, &p.TotalRevenue, &p.OperatingExpenses,
			&p.RoyaltyAmount, &p.PlatformFee, &p.ManagerBonus, &p.EmployeeBonuses,
			&p.NetProfit, &p.Deficit, &p.ShareholderAmount, &status,
			&hash, &processedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("payout", payoutID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load payout", err)
	}
	p.Status = models.PayoutStatus(status)
	if hash.Valid {
		p.TransactionHash = hash.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}

// loadDistributions returns the payout's distributions plus the wallet
// address of each payee, resolved in one join.
func (e *Engine) loadDistributions(ctx context.Context, payoutID string) ([]models.Distribution, map[string]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT d.id, d.payout_id, d.investor_id, d.wallet_id, d.shares,
		       d.share_bps, d.amount, d.status, d.created_at, w.address
		FROM distributions d
		JOIN wallets w ON w.id = d.wallet_id
		WHERE d.payout_id = $1
		ORDER BY d.amount DESC, d.investor_id ASC`,
		payoutID,
	)
	if err != nil {
		return nil, nil, errors.NewQueryExecutionFailedError("load distributions", err)
	}
	defer rows.Close()

	var dists []models.Distribution
	addresses := make(map[string]string)
	for rows.Next() {
		var d models.Distribution
		var status, address string
		if err := rows.Scan(&d.ID, &d.PayoutID, &d.InvestorID, &d.WalletID, &d.Shares,
			&d.ShareBps, &d.Amount, &status, &d.CreatedAt, &address); err != nil {
			return nil, nil, errors.NewQueryExecutionFailedError("scan distribution", err)
		}
		d.Status = models.DistributionStatus(status)
		dists = append(dists, d)
		addresses[d.WalletID] = address
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.NewQueryExecutionFailedError("iterate distributions", err)
	}
	return dists, addresses, nil
}

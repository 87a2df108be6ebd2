// internal/ledger/captable/service.go
// Package captable tracks franchise funding rounds and share purchases,
// and derives the ownership table used by payout distribution.
package captable

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/ledger/money"
	"franchise-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is the subset of the Redis client used for ownership snapshots.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	db       *sql.DB
	cache    Cache
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewService creates the cap-table service. cache may be nil; ownership
// reads then always hit Postgres.
func NewService(db *sql.DB, cache Cache, cacheTTL time.Duration, log logger.Logger) *Service {
	return &Service{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "captable"}),
	}
}

func ownershipCacheKey(franchiseID string) string {
	return "captable:ownership:" + franchiseID
}

// OpenInvestment creates the funding round for a franchise.
func (s *Service) OpenInvestment(ctx context.Context, franchiseID string, totalInvestment, sharesIssued, sharePrice, minimumInvestment int64) (*models.Investment, error) {
	if sharesIssued <= 0 {
		return nil, errors.NewValidationError("sharesIssued must be positive")
	}
	if totalInvestment <= 0 || sharePrice <= 0 {
		return nil, errors.NewValidationError("totalInvestment and sharePrice must be positive")
	}

	inv := &models.Investment{
		ID:                uuid.New().String(),
		FranchiseID:       franchiseID,
		TotalInvestment:   totalInvestment,
		SharesIssued:      sharesIssued,
		SharePrice:        sharePrice,
		MinimumInvestment: minimumInvestment,
		Status:            models.InvestmentStatusActive,
		CreatedAt:         time.Now().UTC(),
	}
	inv.UpdatedAt = inv.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (
			id, franchise_id, total_investment, total_invested,
			shares_issued, shares_purchased, share_price,
			minimum_investment, status, created_at, updated_at
		) VALUES ($1, $2, $3, 0, $4, 0, $5, $6, $7, $8, $8)`,
		inv.ID, inv.FranchiseID, inv.TotalInvestment,
		inv.SharesIssued, inv.SharePrice, inv.MinimumInvestment,
		string(inv.Status), inv.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.NewConflictError("Funding round already exists", "franchiseId: "+franchiseID)
		}
		return nil, errors.NewQueryExecutionFailedError("open investment", err)
	}

	s.logger.Info("funding round opened", map[string]interface{}{
		"franchiseId":  franchiseID,
		"sharesIssued": sharesIssued,
	})
	return inv, nil
}

// RecordPurchase reserves shares for an investor. The purchase starts
// pending and does not count toward ownership until confirmed.
func (s *Service) RecordPurchase(ctx context.Context, franchiseID, investorID string, shares, pricePerShare int64) (*models.SharePurchase, error) {
	if shares <= 0 {
		return nil, errors.NewValidationError("shares must be positive")
	}
	if pricePerShare <= 0 {
		return nil, errors.NewValidationError("pricePerShare must be positive")
	}

	var sharesIssued, sharesPurchased int64
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT shares_issued, shares_purchased, status
		FROM investments
		WHERE franchise_id = $1`, franchiseID).
		Scan(&sharesIssued, &sharesPurchased, &status)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("investment", franchiseID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load investment", err)
	}

	if status != string(models.InvestmentStatusActive) {
		return nil, errors.NewStateError("investment", status, "purchase")
	}
	if sharesPurchased+shares > sharesIssued {
		return nil, errors.NewConflictError(
			"Purchase would oversubscribe the funding round",
			fmt.Sprintf("requested %d, available %d", shares, sharesIssued-sharesPurchased),
		)
	}

	purchase := &models.SharePurchase{
		ID:          uuid.New().String(),
		FranchiseID: franchiseID,
		InvestorID:  investorID,
		Shares:      shares,
		SharePrice:  pricePerShare,
		TotalAmount: shares * pricePerShare,
		Status:      models.PurchaseStatusPending,
		PurchasedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO share_purchases (
			id, franchise_id, investor_id, shares, share_price,
			total_amount, status, purchased_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		purchase.ID, purchase.FranchiseID, purchase.InvestorID,
		purchase.Shares, purchase.SharePrice, purchase.TotalAmount,
		string(purchase.Status), purchase.PurchasedAt,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("insert share purchase", err)
	}

	s.logger.Info("share purchase recorded", map[string]interface{}{
		"purchaseId":  purchase.ID,
		"franchiseId": franchiseID,
		"investorId":  investorID,
		"shares":      shares,
	})
	return purchase, nil
}

// ConfirmPurchase transitions a pending purchase to confirmed. The
// investment counters move in the same transaction through a single
// conditional UPDATE, so concurrent confirmations cannot oversubscribe
// the round: the losing transaction sees zero affected rows and gets a
// CONFLICT, never a lost update.
func (s *Service) ConfirmPurchase(ctx context.Context, purchaseID string) (*models.SharePurchase, error) {
	var purchase models.SharePurchase

	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT id, franchise_id, investor_id, shares, share_price,
			       total_amount, status, purchased_at
			FROM share_purchases
			WHERE id = $1
			FOR UPDATE`, purchaseID).
			Scan(&purchase.ID, &purchase.FranchiseID, &purchase.InvestorID,
				&purchase.Shares, &purchase.SharePrice, &purchase.TotalAmount,
				&status, &purchase.PurchasedAt)
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("share purchase", purchaseID)
		}
		if err != nil {
			return errors.NewQueryExecutionFailedError("load share purchase", err)
		}

		if status != string(models.PurchaseStatusPending) {
			return errors.NewStateError("share purchase", status, string(models.PurchaseStatusConfirmed))
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE investments
			SET shares_purchased = shares_purchased + $1,
			    total_invested = total_invested + $2,
			    updated_at = $3
			WHERE franchise_id = $4
			  AND shares_purchased + $1 <= shares_issued`,
			purchase.Shares, purchase.TotalAmount, time.Now().UTC(), purchase.FranchiseID,
		)
		if err != nil {
			return errors.NewQueryExecutionFailedError("increment investment", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.NewQueryExecutionFailedError("increment investment", err)
		}
		if affected == 0 {
			metrics.SharePurchaseConflicts.Inc()
			return errors.NewConflictError(
				"Confirmation would oversubscribe the funding round",
				"purchaseId: "+purchaseID,
			)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE share_purchases SET status = $1 WHERE id = $2`,
			string(models.PurchaseStatusConfirmed), purchaseID,
		); err != nil {
			return errors.NewQueryExecutionFailedError("confirm share purchase", err)
		}

		purchase.Status = models.PurchaseStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOwnership(ctx, purchase.FranchiseID)

	s.logger.Info("share purchase confirmed", map[string]interface{}{
		"purchaseId":  purchase.ID,
		"franchiseId": purchase.FranchiseID,
		"shares":      purchase.Shares,
	})
	return &purchase, nil
}

// Ownership returns the cap table of a franchise: confirmed holders
// with their share counts and basis points of the issued total. Served
// from the Redis snapshot when fresh.
func (s *Service) Ownership(ctx context.Context, franchiseID string) ([]models.Holder, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, ownershipCacheKey(franchiseID)); err == nil {
			var holders []models.Holder
			if err := json.Unmarshal([]byte(cached), &holders); err == nil {
				return holders, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("ownership cache read failed", map[string]interface{}{
				"franchiseId": franchiseID,
				"error":       err.Error(),
			})
		}
	}

	var sharesIssued int64
	err := s.db.QueryRowContext(ctx, `
		SELECT shares_issued FROM investments WHERE franchise_id = $1`, franchiseID).
		Scan(&sharesIssued)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("investment", franchiseID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load investment", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT investor_id, SUM(shares) AS shares
		FROM share_purchases
		WHERE franchise_id = $1 AND status = $2
		GROUP BY investor_id
		ORDER BY shares DESC, investor_id ASC`,
		franchiseID, string(models.PurchaseStatusConfirmed),
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load holders", err)
	}
	defer rows.Close()

	var holders []models.Holder
	for rows.Next() {
		var h models.Holder
		if err := rows.Scan(&h.InvestorID, &h.Shares); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan holder", err)
		}
		h.BasisPoints = h.Shares * money.BpsDenominator / sharesIssued
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("iterate holders", err)
	}

	if s.cache != nil && len(holders) > 0 {
		if payload, err := json.Marshal(holders); err == nil {
			if err := s.cache.Set(ctx, ownershipCacheKey(franchiseID), string(payload), s.cacheTTL); err != nil {
				s.logger.Warn("ownership cache write failed", map[string]interface{}{
					"franchiseId": franchiseID,
					"error":       err.Error(),
				})
			}
		}
	}

	return holders, nil
}

func (s *Service) invalidateOwnership(ctx context.Context, franchiseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, ownershipCacheKey(franchiseID)); err != nil {
		s.logger.Warn("ownership cache invalidation failed", map[string]interface{}{
			"franchiseId": franchiseID,
			"error":       err.Error(),
		})
	}
}

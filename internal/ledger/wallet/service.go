// internal/ledger/wallet/service.go
// Package wallet implements the append-only transaction journal backing
// every wallet balance. The journal is the source of truth; the cached
// balance and aggregate counters on the wallet row are an optimization
// kept consistent by posting both in one transaction and corrected by
// the reconciler when they drift.
package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/models"

	"github.com/google/uuid"
)

var validTypes = map[models.TransactionType]bool{
	models.TransactionTypeRevenue:  true,
	models.TransactionTypeExpense:  true,
	models.TransactionTypeRoyalty:  true,
	models.TransactionTypeTransfer: true,
	models.TransactionTypePayout:   true,
}

type Service struct {
	db     *sql.DB
	keys   KeyProvider
	logger logger.Logger
}

func NewService(db *sql.DB, keys KeyProvider, log logger.Logger) *Service {
	return &Service{
		db:     db,
		keys:   keys,
		logger: log.WithFields(map[string]interface{}{"component": "wallet"}),
	}
}

// EnsureWallet returns the active wallet for (ownerType, ownerID),
// provisioning it with an address from the KeyProvider when missing.
// The (owner_type, owner_id) unique constraint makes concurrent
// provisioning converge on a single row.
func (s *Service) EnsureWallet(ctx context.Context, ownerType models.WalletOwnerType, ownerID string) (*models.Wallet, error) {
	if w, err := s.findByOwner(ctx, ownerType, ownerID); err == nil {
		return w, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	address, err := s.keys.NewAddress(ctx, string(ownerType), ownerID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("provision wallet address", err)
	}

	now := time.Now().UTC()
	w := &models.Wallet{
		ID:        uuid.New().String(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Address:   address,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (
			id, owner_type, owner_id, address, balance,
			total_income, total_expenses, total_payouts, total_royalties,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, 0, 0, 0, 0, TRUE, $5, $5)`,
		w.ID, string(w.OwnerType), w.OwnerID, w.Address, now,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return s.findByOwner(ctx, ownerType, ownerID)
		}
		return nil, errors.NewQueryExecutionFailedError("insert wallet", err)
	}

	s.logger.Info("wallet provisioned", map[string]interface{}{
		"walletId":  w.ID,
		"ownerType": ownerType,
		"ownerId":   ownerID,
	})
	return w, nil
}

func (s *Service) findByOwner(ctx context.Context, ownerType models.WalletOwnerType, ownerID string) (*models.Wallet, error) {
	var w models.Wallet
	var ot string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_type, owner_id, address, balance,
		       total_income, total_expenses, total_payouts, total_royalties,
		       is_active, created_at, updated_at
		FROM wallets
		WHERE owner_type = $1 AND owner_id = $2`,
		string(ownerType), ownerID).
		Scan(&w.ID, &ot, &w.OwnerID, &w.Address, &w.Balance,
			&w.TotalIncome, &w.TotalExpenses, &w.TotalPayouts, &w.TotalRoyalties,
			&w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("wallet", string(ownerType)+"/"+ownerID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load wallet", err)
	}
	w.OwnerType = models.WalletOwnerType(ot)
	return &w, nil
}

// Post appends a journal entry and updates the wallet's cached
// aggregates, both inside one transaction.
func (s *Service) Post(ctx context.Context, walletID string, txType models.TransactionType, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		entry, err = s.PostInTx(ctx, tx, walletID, txType, amount, description, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostInTx appends a journal entry inside the caller's transaction so
// multi-row writes (expense + ledger entry, settlement + ledger
// entries) stay atomic. The cached counters move in the same statement
// batch, never as a separate later write.
func (s *Service) PostInTx(ctx context.Context, tx *sql.Tx, walletID string, txType models.TransactionType, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	if amount == 0 {
		return nil, errors.NewValidationError("amount must be non-zero")
	}
	if !validTypes[txType] {
		return nil, errors.NewValidationError("unknown transaction type: " + string(txType))
	}

	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1 AND is_active)`,
		walletID).Scan(&exists)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("check wallet", err)
	}
	if !exists {
		return nil, errors.NewNotFoundError("wallet", walletID)
	}

	refJSON, err := json.Marshal(ref)
	if err != nil {
		return nil, errors.NewValidationError("reference not serializable: " + err.Error())
	}

	entry := &models.WalletTransaction{
		ID:          uuid.New().String(),
		WalletID:    walletID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Reference:   ref,
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (
			id, wallet_id, type, amount, description, reference, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.WalletID, string(entry.Type), entry.Amount,
		entry.Description, refJSON, string(entry.Status), entry.CreatedAt,
	); err != nil {
		return nil, errors.NewQueryExecutionFailedError("insert wallet transaction", err)
	}

	income, expenses, payouts, royalties := counterDeltas(txType, amount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
		    total_income = total_income + $2,
		    total_expenses = total_expenses + $3,
		    total_payouts = total_payouts + $4,
		    total_royalties = total_royalties + $5,
		    updated_at = $6
		WHERE id = $7`,
		amount, income, expenses, payouts, royalties, entry.CreatedAt, walletID,
	); err != nil {
		return nil, errors.NewQueryExecutionFailedError("update wallet aggregates", err)
	}

	metrics.WalletPostings.WithLabelValues(string(txType)).Inc()
	return entry, nil
}

// counterDeltas maps a journal entry onto the wallet's aggregate
// counters. Counters accumulate absolute volumes; the signed amount
// only moves the balance.
func counterDeltas(txType models.TransactionType, amount int64) (income, expenses, payouts, royalties int64) {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch txType {
	case models.TransactionTypeRevenue:
		income = abs
	case models.TransactionTypeExpense:
		expenses = abs
	case models.TransactionTypePayout:
		payouts = abs
	case models.TransactionTypeRoyalty:
		royalties = abs
	case models.TransactionTypeTransfer:
		if amount >= 0 {
			income = abs
		} else {
			expenses = abs
		}
	}
	return
}

// BalanceOf recomputes the wallet balance from the full journal. This
// is the authoritative balance; the cached column is only an
// optimization.
func (s *Service) BalanceOf(ctx context.Context, walletID string) (int64, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`,
		walletID).Scan(&exists)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("check wallet", err)
	}
	if !exists {
		return 0, errors.NewNotFoundError("wallet", walletID)
	}

	var balance int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2`,
		walletID, string(models.TransactionStatusCompleted)).
		Scan(&balance)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("sum wallet transactions", err)
	}
	return balance, nil
}

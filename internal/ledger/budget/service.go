// internal/ledger/budget/service.go
// Package budget implements monthly budget envelopes and expense
// accounting. Every expense also lands in the franchise wallet journal;
// the two writes share one transaction.
package budget

import (
	"context"
	"database/sql"
	"time"

	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"

	"github.com/google/uuid"
)

var validCategories = map[string]bool{
	"marketing":     true,
	"payroll":       true,
	"rent":          true,
	"utilities":     true,
	"inventory":     true,
	"equipment":     true,
	"insurance":     true,
	"maintenance":   true,
	"miscellaneous": true,
}

// categoryOrder fixes the breakdown row order.
var categoryOrder = []string{
	"marketing", "payroll", "rent", "utilities", "inventory",
	"equipment", "insurance", "maintenance", "miscellaneous",
}

type Service struct {
	db      *sql.DB
	wallets *wallet.Service
	logger  logger.Logger
}

func NewService(db *sql.DB, wallets *wallet.Service, log logger.Logger) *Service {
	return &Service{
		db:      db,
		wallets: wallets,
		logger:  log.WithFields(map[string]interface{}{"component": "budget"}),
	}
}

// UpsertBudget creates or replaces the budget for (franchiseID, month,
// year). Replacing overwrites every allocation; partial updates are not
// supported at this layer.
func (s *Service) UpsertBudget(ctx context.Context, franchiseID string, month, year int, monthlyBudget int64, alloc models.BudgetAllocations) (*models.Budget, error) {
	if month < 1 || month > 12 {
		return nil, errors.NewValidationError("month must be between 1 and 12")
	}
	if monthlyBudget < 0 {
		return nil, errors.NewValidationError("monthly budget must be non-negative")
	}

	now := time.Now().UTC()
	b := &models.Budget{
		ID:            uuid.New().String(),
		FranchiseID:   franchiseID,
		Month:         month,
		Year:          year,
		MonthlyBudget: monthlyBudget,
		Allocations:   alloc,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO budgets (
			id, franchise_id, month, year, monthly_budget,
			marketing, payroll, rent, utilities, inventory,
			equipment, insurance, maintenance, miscellaneous,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (franchise_id, month, year) DO UPDATE SET
			monthly_budget = EXCLUDED.monthly_budget,
			marketing = EXCLUDED.marketing,
			payroll = EXCLUDED.payroll,
			rent = EXCLUDED.rent,
			utilities = EXCLUDED.utilities,
			inventory = EXCLUDED.inventory,
			equipment = EXCLUDED.equipment,
			insurance = EXCLUDED.insurance,
			maintenance = EXCLUDED.maintenance,
			miscellaneous = EXCLUDED.miscellaneous,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		b.ID, b.FranchiseID, b.Month, b.Year, b.MonthlyBudget,
		alloc.Marketing, alloc.Payroll, alloc.Rent, alloc.Utilities, alloc.Inventory,
		alloc.Equipment, alloc.Insurance, alloc.Maintenance, alloc.Miscellaneous,
		now,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("upsert budget", err)
	}

	s.logger.Info("budget upserted", map[string]interface{}{
		"franchiseId": franchiseID,
		"month":       month,
		"year":        year,
		"allocated":   alloc.Total(),
	})
	return b, nil
}

// PostExpense records an operating expense and the matching wallet
// journal entry in one transaction. A failed wallet posting leaves no
// orphan expense row.
func (s *Service) PostExpense(ctx context.Context, franchiseID, category string, amount int64, expenseDate time.Time, paymentMethod, description string) (*models.Expense, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("expense amount must be positive")
	}
	if !validCategories[category] {
		return nil, errors.NewValidationError("unknown expense category: " + category)
	}

	w, err := s.wallets.EnsureWallet(ctx, models.WalletOwnerFranchise, franchiseID)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ID:            uuid.New().String(),
		FranchiseID:   franchiseID,
		Category:      category,
		Amount:        amount,
		ExpenseDate:   expenseDate,
		PaymentMethod: paymentMethod,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}

	err = database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		entry, err := s.wallets.PostInTx(ctx, tx, w.ID,
			models.TransactionTypeExpense, -amount, description,
			models.EntityRef("expense", expense.ID))
		if err != nil {
			return err
		}
		expense.WalletTransactionID = entry.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO expenses (
				id, franchise_id, category, amount, expense_date,
				payment_method, description, wallet_transaction_id, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			expense.ID, expense.FranchiseID, expense.Category, expense.Amount,
			expense.ExpenseDate, expense.PaymentMethod, expense.Description,
			expense.WalletTransactionID, expense.CreatedAt,
		)
		if err != nil {
			return errors.NewQueryExecutionFailedError("insert expense", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense posted", map[string]interface{}{
		"franchiseId": franchiseID,
		"expenseId":   expense.ID,
		"category":    category,
		"amount":      amount,
	})
	return expense, nil
}

// Summarize aggregates completed expenses for one franchise and period.
func (s *Service) Summarize(ctx context.Context, franchiseID string, month, year int) (*models.ExpenseSummary, error) {
	if month < 1 || month > 12 {
		return nil, errors.NewValidationError("month must be between 1 and 12")
	}

	summary := &models.ExpenseSummary{
		FranchiseID:     franchiseID,
		Month:           month,
		Year:            year,
		ByCategory:      make(map[string]int64),
		ByPaymentMethod: make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, payment_method, SUM(amount)
		FROM expenses
		WHERE franchise_id = $1
		  AND EXTRACT(MONTH FROM expense_date) = $2
		  AND EXTRACT(YEAR FROM expense_date) = $3
		GROUP BY category, payment_method`,
		franchiseID, month, year,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("summarize expenses", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, method string
		var sum int64
		if err := rows.Scan(&category, &method, &sum); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan expense aggregate", err)
		}
		summary.ByCategory[category] += sum
		summary.ByPaymentMethod[method] += sum
		summary.ActualExpenses += sum
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("iterate expense aggregates", err)
	}
	return summary, nil
}

// Breakdown compares the period's budget envelopes against actual
// spend per category.
func (s *Service) Breakdown(ctx context.Context, franchiseID string, month, year int) ([]models.CategoryVariance, error) {
	budget, err := s.findBudget(ctx, franchiseID, month, year)
	if err != nil {
		return nil, err
	}

	summary, err := s.Summarize(ctx, franchiseID, month, year)
	if err != nil {
		return nil, err
	}

	allocated := map[string]int64{
		"marketing":     budget.Allocations.Marketing,
		"payroll":       budget.Allocations.Payroll,
		"rent":          budget.Allocations.Rent,
		"utilities":     budget.Allocations.Utilities,
		"inventory":     budget.Allocations.Inventory,
		"equipment":     budget.Allocations.Equipment,
		"insurance":     budget.Allocations.Insurance,
		"maintenance":   budget.Allocations.Maintenance,
		"miscellaneous": budget.Allocations.Miscellaneous,
	}

	breakdown := make([]models.CategoryVariance, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		spent := summary.ByCategory[category]
		breakdown = append(breakdown, models.CategoryVariance{
			Category:  category,
			Allocated: allocated[category],
			Spent:     spent,
			Variance:  allocated[category] - spent,
		})
	}
	return breakdown, nil
}

func (s *Service) findBudget(ctx context.Context, franchiseID string, month, year int) (*models.Budget, error) {
	var b models.Budget
	err := s.db.QueryRowContext(ctx, `
		SELECT id, franchise_id, month, year, monthly_budget,
		       marketing, payroll, rent, utilities, inventory,
		       equipment, insurance, maintenance, miscellaneous,
		       created_at, updated_at
		FROM budgets
		WHERE franchise_id = $1 AND month = $2 AND year = $3`,
		franchiseID, month, year).
		Scan(&b.ID, &b.FranchiseID, &b.Month, &b.Year, &b.MonthlyBudget,
			&b.Allocations.Marketing, &b.Allocations.Payroll, &b.Allocations.Rent,
			&b.Allocations.Utilities, &b.Allocations.Inventory, &b.Allocations.Equipment,
			&b.Allocations.Insurance, &b.Allocations.Maintenance, &b.Allocations.Miscellaneous,
			&b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("budget", franchiseID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load budget", err)
	}
	return &b, nil
}

// internal/workers/ledger/post-expense/handler_test.go
package postexpense

import (
	"context"
	"testing"
	"time"

	ledgererrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBudgets struct {
	category string
	amount   int64
	err      error
}

func (f *fakeBudgets) PostExpense(_ context.Context, _, category string, amount int64, _ time.Time, _, _ string) (*models.Expense, error) {
	f.category = category
	f.amount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &models.Expense{ID: "expense-001", WalletTransactionID: "wtx-001"}, nil
}

func TestExecute_PostsExpense(t *testing.T) {
	budgets := &fakeBudgets{}
	h := NewHandler(LoadConfig(), budgets, logger.NewTestLogger(t))

	output, err := h.execute(context.Background(), &Input{
		FranchiseID:   "franchise-001",
		Category:      "rent",
		Amount:        40000,
		ExpenseDate:   "2026-03-05",
		PaymentMethod: "bank_transfer",
		Description:   "march rent",
	})

	require.NoError(t, err)
	assert.Equal(t, "expense-001", output.ExpenseID)
	assert.Equal(t, "wtx-001", output.WalletTransactionID)
	assert.Equal(t, "rent", budgets.category)
	assert.Equal(t, int64(40000), budgets.amount)
}

func TestExecute_RejectsBadDate(t *testing.T) {
	h := NewHandler(LoadConfig(), &fakeBudgets{}, logger.NewTestLogger(t))

	_, err := h.execute(context.Background(), &Input{
		FranchiseID:   "franchise-001",
		Category:      "rent",
		Amount:        40000,
		ExpenseDate:   "05.03.2026",
		PaymentMethod: "cash",
	})

	assert.True(t, ledgererrors.IsValidation(err))
}

func TestExecute_PropagatesServiceError(t *testing.T) {
	budgets := &fakeBudgets{err: ledgererrors.NewNotFoundError("wallet", "franchise-001")}
	h := NewHandler(LoadConfig(), budgets, logger.NewTestLogger(t))

	_, err := h.execute(context.Background(), &Input{
		FranchiseID:   "franchise-001",
		Category:      "rent",
		Amount:        40000,
		ExpenseDate:   "2026-03-05",
		PaymentMethod: "cash",
	})

	assert.True(t, ledgererrors.IsNotFound(err))
}

func TestInputSchema(t *testing.T) {
	valid := map[string]interface{}{
		"franchiseId":   "franchise-001",
		"category":      "rent",
		"amount":        40000,
		"expenseDate":   "2026-03-05",
		"paymentMethod": "bank_transfer",
	}
	assert.NoError(t, validation.Validate(valid, inputSchema))

	badCategory := map[string]interface{}{
		"franchiseId":   "franchise-001",
		"category":      "entertainment",
		"amount":        40000,
		"expenseDate":   "2026-03-05",
		"paymentMethod": "cash",
	}
	assert.Error(t, validation.Validate(badCategory, inputSchema))

	zeroAmount := map[string]interface{}{
		"franchiseId":   "franchise-001",
		"category":      "rent",
		"amount":        0,
		"expenseDate":   "2026-03-05",
		"paymentMethod": "cash",
	}
	assert.Error(t, validation.Validate(zeroAmount, inputSchema))
}

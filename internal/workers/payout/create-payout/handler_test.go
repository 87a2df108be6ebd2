// internal/workers/payout/create-payout/handler_test.go
package createpayout

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

type fakeEngine struct {
	franchiseID string
	payoutDate  time.Time
	payout      *models.Payout
	dists       []models.Distribution
	err         error
}

func (f *fakeEngine) CreatePayout(_ context.Context, franchiseID string, payoutDate time.Time, _, _ int64) (*models.Payout, []models.Distribution, error) {
	f.franchiseID = franchiseID
	f.payoutDate = payoutDate
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.payout, f.dists, nil
}

func TestExecute_ReturnsPayoutSummary(t *testing.T) {
	engine := &fakeEngine{
		payout: &models.Payout{
			ID:                "payout-001",
			Status:            models.PayoutStatusPending,
			NetProfit:         680000,
			ShareholderAmount: 680000,
		},
		dists: []models.Distribution{{ID: "dist-1"}, {ID: "dist-2"}},
	}
	h := NewHandler(LoadConfig(), engine, logger.NewTestLogger(t))

	output, err := h.execute(context.Background(), &Input{
		FranchiseID:       "franchise-001",
		PayoutDate:        "2026-03-31",
		TotalRevenue:      1000000,
		OperatingExpenses: 200000,
	})

	require.NoError(t, err)
	assert.Equal(t, "payout-001", output.PayoutID)
	assert.Equal(t, "pending", output.Status)
	assert.Equal(t, 2, output.Distributions)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), engine.payoutDate)
}

func TestExecute_RejectsBadDate(t *testing.T) {
	h := NewHandler(LoadConfig(), &fakeEngine{}, logger.NewTestLogger(t))

	_, err := h.execute(context.Background(), &Input{
		FranchiseID:  "franchise-001",
		PayoutDate:   "31/03/2026",
		TotalRevenue: 1000000,
	})

	assert.True(t, ledgererrors.IsValidation(err))
}

func TestExecute_PropagatesEngineError(t *testing.T) {
	engine := &fakeEngine{err: ledgererrors.NewConflictError("Payout already exists for period", "")}
	h := NewHandler(LoadConfig(), engine, logger.NewTestLogger(t))

	_, err := h.execute(context.Background(), &Input{
		FranchiseID:  "franchise-001",
		PayoutDate:   "2026-03-31",
		TotalRevenue: 1000000,
	})

	assert.True(t, ledgererrors.IsConflict(err))
}

func TestInputSchema(t *testing.T) {
	valid := map[string]interface{}{
		"franchiseId":       "franchise-001",
		"payoutDate":        "2026-03-31",
		"totalRevenue":      1000000,
		"operatingExpenses": 200000,
	}
	assert.NoError(t, validation.Validate(valid, inputSchema))

	missing := map[string]interface{}{"franchiseId": "franchise-001"}
	assert.Error(t, validation.Validate(missing, inputSchema))

	negative := map[string]interface{}{
		"franchiseId":  "franchise-001",
		"payoutDate":   "2026-03-31",
		"totalRevenue": -1,
	}
	assert.Error(t, validation.Validate(negative, inputSchema))
}

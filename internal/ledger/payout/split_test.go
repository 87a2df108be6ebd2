// internal/ledger/payout/split_test.go
package payout

import (
	"testing"

	ledgererrors "franchise-ledger/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplit_DefaultRates(t *testing.T) {
	// Revenue 10000.00, opex 2000.00.
	s, err := ComputeSplit(1000000, 200000, DefaultSplitPercents())

	require.NoError(t, err)
	assert.Equal(t, int64(50000), s.RoyaltyAmount)
	assert.Equal(t, int64(20000), s.PlatformFee)
	assert.Equal(t, int64(20000), s.ManagerBonus)
	assert.Equal(t, int64(30000), s.EmployeeBonuses)
	assert.Equal(t, int64(680000), s.NetProfit)
	assert.Equal(t, int64(680000), s.ShareholderAmount)
	assert.Equal(t, int64(0), s.Deficit)
}

func TestComputeSplit_LossPeriodRecordsDeficit(t *testing.T) {
	// Revenue 1000.00, opex 2000.00.
	s, err := ComputeSplit(100000, 200000, DefaultSplitPercents())

	require.NoError(t, err)
	assert.Equal(t, int64(-112000), s.NetProfit)
	assert.Equal(t, int64(112000), s.Deficit)
	assert.Equal(t, int64(0), s.ShareholderAmount)
}

func TestComputeSplit_IdentityHoldsForArbitraryRates(t *testing.T) {
	cases := []struct {
		revenue, opex int64
		pct           SplitPercents
	}{
		{1000000, 200000, DefaultSplitPercents()},
		{999999, 123457, SplitPercents{RoyaltyBps: 777, PlatformFeeBps: 123, ManagerBonusBps: 311, EmployeeBonusBps: 501}},
		{1, 0, DefaultSplitPercents()},
		{0, 0, DefaultSplitPercents()},
		{7919, 7919, SplitPercents{RoyaltyBps: 9999, PlatformFeeBps: 1, ManagerBonusBps: 0, EmployeeBonusBps: 0}},
	}

	for _, tc := range cases {
		s, err := ComputeSplit(tc.revenue, tc.opex, tc.pct)
		require.NoError(t, err)

		resum := s.OperatingExpenses + s.RoyaltyAmount + s.PlatformFee +
			s.ManagerBonus + s.EmployeeBonuses + s.NetProfit
		assert.Equal(t, tc.revenue, resum)
	}
}

func TestComputeSplit_RejectsNegativeInputs(t *testing.T) {
	_, err := ComputeSplit(-1, 0, DefaultSplitPercents())
	assert.True(t, ledgererrors.IsValidation(err))

	_, err = ComputeSplit(100, -1, DefaultSplitPercents())
	assert.True(t, ledgererrors.IsValidation(err))
}

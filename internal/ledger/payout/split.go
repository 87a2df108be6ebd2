// internal/ledger/payout/split.go
// Package payout implements the revenue split computation and the payout
// distribution state machine: pending -> processing -> completed|failed.
package payout

import (
	"fmt"

	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/ledger/money"
)

// SplitPercents are the revenue split rates in basis points. Every rate
// applies to total revenue, not to the running remainder.
type SplitPercents struct {
	RoyaltyBps       int64
	PlatformFeeBps   int64
	ManagerBonusBps  int64
	EmployeeBonusBps int64
}

// DefaultSplitPercents returns the platform defaults: 5% royalty, 2%
// platform fee, 2% manager bonus, 3% employee bonuses.
func DefaultSplitPercents() SplitPercents {
	return SplitPercents{
		RoyaltyBps:       500,
		PlatformFeeBps:   200,
		ManagerBonusBps:  200,
		EmployeeBonusBps: 300,
	}
}

// Split is the computed decomposition of one revenue period. All fields
// are minor units. ShareholderAmount is never negative; a loss period
// shows up as Deficit instead.
type Split struct {
	TotalRevenue      int64
	OperatingExpenses int64
	RoyaltyAmount     int64
	PlatformFee       int64
	ManagerBonus      int64
	EmployeeBonuses   int64
	NetProfit         int64
	Deficit           int64
	ShareholderAmount int64
}

// ComputeSplit decomposes a revenue period into its split components.
// The identity revenue = opex + royalty + fee + bonuses + netProfit is
// verified after computation; a mismatch means corrupted arithmetic and
// must never be persisted.
func ComputeSplit(totalRevenue, operatingExpenses int64, pct SplitPercents) (Split, error) {
	if totalRevenue < 0 {
		return Split{}, errors.NewValidationError("total revenue must be non-negative")
	}
	if operatingExpenses < 0 {
		return Split{}, errors.NewValidationError("operating expenses must be non-negative")
	}

	s := Split{
		TotalRevenue:      totalRevenue,
		OperatingExpenses: operatingExpenses,
		RoyaltyAmount:     money.Bps(totalRevenue, pct.RoyaltyBps),
		PlatformFee:       money.Bps(totalRevenue, pct.PlatformFeeBps),
		ManagerBonus:      money.Bps(totalRevenue, pct.ManagerBonusBps),
		EmployeeBonuses:   money.Bps(totalRevenue, pct.EmployeeBonusBps),
	}
	s.NetProfit = totalRevenue - operatingExpenses - s.RoyaltyAmount -
		s.PlatformFee - s.ManagerBonus - s.EmployeeBonuses

	if s.NetProfit >= 0 {
		s.ShareholderAmount = s.NetProfit
	} else {
		s.Deficit = -s.NetProfit
	}

	resum := operatingExpenses + s.RoyaltyAmount + s.PlatformFee +
		s.ManagerBonus + s.EmployeeBonuses + s.NetProfit
	if resum != totalRevenue {
		return Split{}, errors.NewArithmeticError(fmt.Sprintf(
			"split components sum to %d, expected %d", resum, totalRevenue))
	}
	return s, nil
}

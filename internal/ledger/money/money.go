// internal/ledger/money/money.go
// Package money implements the integer arithmetic shared by the ledger
// components. All amounts are int64 minor units (cents); percentages
// are basis points (1/100th of a percent). Integer math keeps every
// split and allocation exact: no floating remainder can appear.
package money

import "fmt"

// BpsDenominator is the number of basis points in 100%.
const BpsDenominator = 10000

// Bps returns amount * bps / 10000, truncated toward zero.
func Bps(amount, bps int64) int64 {
	return amount * bps / BpsDenominator
}

// Allocate splits total across weights pro-rata using floor division,
// assigning the rounding remainder to the largest weight so the parts
// always sum to total exactly. Ties on the largest weight resolve to
// the earliest index, which callers keep deterministic by ordering
// their holders. A zero weight sum returns nil.
func Allocate(total int64, weights []int64) []int64 {
	var weightSum int64
	for _, w := range weights {
		weightSum += w
	}
	if weightSum <= 0 || len(weights) == 0 {
		return nil
	}

	parts := make([]int64, len(weights))
	var allocated int64
	largest := 0
	for i, w := range weights {
		parts[i] = total * w / weightSum
		allocated += parts[i]
		if w > weights[largest] {
			largest = i
		}
	}

	parts[largest] += total - allocated
	return parts
}

// FormatCents renders minor units as a decimal string, e.g. 680000 ->
// "6800.00". Used for statements and audit documents.
func FormatCents(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

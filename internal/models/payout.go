// internal/models/payout.go
package models

import "time"

// PayoutStatus is the settlement state machine of a payout. Transitions
// are monotonic: pending -> processing -> completed|failed. Terminal
// states absorb.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Payout is the computed split of one franchise revenue period. There is
// at most one per (franchiseId, payoutDate), enforced by the store.
// Amounts are minor units.
type Payout struct {
	ID                string       `json:"id"`
	FranchiseID       string       `json:"franchiseId"`
	PayoutDate        time.Time    `json:"payoutDate"`
	TotalRevenue      int64        `json:"totalRevenue"`
	OperatingExpenses int64        `json:"operatingExpenses"`
	RoyaltyAmount     int64        `json:"royaltyAmount"`
	PlatformFee       int64        `json:"platformFee"`
	ManagerBonus      int64        `json:"managerBonus"`
	EmployeeBonuses   int64        `json:"employeeBonuses"`
	NetProfit         int64        `json:"netProfit"`
	Deficit           int64        `json:"deficit"`
	ShareholderAmount int64        `json:"shareholderAmount"`
	Status            PayoutStatus `json:"status"`
	TransactionHash   string       `json:"transactionHash,omitempty"`
	ProcessedAt       *time.Time   `json:"processedAt,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// DistributionStatus mirrors the settlement progress of the parent payout.
type DistributionStatus string

const (
	DistributionStatusPending   DistributionStatus = "pending"
	DistributionStatusCompleted DistributionStatus = "completed"
	DistributionStatusFailed    DistributionStatus = "failed"
)

// Distribution is one investor's pro-rata slice of a payout's
// shareholder remainder, snapshotted from the cap table at computation
// time. Immutable once created except for status.
type Distribution struct {
	ID              string             `json:"id"`
	PayoutID        string             `json:"payoutId"`
	InvestorID      string             `json:"investorId"`
	WalletID        string             `json:"walletId"`
	Shares          int64              `json:"shares"`
	ShareBps        int64              `json:"shareBps"`
	Amount          int64              `json:"amount"`
	Status          DistributionStatus `json:"status"`
	TransactionHash string             `json:"transactionHash,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

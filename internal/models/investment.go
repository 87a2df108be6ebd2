// internal/models/investment.go
package models

import "time"

// InvestmentStatus tracks the lifecycle of a franchise funding round.
type InvestmentStatus string

const (
	InvestmentStatusDraft     InvestmentStatus = "draft"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is the funding round of a single franchise outlet.
// All monetary amounts are minor units (cents).
type Investment struct {
	ID                string           `json:"id"`
	FranchiseID       string           `json:"franchiseId"`
	TotalInvestment   int64            `json:"totalInvestment"`
	TotalInvested     int64            `json:"totalInvested"`
	SharesIssued      int64            `json:"sharesIssued"`
	SharesPurchased   int64            `json:"sharesPurchased"`
	SharePrice        int64            `json:"sharePrice"`
	MinimumInvestment int64            `json:"minimumInvestment"`
	Status            InvestmentStatus `json:"status"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// PurchaseStatus tracks a share purchase from reservation to confirmation.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
)

// SharePurchase is one investor transaction against a funding round.
// Only confirmed purchases count toward ownership.
type SharePurchase struct {
	ID          string         `json:"id"`
	FranchiseID string         `json:"franchiseId"`
	InvestorID  string         `json:"investorId"`
	Shares      int64          `json:"shares"`
	SharePrice  int64          `json:"sharePrice"`
	TotalAmount int64          `json:"totalAmount"`
	Status      PurchaseStatus `json:"status"`
	PurchasedAt time.Time      `json:"purchasedAt"`
}

// Holder is one row of the derived cap table. BasisPoints is the
// investor's share of the round in 1/100ths of a percent.
type Holder struct {
	InvestorID  string `json:"investorId"`
	Shares      int64  `json:"shares"`
	BasisPoints int64  `json:"basisPoints"`
}

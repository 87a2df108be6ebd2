// internal/models/wallet.go
package models

import "time"

// WalletOwnerType identifies which kind of party a wallet belongs to.
type WalletOwnerType string

const (
	WalletOwnerFranchise WalletOwnerType = "franchise"
	WalletOwnerBrand     WalletOwnerType = "brand"
	WalletOwnerInvestor  WalletOwnerType = "investor"
)

// Wallet holds a cached balance and aggregate counters for one party.
// The transaction journal is the source of truth; the cached fields are
// a recomputable optimization maintained by the wallet service and the
// reconciliation job.
type Wallet struct {
	ID             string          `json:"id"`
	OwnerType      WalletOwnerType `json:"ownerType"`
	OwnerID        string          `json:"ownerId"`
	Address        string          `json:"address"`
	Balance        int64           `json:"balance"`
	TotalIncome    int64           `json:"totalIncome"`
	TotalExpenses  int64           `json:"totalExpenses"`
	TotalPayouts   int64           `json:"totalPayouts"`
	TotalRoyalties int64           `json:"totalRoyalties"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// TransactionType classifies a wallet journal entry.
type TransactionType string

const (
	TransactionTypeRevenue  TransactionType = "revenue"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeRoyalty  TransactionType = "royalty"
	TransactionTypeTransfer TransactionType = "transfer"
	TransactionTypePayout   TransactionType = "payout"
)

// TransactionStatus is the finalization state of a journal entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// WalletTransaction is an immutable, append-only journal row. Amount is
// signed minor units; never mutated after creation except status
// finalization.
type WalletTransaction struct {
	ID          string            `json:"id"`
	WalletID    string            `json:"walletId"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	Reference   TxReference       `json:"reference"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// TxReference is the resolved origin of a journal entry: either a free
// label or a typed entity reference. Resolution happens once, at write
// time, never by guessing at read time.
type TxReference struct {
	Kind     string `json:"kind"` // "label" or "entity"
	Label    string `json:"label,omitempty"`
	Entity   string `json:"entity,omitempty"` // e.g. "payout", "expense"
	EntityID string `json:"entityId,omitempty"`
}

// LabelRef builds a raw-label reference.
func LabelRef(label string) TxReference {
	return TxReference{Kind: "label", Label: label}
}

// EntityRef builds a typed entity reference.
func EntityRef(entity, id string) TxReference {
	return TxReference{Kind: "entity", Entity: entity, EntityID: id}
}

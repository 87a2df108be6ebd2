// internal/models/budget.go
package models

import "time"

// BudgetAllocations are the per-category envelopes of a monthly budget,
// in minor units.
type BudgetAllocations struct {
	Marketing     int64 `json:"marketing"`
	Payroll       int64 `json:"payroll"`
	Rent          int64 `json:"rent"`
	Utilities     int64 `json:"utilities"`
	Inventory     int64 `json:"inventory"`
	Equipment     int64 `json:"equipment"`
	Insurance     int64 `json:"insurance"`
	Maintenance   int64 `json:"maintenance"`
	Miscellaneous int64 `json:"miscellaneous"`
}

// Total sums the category envelopes. The upsert does not require this to
// equal MonthlyBudget; the breakdown surfaces the variance instead.
func (a BudgetAllocations) Total() int64 {
	return a.Marketing + a.Payroll + a.Rent + a.Utilities + a.Inventory +
		a.Equipment + a.Insurance + a.Maintenance + a.Miscellaneous
}

// Budget is one franchise's envelope for a (month, year) period.
type Budget struct {
	ID            string            `json:"id"`
	FranchiseID   string            `json:"franchiseId"`
	Month         int               `json:"month"`
	Year          int               `json:"year"`
	MonthlyBudget int64             `json:"monthlyBudget"`
	Allocations   BudgetAllocations `json:"allocations"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Expense is an operating cost posting against a franchise. Creating one
// also writes the matching wallet journal entry; the two are atomic.
type Expense struct {
	ID                  string    `json:"id"`
	FranchiseID         string    `json:"franchiseId"`
	Category            string    `json:"category"`
	Amount              int64     `json:"amount"`
	ExpenseDate         time.Time `json:"expenseDate"`
	PaymentMethod       string    `json:"paymentMethod"`
	Description         string    `json:"description"`
	WalletTransactionID string    `json:"walletTransactionId"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ExpenseSummary aggregates expenses for one franchise and period.
type ExpenseSummary struct {
	FranchiseID     string           `json:"franchiseId"`
	Month           int              `json:"month"`
	Year            int              `json:"year"`
	ActualExpenses  int64            `json:"actualExpenses"`
	ByCategory      map[string]int64 `json:"byCategory"`
	ByPaymentMethod map[string]int64 `json:"byPaymentMethod"`
}

// CategoryVariance is one row of the budget breakdown: allocated vs
// spent for a category, spent derived from the expense aggregates.
type CategoryVariance struct {
	Category  string `json:"category"`
	Allocated int64  `json:"allocated"`
	Spent     int64  `json:"spent"`
	Variance  int64  `json:"variance"`
}

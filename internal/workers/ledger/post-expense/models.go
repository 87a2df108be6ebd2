// internal/workers/ledger/post-expense/models.go
package postexpense

type Input struct {
	FranchiseID   string `json:"franchiseId"`
	Category      string `json:"category"`
	Amount        int64  `json:"amount"`
	ExpenseDate   string `json:"expenseDate"` // YYYY-MM-DD
	PaymentMethod string `json:"paymentMethod"`
	Description   string `json:"description"`
}

type Output struct {
	ExpenseID           string `json:"expenseId"`
	WalletTransactionID string `json:"walletTransactionId"`
}

// internal/workers/payout/settle-payout/models.go
package settlepayout

type Input struct {
	PayoutID string `json:"payoutId"`
}

type Output struct {
	PayoutID        string `json:"payoutId"`
	Status          string `json:"payoutStatus"`
	TransactionHash string `json:"transactionHash,omitempty"`
	ProcessedAt     string `json:"processedAt,omitempty"` // RFC 3339
}

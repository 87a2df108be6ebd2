// internal/workers/payout/create-payout/models.go
package createpayout

type Input struct {
	FranchiseID       string `json:"franchiseId"`
	PayoutDate        string `json:"payoutDate"` // YYYY-MM-DD
	TotalRevenue      int64  `json:"totalRevenue"`
	OperatingExpenses int64  `json:"operatingExpenses"`
}

type Output struct {
	PayoutID          string `json:"payoutId"`
	Status            string `json:"payoutStatus"`
	NetProfit         int64  `json:"netProfit"`
	Deficit           int64  `json:"deficit"`
	ShareholderAmount int64  `json:"shareholderAmount"`
	Distributions     int    `json:"distributionCount"`
}

// internal/ledger/payout/indexer.go
package payout

import (
	"context"
	"encoding/json"
	"time"

	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/ledger/money"
	"franchise-ledger/internal/models"
)

// Indexer records settled payouts for audit search. Indexing happens
// after the settlement transaction commits and never blocks it.
type Indexer interface {
	IndexPayout(ctx context.Context, p *models.Payout, dists []models.Distribution) error
}

// AuditIndexer writes settled payouts into an Elasticsearch index. The
// document carries both raw minor units and formatted amounts so audit
// queries can filter numerically and display directly.
type AuditIndexer struct {
	es    *database.ElasticsearchClient
	index string
}

func NewAuditIndexer(es *database.ElasticsearchClient, index string) *AuditIndexer {
	return &AuditIndexer{es: es, index: index}
}

type auditDistribution struct {
	InvestorID     string `json:"investorId"`
	Shares         int64  `json:"shares"`
	ShareBps       int64  `json:"shareBps"`
	Amount         int64  `json:"amount"`
	AmountDecimal  string `json:"amountDecimal"`
	Status         string `json:"status"`
	TransactionRef string `json:"transactionRef,omitempty"`
}

type auditDocument struct {
	PayoutID           string              `json:"payoutId"`
	FranchiseID        string              `json:"franchiseId"`
	PayoutDate         string              `json:"payoutDate"`
	Status             string              `json:"status"`
	TotalRevenue       int64               `json:"totalRevenue"`
	TotalRevenueDec    string              `json:"totalRevenueDecimal"`
	OperatingExpenses  int64               `json:"operatingExpenses"`
	RoyaltyAmount      int64               `json:"royaltyAmount"`
	PlatformFee        int64               `json:"platformFee"`
	ManagerBonus       int64               `json:"managerBonus"`
	EmployeeBonuses    int64               `json:"employeeBonuses"`
	NetProfit          int64               `json:"netProfit"`
	Deficit            int64               `json:"deficit"`
	ShareholderAmount  int64               `json:"shareholderAmount"`
	ShareholderDecimal string              `json:"shareholderAmountDecimal"`
	TransactionHash    string              `json:"transactionHash,omitempty"`
	ProcessedAt        *time.Time          `json:"processedAt,omitempty"`
	Distributions      []auditDistribution `json:"distributions"`
	IndexedAt          time.Time           `json:"indexedAt"`
}

func (a *AuditIndexer) IndexPayout(ctx context.Context, p *models.Payout, dists []models.Distribution) error {
	doc := auditDocument{
		PayoutID:           p.ID,
		FranchiseID:        p.FranchiseID,
		PayoutDate:         p.PayoutDate.Format("2006-01-02"),
		Status:             string(p.Status),
		TotalRevenue:       p.TotalRevenue,
		TotalRevenueDec:    money.FormatCents(p.TotalRevenue),
		OperatingExpenses:  p.OperatingExpenses,
		RoyaltyAmount:      p.RoyaltyAmount,
		PlatformFee:        p.PlatformFee,
		ManagerBonus:       p.ManagerBonus,
		EmployeeBonuses:    p.EmployeeBonuses,
		NetProfit:          p.NetProfit,
		Deficit:            p.Deficit,
		ShareholderAmount:  p.ShareholderAmount,
		ShareholderDecimal: money.FormatCents(p.ShareholderAmount),
		TransactionHash:    p.TransactionHash,
		ProcessedAt:        p.ProcessedAt,
		IndexedAt:          time.Now().UTC(),
	}
	for _, d := range dists {
		doc.Distributions = append(doc.Distributions, auditDistribution{
			InvestorID:     d.InvestorID,
			Shares:         d.Shares,
			ShareBps:       d.ShareBps,
			Amount:         d.Amount,
			AmountDecimal:  money.FormatCents(d.Amount),
			Status:         string(d.Status),
			TransactionRef: d.TransactionHash,
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewAuditIndexFailedError(err)
	}
	if err := a.es.Index(ctx, a.index, p.ID, body); err != nil {
		return errors.NewAuditIndexFailedError(err)
	}
	return nil
}

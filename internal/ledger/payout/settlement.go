// internal/ledger/payout/settlement.go
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"franchise-ledger/internal/common/config"
	"franchise-ledger/internal/common/errors"
	commonhttp "franchise-ledger/internal/common/http"
	"franchise-ledger/internal/common/logger"
)

// TransferRequest is one settlement instruction. Reference is stable
// per transfer ("royalty" or a distribution id) so the idempotency key
// stays constant across settle attempts of the same payout.
type TransferRequest struct {
	PayoutID    string `json:"payoutId"`
	Reference   string `json:"reference"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      int64  `json:"amount"`
}

// TransferResult is the settlement network's acknowledgement.
type TransferResult struct {
	TransactionHash string `json:"transactionHash"`
}

// Settler executes transfers on the external settlement network. The
// engine treats it as opaque: any error fails the payout, and the
// engine never retries a transfer on its own.
type Settler interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// HTTPSettler talks to the settlement service over HTTP. The payout id
// plus transfer reference form the idempotency key, so the service can
// deduplicate replays after partial failures.
type HTTPSettler struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func NewHTTPSettler(cfg config.SettlementConfig, log logger.Logger) *HTTPSettler {
	return &HTTPSettler{
		client:  commonhttp.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  log.WithFields(map[string]interface{}{"component": "settler"}),
	}
}

func (s *HTTPSettler) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewSettlementFailedError(err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, s.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewSettlementFailedError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", s.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.PayoutID+":"+req.Reference)

	resp, err := s.client.DoWithContext(ctx, httpReq)
	if err != nil {
		return nil, errors.NewSettlementFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("settlement transfer rejected", map[string]interface{}{
			"payoutId":  req.PayoutID,
			"reference": req.Reference,
			"status":    resp.StatusCode,
			"body":      string(payload),
		})
		return nil, errors.NewSettlementFailedError(
			fmt.Errorf("settlement service returned %d", resp.StatusCode))
	}

	var result TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewSettlementFailedError(err)
	}
	return &result, nil
}

// internal/workers/payout/create-payout/handler.go
package createpayout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "ledger-create-payout"
)

var inputSchema = validation.Object(
	[]string{"franchiseId", "payoutDate", "totalRevenue"},
	map[string]interface{}{
		"franchiseId":       validation.String(),
		"payoutDate":        validation.String(),
		"totalRevenue":      validation.Integer(0),
		"operatingExpenses": validation.Integer(0),
	},
)

// PayoutCreator is the engine surface this worker drives.
type PayoutCreator interface {
	CreatePayout(ctx context.Context, franchiseID string, payoutDate time.Time, totalRevenue, operatingExpenses int64) (*models.Payout, []models.Distribution, error)
}

type Handler struct {
	config *Config
	engine PayoutCreator
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, engine PayoutCreator, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &doc); err != nil {
		h.errors.HandleJobError(ctx, client, job,
			errors.NewValidationError(fmt.Sprintf("parse variables: %v", err)))
		return
	}
	if err := validation.Validate(doc, inputSchema); err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job,
			errors.NewValidationError(fmt.Sprintf("decode input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	payoutDate, err := time.Parse("2006-01-02", input.PayoutDate)
	if err != nil {
		return nil, errors.NewValidationError("payoutDate must be YYYY-MM-DD: " + input.PayoutDate)
	}

	p, dists, err := h.engine.CreatePayout(ctx, input.FranchiseID, payoutDate,
		input.TotalRevenue, input.OperatingExpenses)
	if err != nil {
		return nil, err
	}

	return &Output{
		PayoutID:          p.ID,
		Status:            string(p.Status),
		NetProfit:         p.NetProfit,
		Deficit:           p.Deficit,
		ShareholderAmount: p.ShareholderAmount,
		Distributions:     len(dists),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

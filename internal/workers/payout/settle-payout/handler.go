// internal/workers/payout/settle-payout/handler.go
package settlepayout

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
	TaskType = "ledger-settle-payout"
)

var inputSchema = validation.Object(
	[]string{"payoutId"},
	map[string]interface{}{
		"payoutId": validation.String(),
	},
)

// PayoutSettler is the engine surface this worker drives.
type PayoutSettler interface {
	SettlePayout(ctx context.Context, payoutID string) (*models.Payout, error)
}

type Handler struct {
	config *Config
	engine PayoutSettler
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, engine PayoutSettler, log logger.Logger) *Handler {
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
	p, err := h.engine.SettlePayout(ctx, input.PayoutID)
	if err != nil {
		return nil, err
	}

	output := &Output{
		PayoutID:        p.ID,
		Status:          string(p.Status),
		TransactionHash: p.TransactionHash,
	}
	if p.ProcessedAt != nil {
		output.ProcessedAt = p.ProcessedAt.Format(time.RFC3339)
	}
	return output, nil
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

// internal/workers/ledger/post-expense/handler.go
package postexpense

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
	TaskType = "ledger-post-expense"
)

var inputSchema = validation.Object(
	[]string{"franchiseId", "category", "amount", "expenseDate", "paymentMethod"},
	map[string]interface{}{
		"franchiseId": validation.String(),
		"category": validation.Enum("marketing", "payroll", "rent", "utilities",
			"inventory", "equipment", "insurance", "maintenance", "miscellaneous"),
		"amount":        validation.Integer(1),
		"expenseDate":   validation.String(),
		"paymentMethod": validation.String(),
		"description":   map[string]interface{}{"type": "string"},
	},
)

// ExpenseWriter is the budget service surface this worker drives.
type ExpenseWriter interface {
	PostExpense(ctx context.Context, franchiseID, category string, amount int64, expenseDate time.Time, paymentMethod, description string) (*models.Expense, error)
}

type Handler struct {
	config  *Config
	budgets ExpenseWriter
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, budgets ExpenseWriter, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		budgets: budgets,
		errors:  errors.NewErrorHandler(log),
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	expenseDate, err := time.Parse("2006-01-02", input.ExpenseDate)
	if err != nil {
		return nil, errors.NewValidationError("expenseDate must be YYYY-MM-DD: " + input.ExpenseDate)
	}

	expense, err := h.budgets.PostExpense(ctx, input.FranchiseID, input.Category,
		input.Amount, expenseDate, input.PaymentMethod, input.Description)
	if err != nil {
		return nil, err
	}

	return &Output{
		ExpenseID:           expense.ID,
		WalletTransactionID: expense.WalletTransactionID,
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

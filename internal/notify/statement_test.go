// internal/notify/statement_test.go
package notify

import (
	"context"
	"testing"
	"time"

	ledgererrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	sent []*ses.SendEmailInput
	err  error
}

func (f *fakeEmailSender) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, input)
	return &ses.SendEmailOutput{}, nil
}

type fakeSMSSender struct {
	sent []*sns.PublishInput
}

func (f *fakeSMSSender) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.sent = append(f.sent, input)
	return &sns.PublishOutput{}, nil
}

type staticContacts map[string]Contact

func (s staticContacts) Resolve(_ context.Context, investorID string) (Contact, error) {
	c, ok := s[investorID]
	if !ok {
		return Contact{}, ledgererrors.NewNotFoundError("investor", investorID)
	}
	return c, nil
}

func settledPayout() (*models.Payout, []models.Distribution) {
	processedAt := time.Now().UTC()
	p := &models.Payout{
		ID:                "payout-001",
		FranchiseID:       "franchise-001",
		PayoutDate:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		ShareholderAmount: 680000,
		Status:            models.PayoutStatusCompleted,
		TransactionHash:   "0xroyalty",
		ProcessedAt:       &processedAt,
	}
	dists := []models.Distribution{
		{ID: "dist-1", PayoutID: p.ID, InvestorID: "investor-001", Shares: 600,
			ShareBps: 6000, Amount: 408000, Status: models.DistributionStatusCompleted,
			TransactionHash: "0xh1"},
		{ID: "dist-2", PayoutID: p.ID, InvestorID: "investor-002", Shares: 400,
			ShareBps: 4000, Amount: 272000, Status: models.DistributionStatusCompleted,
			TransactionHash: "0xh2"},
	}
	return p, dists
}

func TestPayoutSettled_SendsPerChannel(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	contacts := staticContacts{
		"investor-001": {Email: "one@example.com", Phone: "+15550000001"},
		"investor-002": {Email: "two@example.com"},
	}
	svc := NewStatementService(email, sms, contacts, "ledger@example.com", true, true, logger.NewTestLogger(t))

	p, dists := settledPayout()
	err := svc.PayoutSettled(context.Background(), p, dists)

	require.NoError(t, err)
	require.Len(t, email.sent, 2)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "ledger@example.com", *email.sent[0].Source)
	assert.Equal(t, []string{"one@example.com"}, email.sent[0].Destination.ToAddresses)
	assert.Contains(t, *email.sent[0].Message.Body.Text.Data, "4080.00")
	assert.Contains(t, *sms.sent[0].Message, "4080.00")
	assert.Equal(t, "+15550000001", *sms.sent[0].PhoneNumber)
}

func TestPayoutSettled_DisabledChannelsSendNothing(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	contacts := staticContacts{
		"investor-001": {Email: "one@example.com", Phone: "+15550000001"},
		"investor-002": {Email: "two@example.com"},
	}
	svc := NewStatementService(email, sms, contacts, "ledger@example.com", false, false, logger.NewTestLogger(t))

	p, dists := settledPayout()
	err := svc.PayoutSettled(context.Background(), p, dists)

	require.NoError(t, err)
	assert.Empty(t, email.sent)
	assert.Empty(t, sms.sent)
}

func TestPayoutSettled_ReportsDeliveryFailure(t *testing.T) {
	email := &fakeEmailSender{err: assert.AnError}
	contacts := staticContacts{
		"investor-001": {Email: "one@example.com"},
		"investor-002": {Email: "two@example.com"},
	}
	svc := NewStatementService(email, &fakeSMSSender{}, contacts, "ledger@example.com", true, false, logger.NewTestLogger(t))

	p, dists := settledPayout()
	err := svc.PayoutSettled(context.Background(), p, dists)

	require.Error(t, err)
	assert.Equal(t, ledgererrors.ErrCodeNotificationSendFailed, ledgererrors.CodeOf(err))
}

func TestPayoutSettled_UnknownInvestorReported(t *testing.T) {
	svc := NewStatementService(&fakeEmailSender{}, &fakeSMSSender{}, staticContacts{},
		"ledger@example.com", true, true, logger.NewTestLogger(t))

	p, dists := settledPayout()
	err := svc.PayoutSettled(context.Background(), p, dists)

	assert.True(t, ledgererrors.IsNotFound(err))
}

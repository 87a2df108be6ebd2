// internal/notify/statement.go
// Package notify delivers payout statements to investors after
// settlement. Delivery is best-effort: a failed statement is logged and
// reported, never unwound into the settled payout.
package notify

import (
	"context"
	"database/sql"
	"fmt"

	"franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/ledger/money"
	"franchise-ledger/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// EmailSender is the SES surface the statement service needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the SNS surface the statement service needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Contact is an investor's delivery endpoints. Empty fields skip that
// channel.
type Contact struct {
	Email string
	Phone string
}

// ContactResolver maps an investor id to delivery endpoints.
type ContactResolver interface {
	Resolve(ctx context.Context, investorID string) (Contact, error)
}

// SQLContactResolver reads investor contacts from the platform's
// investor directory.
type SQLContactResolver struct {
	db *sql.DB
}

func NewSQLContactResolver(db *sql.DB) *SQLContactResolver {
	return &SQLContactResolver{db: db}
}

func (r *SQLContactResolver) Resolve(ctx context.Context, investorID string) (Contact, error) {
	var c Contact
	var email, phone sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT email, phone FROM investors WHERE id = $1`,
		investorID).Scan(&email, &phone)
	if err == sql.ErrNoRows {
		return Contact{}, errors.NewNotFoundError("investor", investorID)
	}
	if err != nil {
		return Contact{}, errors.NewQueryExecutionFailedError("resolve investor contact", err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return c, nil
}

// StatementService sends one payout statement per distribution over the
// enabled channels.
type StatementService struct {
	email        EmailSender
	sms          SMSSender
	contacts     ContactResolver
	fromEmail    string
	emailEnabled bool
	smsEnabled   bool
	logger       logger.Logger
}

func NewStatementService(email EmailSender, sms SMSSender, contacts ContactResolver, fromEmail string, emailEnabled, smsEnabled bool, log logger.Logger) *StatementService {
	return &StatementService{
		email:        email,
		sms:          sms,
		contacts:     contacts,
		fromEmail:    fromEmail,
		emailEnabled: emailEnabled,
		smsEnabled:   smsEnabled,
		logger:       log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// PayoutSettled sends statements for every distribution of a settled
// payout. Individual delivery failures are logged and collected; the
// last one is returned so the caller can record the incident.
func (s *StatementService) PayoutSettled(ctx context.Context, p *models.Payout, dists []models.Distribution) error {
	var lastErr error
	for _, d := range dists {
		if err := s.sendStatement(ctx, p, d); err != nil {
			s.logger.Warn("statement delivery failed", map[string]interface{}{
				"payoutId":   p.ID,
				"investorId": d.InvestorID,
				"error":      err.Error(),
			})
			lastErr = err
		}
	}
	return lastErr
}

func (s *StatementService) sendStatement(ctx context.Context, p *models.Payout, d models.Distribution) error {
	contact, err := s.contacts.Resolve(ctx, d.InvestorID)
	if err != nil {
		return err
	}

	period := p.PayoutDate.Format("2006-01-02")
	subject := fmt.Sprintf("Payout statement for %s", period)
	body := fmt.Sprintf(
		"Your payout for period %s has been settled.\n\n"+
			"Holding: %d shares (%s%%)\n"+
			"Amount: %s\n"+
			"Transaction: %s\n",
		period, d.Shares, money.FormatCents(d.ShareBps), // bps/100 renders as percent
		money.FormatCents(d.Amount), d.TransactionHash,
	)

	if s.emailEnabled && contact.Email != "" {
		if err := s.sendEmail(ctx, contact.Email, subject, body); err != nil {
			return err
		}
	}
	if s.smsEnabled && contact.Phone != "" {
		sms := fmt.Sprintf("Payout settled: %s for period %s.",
			money.FormatCents(d.Amount), period)
		if err := s.sendSMS(ctx, contact.Phone, sms); err != nil {
			return err
		}
	}
	return nil
}

func (s *StatementService) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (s *StatementService) sendSMS(ctx context.Context, phone, message string) error {
	_, err := s.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}

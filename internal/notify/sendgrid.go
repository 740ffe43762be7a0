package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailOptions parameterise the SendGrid channel.
type EmailOptions struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// EmailNotifier sends the consolidated summary through SendGrid.
type EmailNotifier struct {
	opts   EmailOptions
	client *sendgrid.Client
	logger zerolog.Logger
}

// NewEmailNotifier constructs the SendGrid notifier.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		opts:   opts,
		client: sendgrid.NewSendClient(opts.APIKey),
		logger: logger.With().Str("component", "notify_email").Logger(),
	}
}

// Send delivers one summary email.
func (n *EmailNotifier) Send(ctx context.Context, to Recipient, summary Summary) error {
	if to.Email == "" {
		return errors.New("recipient email is empty")
	}
	if summary.Total <= 0 {
		return errors.New("refusing to send an empty summary")
	}

	subject, body := renderSummary(to, summary)
	from := mail.NewEmail(n.opts.FromName, n.opts.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail(to.FirstName, to.Email), body, body)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}

	n.logger.Info().
		Str("account_id", summary.AccountID).
		Int("total", summary.Total).
		Int("status", resp.StatusCode).
		Msg("summary email sent")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)

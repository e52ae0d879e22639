package mailer

import (
	"context"
	"errors"
	"net/http"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// Mailgun wraps Mailgun client configuration.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string

	// APIBase overrides the Mailgun endpoint (EU region, tests).
	APIBase string
	Timeout time.Duration
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender, Timeout: 10 * time.Second}
}

// Send sends one message with an HTML body and a plain-text fallback.
func (m *Mailgun) Send(ctx context.Context, to valueobject.EmailAddress, subject, htmlBody, plainBody string) error {
	client := mg.NewMailgun(m.Domain, m.APIKey)
	if m.APIBase != "" {
		client.SetAPIBase(m.APIBase)
	}
	msg := client.NewMessage(m.Sender, subject, plainBody, to.String())
	if htmlBody != "" {
		msg.SetHtml(htmlBody)
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, _, err := client.Send(c, msg); err != nil {
		return classifyMailgunError(err)
	}
	return nil
}

func classifyMailgunError(err error) error {
	var ure *mg.UnexpectedResponseError
	if errors.As(err, &ure) {
		if ure.Actual == http.StatusBadRequest {
			return apperror.ErrMailInvalidRecipient(err)
		}
		return apperror.ErrMailSendFailed(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ErrMailSendFailed(err)
	}
	return apperror.ErrMailUnknown(err)
}

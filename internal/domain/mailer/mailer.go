package mailer

import (
	"context"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// Mailer delivers one message with an HTML body and a plain-text alternative.
// Failures are reported as mail_send_failed, mail_invalid_recipient or mail_unknown.
type Mailer interface {
	Send(ctx context.Context, to valueobject.EmailAddress, subject, htmlBody, plainBody string) error
}

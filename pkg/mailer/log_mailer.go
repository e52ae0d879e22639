package mailer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// LogMailer writes messages to the log instead of sending them. Development only:
// the plain body contains the confirmation link.
type LogMailer struct {
	Logger *logrus.Logger
}

func (l LogMailer) Send(_ context.Context, to valueobject.EmailAddress, subject, _, plainBody string) error {
	l.Logger.WithFields(logrus.Fields{
		"to":      to.String(),
		"subject": subject,
	}).Info(plainBody)
	return nil
}

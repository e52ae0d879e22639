package mailer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// Insecure allows plaintext when the server offers no STARTTLS.
	Insecure bool
}

// SMTP sends multipart/alternative messages through an SMTP relay.
type SMTP struct {
	cfg    SMTPConfig
	logger *logrus.Logger
}

func NewSMTP(cfg SMTPConfig, logger *logrus.Logger) *SMTP {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SMTP{cfg: cfg, logger: logger}
}

func (s *SMTP) Send(ctx context.Context, to valueobject.EmailAddress, subject, htmlBody, plainBody string) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return apperror.ErrMailUnknown(err)
	}
	if err := m.To(to.String()); err != nil {
		return apperror.ErrMailInvalidRecipient(err)
	}
	m.Subject(subject)

	// plain text first, HTML as the preferred alternative
	m.SetBodyString(mail.TypeTextPlain, plainBody)
	if htmlBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}

	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return apperror.ErrMailUnknown(err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.WithError(err).WithField("host", s.cfg.Host).Warn("smtp send failed")
		return apperror.ErrMailSendFailed(err)
	}
	s.logger.WithField("host", s.cfg.Host).Debug("smtp send ok")
	return nil
}

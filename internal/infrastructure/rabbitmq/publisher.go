package rabbitmq

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/internal/application"
)

// JSONPublisher is satisfied by *helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, messageID string, body any) error
}

// ConfirmationPublisher hands confirmation jobs to the broker. The worker
// binary consumes them. Publish failures are logged, never returned.
type ConfirmationPublisher struct {
	pub     JSONPublisher
	logger  *logrus.Logger
	timeout time.Duration
}

func NewConfirmationPublisher(pub JSONPublisher, logger *logrus.Logger, timeout time.Duration) *ConfirmationPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ConfirmationPublisher{pub: pub, logger: logger, timeout: timeout}
}

func (p *ConfirmationPublisher) Dispatch(ctx context.Context, job application.ConfirmationJob) {
	// the request may end before the broker answers
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.pub.PublishJSON(ctx, job.MessageID, job); err != nil {
		p.logger.WithError(err).WithField("user_id", job.UserID).Warn("publish confirmation job failed")
		return
	}
	p.logger.WithField("user_id", job.UserID).Debug("confirmation job queued")
}

var _ application.ConfirmationDispatcher = (*ConfirmationPublisher)(nil)

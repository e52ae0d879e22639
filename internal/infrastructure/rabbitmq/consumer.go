package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/internal/application"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
)

// Decision tells the consume loop what to do with a delivery.
type Decision int

const (
	Ack Decision = iota
	Requeue
	Drop
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

// Guard deduplicates deliveries by message id. *redisstore.JobGuard satisfies it.
type Guard interface {
	Acquire(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

// ConfirmationConsumer turns queued confirmation jobs into sent emails.
type ConfirmationConsumer struct {
	Proc       application.ConfirmationJobProcessor
	Guard      Guard
	Logger     *logrus.Logger
	JobTimeout time.Duration
}

// Handle processes one message body. Failures of the mail transport, the
// database or the dedup store are retried once through the broker; everything
// else is final.
func (c *ConfirmationConsumer) Handle(ctx context.Context, body []byte, redelivered bool) Decision {
	var job application.ConfirmationJob
	if err := json.Unmarshal(body, &job); err != nil || job.UserID == uuid.Nil {
		c.Logger.WithError(err).Warn("bad confirmation message")
		return Drop
	}
	log := c.Logger.WithField("user_id", job.UserID).WithField("message_id", job.MessageID)

	if c.Guard != nil && job.MessageID != "" {
		fresh, err := c.Guard.Acquire(ctx, job.MessageID)
		if err != nil {
			if redelivered {
				log.WithError(err).Error("dedup check failed twice; dropping")
				return Drop
			}
			log.WithError(err).Warn("dedup check failed; requeueing")
			return Requeue
		}
		if !fresh {
			log.Info("duplicate confirmation message skipped")
			return Ack
		}
	}

	timeout := c.JobTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.Proc.ProcessConfirmationJob(jobCtx, job)
	if err == nil {
		log.Info("confirmation email sent")
		return Ack
	}

	if apperror.KindOf(err) != apperror.KindUnknown {
		log.WithError(err).Warn("confirmation job rejected")
		return Ack
	}

	if c.Guard != nil && job.MessageID != "" {
		if rErr := c.Guard.Release(ctx, job.MessageID); rErr != nil {
			log.WithError(rErr).Warn("release dedup key failed")
		}
	}
	if redelivered {
		log.WithError(err).Error("confirmation job failed twice; dropping")
		return Drop
	}
	log.WithError(err).Warn("confirmation job failed; requeueing")
	return Requeue
}

// Consume runs Handle for every delivery until ctx is done or the channel closes.
func (c *ConfirmationConsumer) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			switch c.Handle(ctx, d.Body, d.Redelivered) {
			case Ack:
				_ = d.Ack(false)
			case Requeue:
				_ = d.Nack(false, true)
			default:
				_ = d.Nack(false, false)
			}
		}
	}
}

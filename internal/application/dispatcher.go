package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConfirmationJob asks for the first confirmation email of a new account.
// It is also the JSON payload on the confirmation queue.
type ConfirmationJob struct {
	MessageID   string    `json:"message_id"`
	UserID      uuid.UUID `json:"user_id"`
	BaseURL     string    `json:"base_url"`
	RequestedAt time.Time `json:"requested_at"`
}

// ConfirmationDispatcher hands a job off without waiting for it.
// Implementations never report failures to the caller; they log them.
type ConfirmationDispatcher interface {
	Dispatch(ctx context.Context, job ConfirmationJob)
}

// ConfirmationJobProcessor runs a job to completion. *Service satisfies it.
type ConfirmationJobProcessor interface {
	ProcessConfirmationJob(ctx context.Context, job ConfirmationJob) error
}

// NoopDispatcher drops every job. Used when outgoing mail is disabled.
type NoopDispatcher struct {
	Logger *logrus.Logger
}

func (d NoopDispatcher) Dispatch(_ context.Context, job ConfirmationJob) {
	if d.Logger != nil {
		d.Logger.WithField("user_id", job.UserID).Debug("mail disabled; confirmation job dropped")
	}
}

type AsyncOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// AsyncDispatcher runs jobs on a fixed set of goroutines fed by a bounded queue.
// Dispatch never blocks: when the queue is full the job is dropped and logged.
type AsyncDispatcher struct {
	proc    ConfirmationJobProcessor
	logger  *logrus.Logger
	timeout time.Duration

	jobs chan ConfirmationJob
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	queued, dropped, sent, failed atomic.Int64
}

// DispatchStats is a snapshot of AsyncDispatcher counters.
type DispatchStats struct {
	Queued  int64 `json:"queued"`
	Dropped int64 `json:"dropped"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Pending int   `json:"pending"`
}

func (d *AsyncDispatcher) Stats() DispatchStats {
	return DispatchStats{
		Queued:  d.queued.Load(),
		Dropped: d.dropped.Load(),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Pending: len(d.jobs),
	}
}

func NewAsyncDispatcher(proc ConfirmationJobProcessor, logger *logrus.Logger, opts AsyncOptions) *AsyncDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := &AsyncDispatcher{
		proc:    proc,
		logger:  logger,
		timeout: opts.JobTimeout,
		jobs:    make(chan ConfirmationJob, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, job ConfirmationJob) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.logger.WithField("user_id", job.UserID).Warn("dispatcher closed; confirmation job dropped")
		return
	}
	select {
	case d.jobs <- job:
		d.queued.Add(1)
	default:
		d.dropped.Add(1)
		d.logger.WithField("user_id", job.UserID).Warn("confirmation queue full; job dropped")
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

func (d *AsyncDispatcher) run(job ConfirmationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.WithField("user_id", job.UserID).WithField("panic", r).Error("confirmation job panicked")
		}
	}()

	if err := d.proc.ProcessConfirmationJob(ctx, job); err != nil {
		d.failed.Add(1)
		d.logger.WithError(err).WithField("user_id", job.UserID).Warn("confirmation email not sent")
		return
	}
	d.sent.Add(1)
	d.logger.WithField("user_id", job.UserID).Debug("confirmation email sent")
}

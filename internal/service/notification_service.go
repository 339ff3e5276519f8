package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/config"
	"github.com/campus-adm/university-api/pkg/jobs"
	"github.com/campus-adm/university-api/pkg/mailer"
)

type outboxStore interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.NotificationOutbox, error)
	MarkSent(ctx context.Context, id string) error
	MarkAttemptFailed(ctx context.Context, id string, deliveryErr string, retryDelay time.Duration, maxAttempts int) error
}

const batchSize = 20

// NotificationDispatcher drains the notification outbox: it polls for due
// entries, fans delivery out to a worker queue, and records the outcome back
// on the row. Retry state lives in the database, so a crashed instance never
// loses a queued notification.
type NotificationDispatcher struct {
	outbox  outboxStore
	sender  mailer.Sender
	queue   *jobs.Queue
	cfg     config.OutboxConfig
	metrics *MetricsService
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationDispatcher constructs the dispatcher.
func NewNotificationDispatcher(outbox outboxStore, sender mailer.Sender, cfg config.OutboxConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{outbox: outbox, sender: sender, cfg: cfg, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("approval-notifications", d.deliver, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return d
}

// Start launches the poll loop and the delivery workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.queue.Start(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				d.dispatchDue(pollCtx)
			}
		}
	}()
	d.logger.Info("notification dispatcher started",
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("workers", d.cfg.Workers))
}

// Stop halts polling and waits for in-flight deliveries to finish.
func (d *NotificationDispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.queue.Stop()
	d.logger.Info("notification dispatcher stopped")
}

func (d *NotificationDispatcher) dispatchDue(ctx context.Context) {
	// Claiming leases the rows for one retry delay, so an in-flight delivery
	// is never re-enqueued by the next tick.
	entries, err := d.outbox.ClaimDue(ctx, batchSize, d.cfg.RetryDelay)
	if err != nil {
		d.logger.Error("failed to poll notification outbox", zap.Error(err))
		return
	}
	for _, entry := range entries {
		job := jobs.Job{ID: entry.ID, Type: "approval-email", Payload: entry}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Warn("failed to enqueue notification", zap.String("outbox_id", entry.ID), zap.Error(err))
			return
		}
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.NotificationOutbox)
	if !ok {
		d.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
		return nil
	}

	var email mailer.ApprovalEmail
	if err := json.Unmarshal(entry.Payload, &email); err != nil {
		// Undeliverable by construction; park it instead of retrying forever.
		d.logger.Error("malformed notification payload", zap.String("outbox_id", entry.ID), zap.Error(err))
		return d.outbox.MarkAttemptFailed(ctx, entry.ID, "malformed payload: "+err.Error(), d.cfg.RetryDelay, entry.Attempts+1)
	}

	if err := d.sender.SendApprovalEmail(ctx, email); err != nil {
		d.metrics.RecordNotification("failed")
		d.logger.Warn("approval email delivery failed",
			zap.String("outbox_id", entry.ID),
			zap.String("registration_id", entry.RegistrationID),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(err))
		return d.outbox.MarkAttemptFailed(ctx, entry.ID, err.Error(), d.cfg.RetryDelay, d.cfg.MaxAttempts)
	}

	if err := d.outbox.MarkSent(ctx, entry.ID); err != nil {
		return err
	}
	d.metrics.RecordNotification("sent")
	d.logger.Info("approval email delivered",
		zap.String("outbox_id", entry.ID),
		zap.String("registration_id", entry.RegistrationID),
		zap.String("recipient", entry.Recipient))
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/database"
)

const outboxColumns = `id, registration_id, recipient, payload, status, attempts,
        next_attempt_at, last_error, created_at, sent_at`

// OutboxRepository persists approval notifications awaiting delivery.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Insert records a pending notification. Runs against q so the row commits
// atomically with the approval it announces.
func (r *OutboxRepository) Insert(ctx context.Context, q database.Querier, entry *models.NotificationOutbox) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	if entry.Status == "" {
		entry.Status = models.OutboxStatusPending
	}
	if entry.NextAttemptAt.IsZero() {
		entry.NextAttemptAt = now
	}

	const query = `INSERT INTO notification_outbox
        (id, registration_id, recipient, payload, status, attempts, next_attempt_at, last_error, created_at, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.RegistrationID,
		entry.Recipient,
		entry.Payload,
		entry.Status,
		entry.Attempts,
		entry.NextAttemptAt,
		entry.LastError,
		entry.CreatedAt,
		entry.SentAt,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ClaimDue returns due pending notifications, oldest first, and leases each
// claimed row by pushing next_attempt_at forward. A claimed row is invisible
// to later polls until MarkSent or MarkAttemptFailed finalises it, or the
// lease expires, so one attempt maps to at most one delivery.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	if limit <= 0 {
		limit = 20
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE notification_outbox
        SET next_attempt_at = $3
        WHERE id IN (
                SELECT id FROM notification_outbox
                WHERE status = $1 AND next_attempt_at <= $2
                ORDER BY created_at
                LIMIT %d
                FOR UPDATE SKIP LOCKED)
        RETURNING %s`, limit, outboxColumns)
	var entries []models.NotificationOutbox
	if err := r.db.SelectContext(ctx, &entries, query, models.OutboxStatusPending, now, now.Add(lease)); err != nil {
		return nil, fmt.Errorf("claim due outbox entries: %w", err)
	}
	return entries, nil
}

// MarkSent finalises a delivered notification.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	const query = `UPDATE notification_outbox SET status = $2, sent_at = $3, last_error = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxStatusSent, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

// MarkAttemptFailed bumps the attempt counter and either schedules a retry or
// parks the entry as FAILED once maxAttempts is exhausted.
func (r *OutboxRepository) MarkAttemptFailed(ctx context.Context, id string, deliveryErr string, retryDelay time.Duration, maxAttempts int) error {
	const query = `UPDATE notification_outbox
        SET attempts = attempts + 1,
            last_error = $2,
            next_attempt_at = $3,
            status = CASE WHEN attempts + 1 >= $4 THEN 'FAILED' ELSE status END
        WHERE id = $1`
	next := time.Now().UTC().Add(retryDelay)
	if _, err := r.db.ExecContext(ctx, query, id, deliveryErr, next, maxAttempts); err != nil {
		return fmt.Errorf("mark outbox attempt failed: %w", err)
	}
	return nil
}

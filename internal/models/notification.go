package models

import "time"

// OutboxStatus tracks the delivery lifecycle of a queued notification.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// NotificationOutbox is one approval email recorded transactionally with the
// approval and delivered asynchronously.
type NotificationOutbox struct {
	ID             string       `db:"id" json:"id"`
	RegistrationID string       `db:"registration_id" json:"registration_id"`
	Recipient      string       `db:"recipient" json:"recipient"`
	Payload        []byte       `db:"payload" json:"-"`
	Status         OutboxStatus `db:"status" json:"status"`
	Attempts       int          `db:"attempts" json:"attempts"`
	NextAttemptAt  time.Time    `db:"next_attempt_at" json:"next_attempt_at"`
	LastError      *string      `db:"last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	SentAt         *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
}

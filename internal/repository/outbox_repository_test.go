package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campus-adm/university-api/internal/models"
)

func newOutboxRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOutboxRepositoryClaimDue(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "registration_id", "recipient", "payload", "status", "attempts",
		"next_attempt_at", "last_error", "created_at", "sent_at"}).
		AddRow("n1", "r1", "ada@example.edu", []byte(`{}`), models.OutboxStatusPending, 0, now, nil, now, nil)

	// Claiming is an UPDATE that leases the selected rows, not a plain SELECT.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notification_outbox")).
		WithArgs(models.OutboxStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	entries, err := repo.ClaimDue(context.Background(), 20, time.Minute)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "n1", entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkAttemptFailed(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_outbox")).
		WithArgs("n1", "smtp unreachable", sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkAttemptFailed(context.Background(), "n1", "smtp unreachable", time.Minute, 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/pkg/config"
	"github.com/campus-adm/university-api/pkg/jobs"
	"github.com/campus-adm/university-api/pkg/mailer"
)

type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]*models.NotificationOutbox
	sent    []string
	failed  []string
}

func newMockOutboxStore(entries ...models.NotificationOutbox) *mockOutboxStore {
	store := &mockOutboxStore{entries: make(map[string]*models.NotificationOutbox)}
	for i := range entries {
		entry := entries[i]
		store.entries[entry.ID] = &entry
	}
	return store
}

func (m *mockOutboxStore) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var due []models.NotificationOutbox
	for _, entry := range m.entries {
		if entry.Status != models.OutboxStatusPending || entry.NextAttemptAt.After(now) {
			continue
		}
		entry.NextAttemptAt = now.Add(lease)
		due = append(due, *entry)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (m *mockOutboxStore) MarkSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[id]; ok {
		entry.Status = models.OutboxStatusSent
	}
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockOutboxStore) MarkAttemptFailed(ctx context.Context, id string, deliveryErr string, retryDelay time.Duration, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[id]; ok {
		entry.Attempts++
		entry.NextAttemptAt = time.Now().Add(retryDelay)
		if entry.Attempts >= maxAttempts {
			entry.Status = models.OutboxStatusFailed
		}
	}
	m.failed = append(m.failed, id)
	return nil
}

func (m *mockOutboxStore) sentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type mockMailSender struct {
	mu     sync.Mutex
	delay  time.Duration
	sent   []mailer.ApprovalEmail
	sendFn func(mailer.ApprovalEmail) error
}

func (m *mockMailSender) SendApprovalEmail(ctx context.Context, email mailer.ApprovalEmail) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendFn != nil {
		if err := m.sendFn(email); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockMailSender) deliveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func outboxEntry(t *testing.T, id string) models.NotificationOutbox {
	t.Helper()
	payload, err := json.Marshal(mailer.ApprovalEmail{
		To:          "ada@example.edu",
		StudentName: "Ada Lovelace",
		TotalCredit: 12,
	})
	require.NoError(t, err)
	return models.NotificationOutbox{
		ID:        id,
		Recipient: "ada@example.edu",
		Payload:   payload,
		Status:    models.OutboxStatusPending,
	}
}

func testOutboxConfig() config.OutboxConfig {
	return config.OutboxConfig{
		Enabled:      true,
		PollInterval: 10 * time.Millisecond,
		Workers:      1,
		MaxAttempts:  3,
		RetryDelay:   time.Minute,
	}
}

func TestDispatcherDeliver(t *testing.T) {
	store := &mockOutboxStore{}
	sender := &mockMailSender{}
	d := NewNotificationDispatcher(store, sender, testOutboxConfig(), nil, zap.NewNop())

	entry := outboxEntry(t, "n1")
	err := d.deliver(context.Background(), jobs.Job{ID: entry.ID, Payload: entry})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.edu", sender.sent[0].To)
	assert.Equal(t, []string{"n1"}, store.sent)
	assert.Empty(t, store.failed)
}

func TestDispatcherDeliverFailure(t *testing.T) {
	store := &mockOutboxStore{}
	sender := &mockMailSender{sendFn: func(mailer.ApprovalEmail) error {
		return errors.New("smtp unreachable")
	}}
	d := NewNotificationDispatcher(store, sender, testOutboxConfig(), nil, zap.NewNop())

	entry := outboxEntry(t, "n1")
	err := d.deliver(context.Background(), jobs.Job{ID: entry.ID, Payload: entry})
	require.NoError(t, err)

	assert.Empty(t, store.sent)
	assert.Equal(t, []string{"n1"}, store.failed)
}

func TestDispatcherDeliverMalformedPayload(t *testing.T) {
	store := &mockOutboxStore{}
	sender := &mockMailSender{}
	d := NewNotificationDispatcher(store, sender, testOutboxConfig(), nil, zap.NewNop())

	entry := models.NotificationOutbox{ID: "n1", Payload: []byte("{not json")}
	err := d.deliver(context.Background(), jobs.Job{ID: entry.ID, Payload: entry})
	require.NoError(t, err)

	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"n1"}, store.failed)
}

func TestDispatcherPollLoop(t *testing.T) {
	store := newMockOutboxStore(outboxEntry(t, "n1"), outboxEntry(t, "n2"))
	sender := &mockMailSender{}
	d := NewNotificationDispatcher(store, sender, testOutboxConfig(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	require.Eventually(t, func() bool {
		return len(store.sentIDs()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"n1", "n2"}, store.sentIDs())
}

func TestDispatcherSlowDeliverySentOnce(t *testing.T) {
	// A delivery outlasting several poll ticks must not be re-enqueued: the
	// claim leases the row until the attempt is finalised.
	store := newMockOutboxStore(outboxEntry(t, "n1"))
	sender := &mockMailSender{delay: 120 * time.Millisecond}
	d := NewNotificationDispatcher(store, sender, testOutboxConfig(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.Eventually(t, func() bool {
		return sender.deliveries() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Let a few more ticks fire, then make sure nothing was redelivered.
	time.Sleep(100 * time.Millisecond)
	d.Stop()
	assert.Equal(t, 1, sender.deliveries())
	assert.Equal(t, []string{"n1"}, store.sentIDs())
}

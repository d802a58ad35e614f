package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swimdesk/internal/models"
	"swimdesk/testhelpers"
)

func newTestNotificationService(t *testing.T) (*notificationService, func() int) {
	mr, client := testhelpers.SetupTestRedis(t)
	svc := NewNotificationService(client, slog.New(slog.NewTextHandler(io.Discard, nil))).(*notificationService)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	queued := func() int {
		items, err := mr.List(NotificationQueueKey)
		if err != nil {
			return 0
		}
		return len(items)
	}
	return svc, queued
}

func TestSendOwnerReset(t *testing.T) {
	svc, queued := newTestNotificationService(t)
	ctx := context.Background()
	b := testhelpers.SampleBusinesses()[1]

	n, err := svc.SendOwnerReset(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, models.NotificationTypeEmail, n.Type)
	assert.Equal(t, models.NotificationEventOwnerReset, n.EventType)
	assert.Equal(t, "lee@aquafit.example", n.Recipient)
	assert.Equal(t, "Your Aqua Fitness account access has been reset", n.Subject)
	assert.Contains(t, n.Body, "Hi Lee Park,")
	assert.Equal(t, time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), n.CreatedAt)
	assert.Equal(t, 1, queued())

	pending, err := svc.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, n.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[0].BusinessID)
}

func TestSendNotificationRequiresRecipient(t *testing.T) {
	svc, queued := newTestNotificationService(t)

	err := svc.SendNotification(context.Background(), &models.Notification{Type: models.NotificationTypeSMS, Body: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Equal(t, 0, queued())
}

func TestPendingOldestFirst(t *testing.T) {
	svc, _ := newTestNotificationService(t)
	ctx := context.Background()

	first := &models.Notification{Recipient: "a@example.com", Subject: "first"}
	second := &models.Notification{Recipient: "b@example.com", Subject: "second"}
	third := &models.Notification{Recipient: "c@example.com", Subject: "third"}
	for _, n := range []*models.Notification{first, second, third} {
		require.NoError(t, svc.SendNotification(ctx, n))
	}

	pending, err := svc.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Subject)
	assert.Equal(t, "second", pending[1].Subject)

	none, err := svc.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	backlog, err := svc.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), backlog)
}

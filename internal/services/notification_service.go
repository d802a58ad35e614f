package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"swimdesk/internal/models"
)

// NotificationQueueKey is the redis list the external delivery worker drains.
const NotificationQueueKey = "swimdesk:notifications"

var ErrNoRecipient = errors.New("notification has no recipient")

// NotificationService queues outbound messages for delivery.
type NotificationService interface {
	SendNotification(ctx context.Context, notification *models.Notification) error
	SendOwnerReset(ctx context.Context, business *models.Business) (*models.Notification, error)
	Pending(ctx context.Context, limit int64) ([]*models.Notification, error)
	Backlog(ctx context.Context) (int64, error)
}

type notificationService struct {
	redisClient *redis.Client
	templates   map[models.NotificationEvent]notificationTemplate
	now         func() time.Time
	log         *slog.Logger
}

type notificationTemplate struct {
	subject *template.Template
	body    *template.Template
}

var ownerResetTemplate = notificationTemplate{
	subject: template.Must(template.New("owner_reset_subject").Parse(
		`Your {{.Name}} account access has been reset`)),
	body: template.Must(template.New("owner_reset_body").Parse(
		`Hi {{.Owner.Name}},

An administrator reset owner access for {{.Name}}. Follow the link in the next
email to choose a new password. If you did not expect this, contact support.
`)),
}

// NewNotificationService creates a new notification service
func NewNotificationService(redisClient *redis.Client, log *slog.Logger) NotificationService {
	return &notificationService{
		redisClient: redisClient,
		templates: map[models.NotificationEvent]notificationTemplate{
			models.NotificationEventOwnerReset: ownerResetTemplate,
		},
		now: time.Now,
		log: log,
	}
}

// SendNotification pushes the notification onto the delivery queue.
func (s *notificationService) SendNotification(ctx context.Context, notification *models.Notification) error {
	const op = "services.notificationService.SendNotification"

	if strings.TrimSpace(notification.Recipient) == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.redisClient.LPush(ctx, NotificationQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("notification queued",
		slog.String("op", op),
		slog.String("notification_id", notification.ID.String()),
		slog.String("event_type", string(notification.EventType)),
		slog.String("business_id", notification.BusinessID.String()),
	)
	return nil
}

func (s *notificationService) SendOwnerReset(ctx context.Context, business *models.Business) (*models.Notification, error) {
	const op = "services.notificationService.SendOwnerReset"

	subject, body, err := s.render(models.NotificationEventOwnerReset, business)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n := &models.Notification{
		Type:       models.NotificationTypeEmail,
		EventType:  models.NotificationEventOwnerReset,
		BusinessID: business.ID,
		Recipient:  business.Owner.Email,
		Subject:    subject,
		Body:       body,
	}
	if err := s.SendNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Pending returns up to limit queued notifications, oldest first.
func (s *notificationService) Pending(ctx context.Context, limit int64) ([]*models.Notification, error) {
	const op = "services.notificationService.Pending"

	if limit <= 0 {
		return []*models.Notification{}, nil
	}
	raw, err := s.redisClient.LRange(ctx, NotificationQueueKey, -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*models.Notification, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var n models.Notification
		if err := json.Unmarshal([]byte(raw[i]), &n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, &n)
	}
	return out, nil
}

// Backlog returns the number of notifications waiting for delivery.
func (s *notificationService) Backlog(ctx context.Context) (int64, error) {
	const op = "services.notificationService.Backlog"

	n, err := s.redisClient.LLen(ctx, NotificationQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *notificationService) render(event models.NotificationEvent, data any) (string, string, error) {
	tmpl, ok := s.templates[event]
	if !ok {
		return "", "", fmt.Errorf("no template for event %q", event)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return subject.String(), body.String(), nil
}

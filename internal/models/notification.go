package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType represents the delivery channel of a notification
type NotificationType string

const (
	NotificationTypeEmail NotificationType = "email"
	NotificationTypeSMS   NotificationType = "sms"
)

// NotificationEvent names what happened
type NotificationEvent string

const (
	NotificationEventOwnerReset NotificationEvent = "owner_reset"
)

// Notification is a message queued for the external delivery worker.
type Notification struct {
	ID         uuid.UUID         `json:"id"`
	Type       NotificationType  `json:"type"`
	EventType  NotificationEvent `json:"event_type"`
	BusinessID uuid.UUID         `json:"business_id"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"swimdesk/internal/tiers"
)

// BusinessStatus is the lifecycle state of a tenant account.
type BusinessStatus string

const (
	BusinessStatusActive            BusinessStatus = "active"
	BusinessStatusPendingActivation BusinessStatus = "pending_activation"
	BusinessStatusSuspended         BusinessStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s BusinessStatus) Valid() bool {
	switch s {
	case BusinessStatusActive, BusinessStatusPendingActivation, BusinessStatusSuspended:
		return true
	}
	return false
}

type BusinessOwner struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

type BusinessStats struct {
	TotalClients   int        `json:"total_clients"`
	ActiveClients  int        `json:"active_clients"`
	MonthlyRevenue float64    `json:"monthly_revenue"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

type BusinessSubscription struct {
	Plan            string     `json:"plan"`
	Price           float64    `json:"price"`
	BillingCycle    string     `json:"billing_cycle"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	PaymentStatus   string     `json:"payment_status"`
}

type BusinessSettings struct {
	Features         map[string]bool `json:"features"`
	Limits           map[string]int  `json:"limits"`
	RegistrationDate time.Time       `json:"registration_date"`
	LastActivity     *time.Time      `json:"last_activity,omitempty"`
}

// Business is one tenant account as seen by the admin directory.
type Business struct {
	ID           uuid.UUID            `json:"id" db:"id"`
	Name         string               `json:"name" db:"name"`
	Owner        BusinessOwner        `json:"owner"`
	Status       BusinessStatus       `json:"status" db:"status"`
	Tier         tiers.Tier           `json:"tier" db:"tier"`
	Location     string               `json:"location" db:"location"`
	Stats        BusinessStats        `json:"stats"`
	Subscription BusinessSubscription `json:"subscription"`
	Settings     BusinessSettings     `json:"settings"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy of b.
func (b *Business) Clone() *Business {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Stats.LastLogin = cloneTime(b.Stats.LastLogin)
	cp.Subscription.NextBillingDate = cloneTime(b.Subscription.NextBillingDate)
	cp.Settings.LastActivity = cloneTime(b.Settings.LastActivity)
	if b.Settings.Features != nil {
		cp.Settings.Features = make(map[string]bool, len(b.Settings.Features))
		for k, v := range b.Settings.Features {
			cp.Settings.Features[k] = v
		}
	}
	if b.Settings.Limits != nil {
		cp.Settings.Limits = make(map[string]int, len(b.Settings.Limits))
		for k, v := range b.Settings.Limits {
			cp.Settings.Limits[k] = v
		}
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"swimdesk/internal/models"
	"swimdesk/internal/tiers"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL. Tests are skipped when it is
// not set or the database cannot be reached.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Test database unreachable: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
}

// SetupTestRedis starts an in-process redis and returns a client bound to it.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewBusiness builds a business record with sensible defaults.
func NewBusiness(name, ownerName, ownerEmail string, status models.BusinessStatus, tier tiers.Tier) *models.Business {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	lastLogin := created.Add(48 * time.Hour)
	nextBilling := created.AddDate(0, 1, 0)

	return &models.Business{
		ID:   uuid.New(),
		Name: name,
		Owner: models.BusinessOwner{
			Name:   ownerName,
			Email:  ownerEmail,
			Phone:  "+1 555 0100",
			Status: "active",
		},
		Status:   status,
		Tier:     tier,
		Location: "Brisbane, QLD",
		Stats: models.BusinessStats{
			TotalClients:   42,
			ActiveClients:  37,
			MonthlyRevenue: 4200,
			LastLogin:      &lastLogin,
		},
		Subscription: models.BusinessSubscription{
			Plan:            tier.DisplayName(),
			Price:           tiers.PricingOf(tier).Price,
			BillingCycle:    "monthly",
			NextBillingDate: &nextBilling,
			PaymentStatus:   "paid",
		},
		Settings: models.BusinessSettings{
			Features:         map[string]bool{"online_booking": tier >= tiers.Starter},
			Limits:           map[string]int{"clients": tiers.PricingOf(tier).ClientLimit},
			RegistrationDate: created,
			LastActivity:     &lastLogin,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// SampleBusinesses returns the three-record directory used across tests.
func SampleBusinesses() []*models.Business {
	return []*models.Business{
		NewBusiness("Sunrise Swim School", "Dana Reyes", "dana@sunriseswim.example", models.BusinessStatusActive, tiers.Basic),
		NewBusiness("Aqua Fitness", "Lee Park", "lee@aquafit.example", models.BusinessStatusSuspended, tiers.Growth),
		NewBusiness("Ocean Waves", "Sam Cole", "sam@oceanwaves.example", models.BusinessStatusActive, tiers.Basic),
	}
}

// SetupTestBusiness inserts b into the businesses table.
func SetupTestBusiness(t *testing.T, db *TestDB, b *models.Business) {
	t.Helper()

	query := `
		INSERT INTO businesses (id, name, owner_name, owner_email, owner_phone, owner_status, status, tier, location,
			total_clients, active_clients, monthly_revenue, last_login,
			plan, plan_price, billing_cycle, next_billing_date, payment_status,
			features, limits, registered_at, last_activity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err := db.Pool.Exec(context.Background(), query,
		b.ID, b.Name, b.Owner.Name, b.Owner.Email, b.Owner.Phone, b.Owner.Status, string(b.Status), b.Tier.String(), b.Location,
		b.Stats.TotalClients, b.Stats.ActiveClients, b.Stats.MonthlyRevenue, b.Stats.LastLogin,
		b.Subscription.Plan, b.Subscription.Price, b.Subscription.BillingCycle, b.Subscription.NextBillingDate, b.Subscription.PaymentStatus,
		b.Settings.Features, b.Settings.Limits, b.Settings.RegistrationDate, b.Settings.LastActivity, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test business: %v", err)
	}
}

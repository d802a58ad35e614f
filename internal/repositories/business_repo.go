package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"swimdesk/internal/directory"
	"swimdesk/internal/models"
	"swimdesk/internal/tiers"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	// ErrStaleChange means the record was modified after the change was drafted.
	ErrStaleChange = errors.New("business was modified since the change was drafted")
)

type BusinessRepository interface {
	List(ctx context.Context) ([]*models.Business, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	ApplyChange(ctx context.Context, change directory.PendingChange) (*models.Business, error)
}

type businessRepo struct {
	db DBTX
}

func NewBusinessRepo(db DBTX) BusinessRepository {
	return &businessRepo{db: db}
}

const businessColumns = `id, name, owner_name, owner_email, owner_phone, owner_status, status, tier, location,
		total_clients, active_clients, monthly_revenue, last_login,
		plan, plan_price, billing_cycle, next_billing_date, payment_status,
		features, limits, registered_at, last_activity, created_at, updated_at`

func (r *businessRepo) List(ctx context.Context) ([]*models.Business, error) {
	const op = "repositories.businessRepo.List"

	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		ORDER BY created_at ASC, name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	businesses := make([]*models.Business, 0)
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return businesses, nil
}

func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	const op = "repositories.businessRepo.GetByID"

	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE id = $1
	`
	b, err := scanBusiness(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrBusinessNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// ApplyChange writes change.After if the stored record still carries the
// updated_at the change was drafted from. It returns the stored record.
func (r *businessRepo) ApplyChange(ctx context.Context, change directory.PendingChange) (*models.Business, error) {
	const op = "repositories.businessRepo.ApplyChange"

	if change.Before == nil || change.After == nil {
		return nil, fmt.Errorf("%s: %w", op, directory.ErrNilRecord)
	}
	if change.Patch.Empty() {
		return nil, fmt.Errorf("%s: %w", op, directory.ErrNoChanges)
	}

	after := change.After
	query := `
		UPDATE businesses
		SET status = $1, tier = $2, plan = $3, plan_price = $4, updated_at = NOW()
		WHERE id = $5 AND updated_at = $6
		RETURNING updated_at
	`
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query,
		string(after.Status), after.Tier.String(), after.Subscription.Plan, after.Subscription.Price,
		change.BusinessID, change.Before.UpdatedAt,
	).Scan(&updatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		exists, existsErr := r.exists(ctx, change.BusinessID)
		if existsErr != nil {
			return nil, fmt.Errorf("%s: %w", op, existsErr)
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", op, ErrBusinessNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrStaleChange)
	}

	stored := after.Clone()
	stored.UpdatedAt = updatedAt
	return stored, nil
}

func (r *businessRepo) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM businesses WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanBusiness(row pgx.Row) (*models.Business, error) {
	var (
		b            models.Business
		status, tier string
		features     []byte
		limits       []byte
	)
	err := row.Scan(
		&b.ID, &b.Name, &b.Owner.Name, &b.Owner.Email, &b.Owner.Phone, &b.Owner.Status, &status, &tier, &b.Location,
		&b.Stats.TotalClients, &b.Stats.ActiveClients, &b.Stats.MonthlyRevenue, &b.Stats.LastLogin,
		&b.Subscription.Plan, &b.Subscription.Price, &b.Subscription.BillingCycle, &b.Subscription.NextBillingDate, &b.Subscription.PaymentStatus,
		&features, &limits, &b.Settings.RegistrationDate, &b.Settings.LastActivity, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = models.BusinessStatus(status)
	parsed, ok := tiers.ParseTier(tier)
	if !ok {
		return nil, fmt.Errorf("business %s: %w: %q", b.ID, directory.ErrInvalidTier, tier)
	}
	b.Tier = parsed

	if len(features) > 0 {
		if err := json.Unmarshal(features, &b.Settings.Features); err != nil {
			return nil, fmt.Errorf("business %s: features: %w", b.ID, err)
		}
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &b.Settings.Limits); err != nil {
			return nil, fmt.Errorf("business %s: limits: %w", b.ID, err)
		}
	}
	return &b, nil
}

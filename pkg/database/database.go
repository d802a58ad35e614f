package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	const op = "database.NewPool"

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("database connected", slog.String("host", config.ConnConfig.Host))

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS businesses (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL,
	owner_name        TEXT NOT NULL DEFAULT '',
	owner_email       TEXT NOT NULL DEFAULT '',
	owner_phone       TEXT NOT NULL DEFAULT '',
	owner_status      TEXT NOT NULL DEFAULT 'active',
	status            TEXT NOT NULL CHECK (status IN ('active', 'pending_activation', 'suspended')),
	tier              TEXT NOT NULL CHECK (tier IN ('basic', 'starter', 'growth', 'unlimited')),
	location          TEXT NOT NULL DEFAULT '',
	total_clients     INTEGER NOT NULL DEFAULT 0,
	active_clients    INTEGER NOT NULL DEFAULT 0,
	monthly_revenue   DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_login        TIMESTAMPTZ,
	plan              TEXT NOT NULL DEFAULT '',
	plan_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	billing_cycle     TEXT NOT NULL DEFAULT 'monthly',
	next_billing_date TIMESTAMPTZ,
	payment_status    TEXT NOT NULL DEFAULT '',
	features          JSONB NOT NULL DEFAULT '{}'::jsonb,
	limits            JSONB NOT NULL DEFAULT '{}'::jsonb,
	registered_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_activity     TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS businesses_created_at_idx ON businesses (created_at);
`

// EnsureSchema creates the businesses table when it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "database.EnsureSchema"

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

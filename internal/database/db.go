package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DB represents a database connection
type DB struct {
	*sqlx.DB
}

var (
	_ models.EventSource     = (*DB)(nil)
	_ models.PredictionStore = (*DB)(nil)
	_ models.OutcomeSource   = (*DB)(nil)
)

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection and makes sure the schema exists
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sqlx.Open("postgres", params.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The database may still be starting next to us
	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second
	ping := func() error {
		if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Str("host", params.Host).Msg("Database not reachable, retrying")
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			amount_cents BIGINT,
			refund_amount_cents BIGINT,
			source_event_id TEXT
		)`,
		`ALTER TABLE events ADD COLUMN IF NOT EXISTS source_event_id TEXT`,
		`CREATE UNIQUE INDEX IF NOT EXISTS events_source_event_id_key ON events (source_event_id)`,
		`CREATE INDEX IF NOT EXISTS events_kind_occurred_at_idx ON events (kind, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS manual_subscriptions (
			id TEXT PRIMARY KEY,
			plan_type TEXT NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			period_end TIMESTAMPTZ NOT NULL,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prediction_records (
			id TEXT PRIMARY KEY,
			prediction_date DATE NOT NULL,
			method_name TEXT NOT NULL,
			predicted_sales_per_month DOUBLE PRECISION NOT NULL,
			predicted_revenue_per_month DOUBLE PRECISION NOT NULL,
			inputs_snapshot TEXT NOT NULL DEFAULT '{}',
			verified BOOLEAN NOT NULL DEFAULT false,
			actual_sales DOUBLE PRECISION,
			actual_revenue DOUBLE PRECISION,
			error_percent_signed DOUBLE PRECISION,
			absolute_error_percent DOUBLE PRECISION,
			UNIQUE (prediction_date, method_name)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/models"
	"github.com/google/uuid"
)

// ManualSubscriptions exposes subscriptions recorded by hand, outside the payment provider
type ManualSubscriptions struct {
	db *DB
}

var _ models.SubscriptionSource = (*ManualSubscriptions)(nil)

// NewManualSubscriptions creates the manual subscription source
func NewManualSubscriptions(db *DB) *ManualSubscriptions {
	return &ManualSubscriptions{db: db}
}

// ListSubscriptions returns every manual subscription created up to asOf
func (m *ManualSubscriptions) ListSubscriptions(ctx context.Context, asOf time.Time) ([]models.Subscription, error) {
	query := `
		SELECT id, plan_type, period_start, period_end, cancel_at_period_end, created_at
		FROM manual_subscriptions
		WHERE created_at <= $1
		ORDER BY created_at`

	var subs []models.Subscription
	if err := m.db.SelectContext(ctx, &subs, query, asOf); err != nil {
		return nil, fmt.Errorf("listing manual subscriptions: %w", err)
	}
	for i := range subs {
		subs[i].Source = models.SourceManual
	}
	return subs, nil
}

// Add records a manual subscription. An empty ID gets a fresh one.
func (m *ManualSubscriptions) Add(ctx context.Context, s models.Subscription) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO manual_subscriptions (
			id, plan_type, period_start, period_end, cancel_at_period_end, created_at
		) VALUES (
			:id, :plan_type, :period_start, :period_end, :cancel_at_period_end, :created_at
		)
		ON CONFLICT (id)
		DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end`

	if _, err := m.db.NamedExecContext(ctx, query, s); err != nil {
		return "", fmt.Errorf("adding manual subscription: %w", err)
	}
	return s.ID, nil
}

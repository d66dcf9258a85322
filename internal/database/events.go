package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Alias1177/SubForecast/models"
	"github.com/lib/pq"
)

// ErrDuplicateEvent is returned by AppendEvent when an event with the same
// source event ID was already stored.
var ErrDuplicateEvent = errors.New("duplicate source event")

// ListEvents returns events of the given kinds inside the date range,
// oldest first. An empty kinds slice selects every kind.
func (db *DB) ListEvents(ctx context.Context, kinds []models.EventKind, dateRange models.DateRange) ([]models.Event, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	query := `
		SELECT id, user_id, kind, occurred_at, amount_cents, refund_amount_cents,
		       COALESCE(source_event_id, '') AS source_event_id
		FROM events
		WHERE occurred_at BETWEEN $1 AND $2
		  AND (cardinality($3::text[]) = 0 OR kind = ANY($3))
		ORDER BY occurred_at, id`

	var events []models.Event
	if err := db.SelectContext(ctx, &events, query, dateRange.From, dateRange.To, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// AppendEvent stores a new event and returns its id. Events whose source
// event ID is already stored are skipped with ErrDuplicateEvent.
func (db *DB) AppendEvent(ctx context.Context, e models.Event) (int64, error) {
	query := `
		INSERT INTO events (user_id, kind, occurred_at, amount_cents, refund_amount_cents, source_event_id)
		VALUES (:user_id, :kind, :occurred_at, :amount_cents, :refund_amount_cents, NULLIF(:source_event_id, ''))
		ON CONFLICT (source_event_id) DO NOTHING
		RETURNING id`

	rows, err := db.NamedQueryContext(ctx, query, e)
	if err != nil {
		return 0, fmt.Errorf("appending %s event: %w", e.Kind, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("appending %s event: %w", e.Kind, err)
		}
		return 0, ErrDuplicateEvent
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("reading event id: %w", err)
	}
	return id, nil
}

// GetRealizedOutcomes counts distinct payers and net revenue of payments in
// the range. Refund-only rows reduce revenue but are not payers.
func (db *DB) GetRealizedOutcomes(ctx context.Context, dateRange models.DateRange) (models.RealizedOutcome, error) {
	query := `
		SELECT
			COUNT(DISTINCT user_id) FILTER (WHERE amount_cents > 0) AS distinct_payers,
			COALESCE(SUM(COALESCE(amount_cents, 0) - COALESCE(refund_amount_cents, 0)), 0) / 100.0 AS total_revenue
		FROM events
		WHERE kind = $1 AND occurred_at BETWEEN $2 AND $3`

	var outcome models.RealizedOutcome
	if err := db.GetContext(ctx, &outcome, query, models.EventPayment, dateRange.From, dateRange.To); err != nil {
		return models.RealizedOutcome{}, fmt.Errorf("loading realized outcomes: %w", err)
	}
	return outcome, nil
}

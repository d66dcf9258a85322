package models

import (
	"context"
	"time"
)

// DateRange is a closed time interval
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range, bounds included
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// EventSource lists raw user events
type EventSource interface {
	ListEvents(ctx context.Context, kinds []EventKind, dateRange DateRange) ([]Event, error)
}

// SubscriptionSource lists a point-in-time subscription snapshot
type SubscriptionSource interface {
	ListSubscriptions(ctx context.Context, asOf time.Time) ([]Subscription, error)
}

// PredictionStore persists prediction records and their verification outcomes
type PredictionStore interface {
	GetAccuracyHistory(ctx context.Context) ([]MethodAccuracy, error)
	GetUnverifiedPredictions(ctx context.Context, date time.Time) ([]PredictionRecord, error)
	ListVerifiedAboveError(ctx context.Context, threshold float64) ([]PredictionRecord, error)
	SaveDailyPredictions(ctx context.Context, records []PredictionRecord) error
	UpdatePredictionVerification(ctx context.Context, id string, v Verification) error
	RepairPredictionError(ctx context.Context, id string, signed, absolute float64) error
}

// OutcomeSource reports what actually sold in a date range
type OutcomeSource interface {
	GetRealizedOutcomes(ctx context.Context, dateRange DateRange) (RealizedOutcome, error)
}

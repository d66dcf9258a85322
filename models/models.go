package models

import (
	"time"
)

// EventKind identifies what a raw user event records
type EventKind string

const (
	EventRegistration EventKind = "registration"
	EventPayment      EventKind = "payment"
	EventCancellation EventKind = "cancellation"
	EventActivePing   EventKind = "active_ping"
)

// Event is an immutable, append-only user event
type Event struct {
	ID                int64     `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Kind              EventKind `json:"kind" db:"kind"`
	OccurredAt        time.Time `json:"occurred_at" db:"occurred_at"`
	AmountCents       *int64    `json:"amount_cents,omitempty" db:"amount_cents"`
	RefundAmountCents *int64    `json:"refund_amount_cents,omitempty" db:"refund_amount_cents"`
	SourceEventID     string    `json:"source_event_id,omitempty" db:"source_event_id"`
}

// Paid reports whether a payment event carries a charged amount. Refund-only
// events do not.
func (e Event) Paid() bool {
	return e.AmountCents != nil && *e.AmountCents > 0
}

// Refunded reports whether a payment event carries a refund
func (e Event) Refunded() bool {
	return e.RefundAmountCents != nil && *e.RefundAmountCents > 0
}

// PlanType is the billing cadence of a subscription
type PlanType string

const (
	PlanMonthly   PlanType = "monthly"
	PlanQuarterly PlanType = "quarterly"
	PlanSemester  PlanType = "semester"
)

// Months returns the number of months a plan period covers
func (p PlanType) Months() int {
	switch p {
	case PlanQuarterly:
		return 3
	case PlanSemester:
		return 6
	default:
		return 1
	}
}

// PlanTypes lists every plan in a stable order
var PlanTypes = []PlanType{PlanMonthly, PlanQuarterly, PlanSemester}

// Subscription source constants
const (
	SourceProvider = "provider"
	SourceManual   = "manual"
)

// Subscription is a point-in-time view of a subscription
type Subscription struct {
	ID                string    `json:"id" db:"id"`
	PlanType          PlanType  `json:"plan_type" db:"plan_type"`
	PeriodStart       time.Time `json:"period_start" db:"period_start"`
	PeriodEnd         time.Time `json:"period_end" db:"period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	Source            string    `json:"source" db:"source"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the subscription period is still running at t
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.PeriodEnd.After(t)
}

// Method names a forecasting method
type Method string

const (
	MethodByRegistrations Method = "by_registrations"
	MethodByActiveUsers   Method = "by_active_users"
	MethodByHistoric      Method = "by_historic"
	MethodCombined        Method = "combined"
)

// EnsembleMethods lists the independent estimators feeding the combiner
var EnsembleMethods = []Method{MethodByRegistrations, MethodByActiveUsers, MethodByHistoric}

// PredictionRecord stores one method's daily forecast and, once verified, its outcome
type PredictionRecord struct {
	ID                       string    `json:"id" db:"id"`
	PredictionDate           time.Time `json:"prediction_date" db:"prediction_date"`
	MethodName               Method    `json:"method_name" db:"method_name"`
	PredictedSalesPerMonth   float64   `json:"predicted_sales_per_month" db:"predicted_sales_per_month"`
	PredictedRevenuePerMonth float64   `json:"predicted_revenue_per_month" db:"predicted_revenue_per_month"`
	InputsSnapshot           string    `json:"inputs_snapshot" db:"inputs_snapshot"`
	Verified                 bool      `json:"verified" db:"verified"`
	ActualSales              *float64  `json:"actual_sales,omitempty" db:"actual_sales"`
	ActualRevenue            *float64  `json:"actual_revenue,omitempty" db:"actual_revenue"`
	ErrorPercentSigned       *float64  `json:"error_percent_signed,omitempty" db:"error_percent_signed"`
	AbsoluteErrorPercent     *float64  `json:"absolute_error_percent,omitempty" db:"absolute_error_percent"`
}

// Verification holds the write-once outcome fields of a PredictionRecord
type Verification struct {
	ActualSales          float64
	ActualRevenue        float64
	ErrorPercentSigned   float64
	AbsoluteErrorPercent float64
}

// MethodAccuracy summarizes the verified history of a method
type MethodAccuracy struct {
	MethodName       Method  `json:"method_name" db:"method_name"`
	VerifiedCount    int     `json:"verified_count" db:"verified_count"`
	AvgAbsoluteError float64 `json:"avg_absolute_error" db:"avg_absolute_error"`
	AvgSignedError   float64 `json:"avg_signed_error" db:"avg_signed_error"`
}

// MethodWeight is an accuracy-derived weight, recomputed on every run
type MethodWeight struct {
	MethodName Method  `json:"method_name"`
	Weight     float64 `json:"weight"`
}

// RealizedOutcome is what actually happened in a date range
type RealizedOutcome struct {
	DistinctPayers int     `json:"distinct_payers" db:"distinct_payers"`
	TotalRevenue   float64 `json:"total_revenue" db:"total_revenue"`
}

// WeeklyBucket aggregates subscription flow over one 7-day window
type WeeklyBucket struct {
	WeekIndex             int       `json:"week_index"`
	Start                 time.Time `json:"start"`
	NewSubscriptions      int       `json:"new_subscriptions"`
	CanceledSubscriptions int       `json:"canceled_subscriptions"`
}

// Interval is a confidence interval for a proportion
type Interval struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Center float64 `json:"center"`
}

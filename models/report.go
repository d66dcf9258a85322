package models

import (
	"encoding/json"
	"math"
	"time"
)

// Report is the complete output of one forecasting run
type Report struct {
	GeneratedAt          time.Time          `json:"generated_at"`
	Conversion           ConversionSummary  `json:"conversion"`
	ConversionByActivity ActivityConversion `json:"conversionByActivity"`
	Prediction           SaleProbability    `json:"prediction"`
	ProjectionMethods    ProjectionMethods  `json:"projectionMethods"`
	MRR                  MRRReport          `json:"mrr"`
	Renewals             []RenewalMonth     `json:"renewals"`
	Billing              BillingProjection  `json:"billing"`
	PredictionAccuracy   PredictionAccuracy `json:"predictionAccuracy"`
}

// PayerCounts holds gross and refund-adjusted payer counts for one window
type PayerCounts struct {
	Gross int `json:"gross"`
	Net   int `json:"net"`
}

// ConversionTiming splits conversions by how long after registration they happened
type ConversionTiming struct {
	SameDay          int     `json:"same_day"`
	Delayed          int     `json:"delayed"`
	DaysToConvert    []int   `json:"days_to_convert"`
	AvgDaysToConvert float64 `json:"avg_days_to_convert"`
	MedianDays       float64 `json:"median_days_to_convert"`
}

// ConversionSummary is the refund-adjusted global conversion picture
type ConversionSummary struct {
	RegisteredUsers int              `json:"registered_users"`
	AllTime         PayerCounts      `json:"all_time"`
	Last7Days       PayerCounts      `json:"last_7_days"`
	Last30Days      PayerCounts      `json:"last_30_days"`
	Rate            float64          `json:"rate"`
	RateInterval    Interval         `json:"rate_interval"`
	Registrations7d int              `json:"registrations_7d"`
	DailyRegRate    float64          `json:"daily_registration_rate"`
	Timing          ConversionTiming `json:"timing"`
}

// WindowConversion is activity-based conversion within one trailing window
type WindowConversion struct {
	ActiveUsers int      `json:"active_users"`
	NetPayers   int      `json:"net_payers"`
	Rate        float64  `json:"rate"`
	Interval    Interval `json:"interval"`
}

// ActivityConversion holds weekly and monthly activity-based conversion
type ActivityConversion struct {
	Weekly           WindowConversion `json:"weekly"`
	Monthly          WindowConversion `json:"monthly"`
	WeeklyActiveFree int              `json:"weekly_active_free_users"`
}

// TargetTrials is how many trials are needed to reach a target probability.
// Trials is +Inf when the conversion rate is zero.
type TargetTrials struct {
	Target float64 `json:"target"`
	Trials float64 `json:"trials"`
}

// MarshalJSON writes unreachable targets as a null trial count
func (t TargetTrials) MarshalJSON() ([]byte, error) {
	out := struct {
		Target float64  `json:"target"`
		Trials *float64 `json:"trials"`
	}{Target: t.Target}
	if !math.IsInf(t.Trials, 0) && !math.IsNaN(t.Trials) {
		out.Trials = &t.Trials
	}
	return json.Marshal(out)
}

// SaleProbability is the probability model over the non-paying pool
type SaleProbability struct {
	PoolSize         int            `json:"pool_size"`
	ConversionRate   float64        `json:"conversion_rate"`
	ProbAtLeastOne   float64        `json:"probability_at_least_one"`
	TrialsForTargets []TargetTrials `json:"trials_for_targets"`
}

// TrendDirection classifies subscription momentum
type TrendDirection string

const (
	TrendAccelerating TrendDirection = "accelerating"
	TrendDecelerating TrendDirection = "decelerating"
	TrendStable       TrendDirection = "stable"
	TrendUnknown      TrendDirection = "insufficient_data"
)

// TrendAnalysis is the outcome of the weekly trend regression
type TrendAnalysis struct {
	LookbackDays     int            `json:"lookback_days"`
	Weeks            []WeeklyBucket `json:"weeks"`
	Slope            float64        `json:"slope"`
	SlopePercent     float64        `json:"slope_percent"`
	Direction        TrendDirection `json:"direction"`
	MeanPerWeek      float64        `json:"mean_per_week"`
	RecentMean       float64        `json:"recent_mean_per_week"`
	RecencyWeight    float64        `json:"recency_weight"`
	ProjectedPerWeek float64        `json:"projected_per_week"`
	MonthlySales     float64        `json:"monthly_sales"`
	CanceledInWindow int            `json:"canceled_in_window"`
}

// MethodProjection describes one ensemble method's estimate
type MethodProjection struct {
	Method  Method             `json:"method"`
	Monthly float64            `json:"monthly_sales"`
	Valid   bool               `json:"valid"`
	Prior   float64            `json:"prior_weight"`
	Inputs  map[string]float64 `json:"inputs"`
	BestFor string             `json:"best_for"`
}

// ProjectionMethods is the ensemble section of the report
type ProjectionMethods struct {
	Methods  []MethodProjection `json:"methods"`
	Combined float64            `json:"combined_monthly_sales"`
	Trend    TrendAnalysis      `json:"trend"`
}

// HorizonProjection is MRR/ARR at a fixed horizon
type HorizonProjection struct {
	Months            int     `json:"months"`
	DecayedCurrentMRR float64 `json:"decayed_current_mrr"`
	NewSubs           float64 `json:"new_subscriptions"`
	AvgChurnFactor    float64 `json:"avg_churn_factor"`
	MRR               float64 `json:"mrr"`
	ARR               float64 `json:"arr"`
}

// ChurnBreakdown explains how the monthly churn rate was derived
type ChurnBreakdown struct {
	TotalCanceled     int     `json:"total_canceled"`
	BusinessAgeMonths float64 `json:"business_age_months"`
	CanceledPerMonth  float64 `json:"canceled_per_month"`
	ActiveSubs        int     `json:"active_subscriptions"`
	Fallback          bool    `json:"fallback"`
	MonthlyChurn      float64 `json:"monthly_churn"`
	Retention6Months  float64 `json:"retention_6_months"`
	Retention12Months float64 `json:"retention_12_months"`
}

// MRRReport is the recurring revenue section of the report
type MRRReport struct {
	CurrentMRR       float64              `json:"current_mrr"`
	CurrentARR       float64              `json:"current_arr"`
	RevenuePerNewSub float64              `json:"revenue_per_new_subscription"`
	TicketPerNewSub  float64              `json:"ticket_per_new_subscription"`
	Churn            ChurnBreakdown       `json:"churn"`
	PlanMix          map[PlanType]float64 `json:"plan_mix"`
	PlanCounts       map[PlanType]int     `json:"plan_counts"`
	SixMonths        HorizonProjection    `json:"six_months"`
	TwelveMonths     HorizonProjection    `json:"twelve_months"`
}

// RenewalMonth is the nominal amount renewing in one calendar month
type RenewalMonth struct {
	Month         string  `json:"month"`
	Subscriptions int     `json:"subscriptions"`
	Amount        float64 `json:"amount"`
}

// BillingHorizon is discounted expected billing over a horizon
type BillingHorizon struct {
	Months   int     `json:"months"`
	Renewals float64 `json:"renewals"`
	NewSales float64 `json:"new_sales"`
	Total    float64 `json:"total"`
}

// BillingProjection is the billing section of the report
type BillingProjection struct {
	SixMonths    BillingHorizon `json:"six_months"`
	TwelveMonths BillingHorizon `json:"twelve_months"`
}

// PredictionAccuracy is historical method performance plus derived weights
type PredictionAccuracy struct {
	History  []MethodAccuracy `json:"history"`
	Weights  []MethodWeight   `json:"weights"`
	Fallback bool             `json:"fallback"`
}

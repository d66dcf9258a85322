package models

// Default engine constants. Config can override every one of them.
const (
	Z90 = 1.645
	Z95 = 1.96

	DefaultConfidence = 0.95

	ChurnMinMonthly      = 0.03
	ChurnMaxMonthly      = 0.15
	ChurnFallbackMonthly = 0.05
	ChurnMinActiveSubs   = 5

	VerificationDays     = 7
	LegacyErrorThreshold = 200.0

	TrendLookbackDays     = 90
	TrendMinWeeks         = 3
	TrendRecentBuckets    = 2
	RecencyWeightCap      = 0.6
	RecencyWeightDivisor  = 12.0
	TrendSlopeThreshold   = 20.0
	PriorWeightHistoric   = 0.70
	PriorWeightRegistered = 0.15
	PriorWeightActive     = 0.15

	DaysPerMonth  = 30
	WeeksPerMonth = 4
)

// Tunables holds the hand-tuned constants of the forecasting engine
type Tunables struct {
	Confidence           float64
	ChurnMin             float64
	ChurnMax             float64
	ChurnFallback        float64
	ChurnMinActiveSubs   int
	VerificationDays     int
	LegacyErrorThreshold float64
	LookbackDays         int
	MinTrendWeeks        int
	RecentBuckets        int
	RecencyWeightCap     float64
	RecencyWeightDivisor float64
	SlopeThreshold       float64
	Priors               map[Method]float64
	PlanPrices           map[PlanType]float64
}

// DefaultTunables returns the engine constants as shipped
func DefaultTunables() Tunables {
	return Tunables{
		Confidence:           DefaultConfidence,
		ChurnMin:             ChurnMinMonthly,
		ChurnMax:             ChurnMaxMonthly,
		ChurnFallback:        ChurnFallbackMonthly,
		ChurnMinActiveSubs:   ChurnMinActiveSubs,
		VerificationDays:     VerificationDays,
		LegacyErrorThreshold: LegacyErrorThreshold,
		LookbackDays:         TrendLookbackDays,
		MinTrendWeeks:        TrendMinWeeks,
		RecentBuckets:        TrendRecentBuckets,
		RecencyWeightCap:     RecencyWeightCap,
		RecencyWeightDivisor: RecencyWeightDivisor,
		SlopeThreshold:       TrendSlopeThreshold,
		Priors: map[Method]float64{
			MethodByHistoric:      PriorWeightHistoric,
			MethodByRegistrations: PriorWeightRegistered,
			MethodByActiveUsers:   PriorWeightActive,
		},
		PlanPrices: map[PlanType]float64{
			PlanMonthly:   9.90,
			PlanQuarterly: 26.90,
			PlanSemester:  49.90,
		},
	}
}

// MonthlyValue normalizes a plan's nominal price to a monthly recurring value
func (t Tunables) MonthlyValue(plan PlanType) float64 {
	return t.PlanPrices[plan] / float64(plan.Months())
}

// Package revenue projects churn-adjusted recurring revenue, renewals and billing.
package revenue

import (
	"math"
	"time"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/internal/patterns"
	"github.com/Alias1177/SubForecast/models"
)

// Horizons are the forward projection horizons in months
var Horizons = []int{6, 12}

// PlanMix summarizes the plans of currently active subscriptions
type PlanMix struct {
	Counts map[models.PlanType]int
	Shares map[models.PlanType]float64
	Active int
}

// ActivePlanMix counts active subscriptions by plan
func ActivePlanMix(subs []models.Subscription, now time.Time) PlanMix {
	mix := PlanMix{
		Counts: make(map[models.PlanType]int, len(models.PlanTypes)),
		Shares: make(map[models.PlanType]float64, len(models.PlanTypes)),
	}
	for _, p := range models.PlanTypes {
		mix.Counts[p] = 0
		mix.Shares[p] = 0
	}
	for _, s := range subs {
		if !s.ActiveAt(now) {
			continue
		}
		mix.Counts[s.PlanType]++
		mix.Active++
	}
	for p, n := range mix.Counts {
		mix.Shares[p] = calculate.SafeDiv(float64(n), float64(mix.Active))
	}
	return mix
}

// CurrentMRR sums the monthly recurring value of active subscriptions that are
// not pending cancellation
func CurrentMRR(subs []models.Subscription, now time.Time, t models.Tunables) float64 {
	mrr := 0.0
	for _, s := range subs {
		if s.ActiveAt(now) && !s.CancelAtPeriodEnd {
			mrr += t.MonthlyValue(s.PlanType)
		}
	}
	return mrr
}

// RevenuePerNewSub is the mix-weighted monthly recurring value a new
// subscription brings. Without active subscriptions it falls back to the plain
// average over plans.
func RevenuePerNewSub(mix PlanMix, t models.Tunables) float64 {
	return weightedByMix(mix, t.MonthlyValue)
}

// TicketPerNewSub is the mix-weighted nominal price charged to a new subscription
func TicketPerNewSub(mix PlanMix, t models.Tunables) float64 {
	return weightedByMix(mix, func(p models.PlanType) float64 { return t.PlanPrices[p] })
}

func weightedByMix(mix PlanMix, value func(models.PlanType) float64) float64 {
	if mix.Active == 0 {
		sum := 0.0
		for _, p := range models.PlanTypes {
			sum += value(p)
		}
		return sum / float64(len(models.PlanTypes))
	}
	out := 0.0
	for _, p := range models.PlanTypes {
		out += mix.Shares[p] * value(p)
	}
	return out
}

// Churn estimates the monthly churn rate from cancellations over the business
// lifetime. Small books of business use the flat fallback. The unrounded rate
// is returned alongside the rounded breakdown.
func Churn(subs []models.Subscription, totalCanceled int, now time.Time, t models.Tunables) (models.ChurnBreakdown, float64) {
	cb := models.ChurnBreakdown{
		TotalCanceled:     totalCanceled,
		BusinessAgeMonths: 1,
	}
	if earliest, ok := patterns.EarliestSubscription(subs); ok {
		cb.BusinessAgeMonths = math.Max(1, models.DaysBetween(earliest, now)/models.DaysPerMonth)
	}
	cb.CanceledPerMonth = float64(totalCanceled) / cb.BusinessAgeMonths

	for _, s := range subs {
		if s.ActiveAt(now) {
			cb.ActiveSubs++
		}
	}

	if cb.ActiveSubs > t.ChurnMinActiveSubs {
		cb.MonthlyChurn = calculate.Clamp(cb.CanceledPerMonth/float64(cb.ActiveSubs), t.ChurnMin, t.ChurnMax)
	} else {
		cb.MonthlyChurn = t.ChurnFallback
		cb.Fallback = true
	}

	rate := cb.MonthlyChurn
	cb.Retention6Months = calculate.Round(Retention(rate, 6), 4)
	cb.Retention12Months = calculate.Round(Retention(rate, 12), 4)
	cb.BusinessAgeMonths = calculate.Round2(cb.BusinessAgeMonths)
	cb.CanceledPerMonth = calculate.Round2(cb.CanceledPerMonth)
	cb.MonthlyChurn = calculate.Round(rate, 4)
	return cb, rate
}

// Retention is the share of subscriptions surviving h months of compounding churn
func Retention(churn float64, months float64) float64 {
	return math.Pow(1-churn, months)
}

// AvgChurnFactor discounts subscriptions added evenly across a horizon
func AvgChurnFactor(churn float64, months int) float64 {
	return Retention(churn, float64(months)/2)
}

// ProjectHorizon compounds churn on the current MRR and adds new subscriptions
// sold during the horizon
func ProjectHorizon(currentMRR, churn, monthlySales, revenuePerNewSub float64, months int) models.HorizonProjection {
	decayed := currentMRR * Retention(churn, float64(months))
	newSubs := monthlySales * float64(months)
	avgFactor := AvgChurnFactor(churn, months)
	mrr := decayed + newSubs*revenuePerNewSub*avgFactor

	return models.HorizonProjection{
		Months:            months,
		DecayedCurrentMRR: calculate.Round2(decayed),
		NewSubs:           calculate.Round2(newSubs),
		AvgChurnFactor:    calculate.Round(avgFactor, 4),
		MRR:               calculate.Round2(mrr),
		ARR:               calculate.Round2(mrr * 12),
	}
}

// Project builds the MRR section: current MRR, churn, plan mix and the
// 6 and 12 month projections driven by the combined monthly sales forecast
func Project(subs []models.Subscription, monthlySales float64, totalCanceled int, now time.Time, t models.Tunables) models.MRRReport {
	mix := ActivePlanMix(subs, now)
	churn, rate := Churn(subs, totalCanceled, now, t)
	currentMRR := CurrentMRR(subs, now, t)
	perNewSub := RevenuePerNewSub(mix, t)

	shares := make(map[models.PlanType]float64, len(mix.Shares))
	for p, v := range mix.Shares {
		shares[p] = calculate.Round(v, 4)
	}

	return models.MRRReport{
		CurrentMRR:       calculate.Round2(currentMRR),
		CurrentARR:       calculate.Round2(currentMRR * 12),
		RevenuePerNewSub: calculate.Round2(perNewSub),
		TicketPerNewSub:  calculate.Round2(TicketPerNewSub(mix, t)),
		Churn:            churn,
		PlanMix:          shares,
		PlanCounts:       mix.Counts,
		SixMonths:        ProjectHorizon(currentMRR, rate, monthlySales, perNewSub, 6),
		TwelveMonths:     ProjectHorizon(currentMRR, rate, monthlySales, perNewSub, 12),
	}
}

package patterns

import (
	"math"
	"time"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
	"gonum.org/v1/gonum/stat"
)

const week = 7 * 24 * time.Hour

// BusinessAgeDays is the number of days since the earliest subscription was
// created, rounded up. Zero when there are no subscriptions.
func BusinessAgeDays(subs []models.Subscription, now time.Time) int {
	earliest, ok := EarliestSubscription(subs)
	if !ok || !earliest.Before(now) {
		return 0
	}
	return int(math.Ceil(models.DaysBetween(earliest, now)))
}

// EarliestSubscription returns the creation time of the oldest subscription
func EarliestSubscription(subs []models.Subscription) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range subs {
		if !found || s.CreatedAt.Before(earliest) {
			earliest = s.CreatedAt
			found = true
		}
	}
	return earliest, found
}

// WeeklyBuckets partitions the lookback window into 7-day buckets counted
// back from now, so the newest bucket is a full week ending at now (inclusive)
// and only the oldest one may be partial. It counts new subscriptions and
// cancellations in each.
func WeeklyBuckets(subs []models.Subscription, cancellations []models.Event, now time.Time, lookbackDays int) []models.WeeklyBucket {
	if lookbackDays <= 0 {
		return nil
	}
	numWeeks := int(math.Ceil(float64(lookbackDays) / 7))
	windowStart := models.DaysAgo(now, lookbackDays)

	buckets := make([]models.WeeklyBucket, numWeeks)
	for i := range buckets {
		buckets[i] = models.WeeklyBucket{
			WeekIndex: i,
			Start:     now.Add(-time.Duration(numWeeks-i) * week),
		}
	}
	if buckets[0].Start.Before(windowStart) {
		buckets[0].Start = windowStart
	}

	// Bucket numWeeks-1-k holds (now-(k+1)w, now-kw]
	index := func(t time.Time) int {
		if t.After(now) || t.Before(windowStart) {
			return -1
		}
		k := int(now.Sub(t) / week)
		if k >= numWeeks {
			return -1
		}
		return numWeeks - 1 - k
	}

	for _, s := range subs {
		if i := index(s.CreatedAt); i >= 0 {
			buckets[i].NewSubscriptions++
		}
	}
	for _, c := range cancellations {
		if c.Kind != models.EventCancellation {
			continue
		}
		if i := index(c.OccurredAt); i >= 0 {
			buckets[i].CanceledSubscriptions++
		}
	}
	return buckets
}

// Slope fits new subscriptions against week index with ordinary least squares.
// Returns 0 for fewer than two points.
func Slope(buckets []models.WeeklyBucket) float64 {
	if len(buckets) <= 1 {
		return 0
	}
	xs := make([]float64, len(buckets))
	ys := make([]float64, len(buckets))
	for i, b := range buckets {
		xs[i] = float64(b.WeekIndex)
		ys[i] = float64(b.NewSubscriptions)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

// Classify maps a slope expressed as a percentage of the weekly mean to a
// momentum label. The thresholds are exclusive.
func Classify(slopePct, threshold float64) models.TrendDirection {
	switch {
	case slopePct > threshold:
		return models.TrendAccelerating
	case slopePct < -threshold:
		return models.TrendDecelerating
	default:
		return models.TrendStable
	}
}

// AnalyzeTrend buckets subscription flow over the lookback window, fits a
// linear trend and projects monthly sales from a recency-weighted weekly rate
func AnalyzeTrend(subs []models.Subscription, cancellations []models.Event, now time.Time, t models.Tunables) models.TrendAnalysis {
	lookback := BusinessAgeDays(subs, now)
	if lookback > t.LookbackDays {
		lookback = t.LookbackDays
	}

	res := models.TrendAnalysis{
		LookbackDays: lookback,
		Direction:    models.TrendUnknown,
		Weeks:        WeeklyBuckets(subs, cancellations, now, lookback),
	}
	numWeeks := len(res.Weeks)
	if numWeeks == 0 {
		res.Weeks = []models.WeeklyBucket{}
		return res
	}

	counts := make([]float64, numWeeks)
	for i, b := range res.Weeks {
		counts[i] = float64(b.NewSubscriptions)
		res.CanceledInWindow += b.CanceledSubscriptions
	}
	mean := calculate.Average(counts)

	recent := t.RecentBuckets
	if recent > numWeeks {
		recent = numWeeks
	}
	recentMean := calculate.Average(counts[numWeeks-recent:])

	// Momentum classification needs enough weeks and some volume
	res.Slope = Slope(res.Weeks)
	if numWeeks >= t.MinTrendWeeks && mean > 0 {
		slopePct := res.Slope / mean * 100
		res.SlopePercent = calculate.Round2(slopePct)
		res.Direction = Classify(slopePct, t.SlopeThreshold)
	}

	// Blend the window mean with the recent mean
	recencyWeight := math.Min(t.RecencyWeightCap, float64(numWeeks)/t.RecencyWeightDivisor)
	projected := mean*(1-recencyWeight) + recentMean*recencyWeight

	res.MeanPerWeek = calculate.Round2(mean)
	res.RecentMean = calculate.Round2(recentMean)
	res.RecencyWeight = calculate.Round(recencyWeight, 4)
	res.ProjectedPerWeek = calculate.Round2(projected)
	res.MonthlySales = calculate.Round2(projected * models.DaysPerMonth / 7)
	res.Slope = calculate.Round(res.Slope, 4)
	return res
}

package patterns

import (
	"testing"
	"time"

	"github.com/Alias1177/SubForecast/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// subsPerWeek creates the given number of subscriptions in each week of a
// window of len(perWeek) weeks ending at now, plus one old subscription
func subsPerWeek(perWeek []int) []models.Subscription {
	start := models.DaysAgo(now, 7*len(perWeek))
	subs := []models.Subscription{{ID: "old", PlanType: models.PlanMonthly, CreatedAt: models.DaysAgo(now, 400)}}
	for w, n := range perWeek {
		for i := 0; i < n; i++ {
			subs = append(subs, models.Subscription{
				PlanType:  models.PlanMonthly,
				CreatedAt: start.Add(time.Duration(w)*week + time.Duration(i+1)*time.Hour),
			})
		}
	}
	return subs
}

func tunables(lookback int) models.Tunables {
	t := models.DefaultTunables()
	t.LookbackDays = lookback
	return t
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		slopePct float64
		expected models.TrendDirection
	}{
		{20, models.TrendStable},
		{-20, models.TrendStable},
		{20.01, models.TrendAccelerating},
		{-20.01, models.TrendDecelerating},
		{0, models.TrendStable},
	}
	for _, tt := range tests {
		if got := Classify(tt.slopePct, models.TrendSlopeThreshold); got != tt.expected {
			t.Errorf("Classify(%v) = %v, want %v", tt.slopePct, got, tt.expected)
		}
	}
}

func TestSlope(t *testing.T) {
	buckets := []models.WeeklyBucket{
		{WeekIndex: 0, NewSubscriptions: 1},
		{WeekIndex: 1, NewSubscriptions: 2},
		{WeekIndex: 2, NewSubscriptions: 3},
		{WeekIndex: 3, NewSubscriptions: 4},
	}
	assert.InDelta(t, 1.0, Slope(buckets), 1e-9)
	assert.Equal(t, 0.0, Slope(buckets[:1]))
	assert.Equal(t, 0.0, Slope(nil))
}

func TestAnalyzeTrendAccelerating(t *testing.T) {
	res := AnalyzeTrend(subsPerWeek([]int{1, 2, 3, 4}), nil, now, tunables(28))

	require.Len(t, res.Weeks, 4)
	assert.Equal(t, 28, res.LookbackDays)
	for i, want := range []int{1, 2, 3, 4} {
		assert.Equal(t, want, res.Weeks[i].NewSubscriptions, "week %d", i)
	}
	assert.InDelta(t, 1.0, res.Slope, 1e-9)
	assert.Equal(t, 40.0, res.SlopePercent)
	assert.Equal(t, models.TrendAccelerating, res.Direction)
	assert.Equal(t, 2.5, res.MeanPerWeek)
	assert.Equal(t, 3.5, res.RecentMean)
	assert.Equal(t, 12.14, res.MonthlySales)
}

func TestAnalyzeTrendDecelerating(t *testing.T) {
	res := AnalyzeTrend(subsPerWeek([]int{6, 4, 2}), nil, now, tunables(21))
	assert.Equal(t, models.TrendDecelerating, res.Direction)
	assert.Equal(t, -50.0, res.SlopePercent)
}

func TestAnalyzeTrendInsufficientWeeks(t *testing.T) {
	res := AnalyzeTrend(subsPerWeek([]int{2, 4}), nil, now, tunables(14))
	assert.Equal(t, models.TrendUnknown, res.Direction)
	// mean 3, recent mean 3, any blend gives 3/week
	assert.Equal(t, 12.86, res.MonthlySales)
}

func TestAnalyzeTrendNoSubscriptions(t *testing.T) {
	res := AnalyzeTrend(nil, nil, now, models.DefaultTunables())
	assert.Empty(t, res.Weeks)
	assert.Equal(t, 0.0, res.MonthlySales)
	assert.Equal(t, models.TrendUnknown, res.Direction)
}

func TestAnalyzeTrendYoungBusiness(t *testing.T) {
	subs := []models.Subscription{
		{CreatedAt: models.DaysAgo(now, 10)},
		{CreatedAt: models.DaysAgo(now, 2)},
	}
	res := AnalyzeTrend(subs, nil, now, models.DefaultTunables())
	assert.Equal(t, 10, res.LookbackDays)
	assert.Len(t, res.Weeks, 2)
}

func TestWeeklyBucketsCountsCancellations(t *testing.T) {
	cancellations := []models.Event{
		{Kind: models.EventCancellation, OccurredAt: models.DaysAgo(now, 1)},
		{Kind: models.EventCancellation, OccurredAt: models.DaysAgo(now, 10)},
		{Kind: models.EventCancellation, OccurredAt: models.DaysAgo(now, 30)},
		{Kind: models.EventPayment, OccurredAt: models.DaysAgo(now, 1)},
	}
	buckets := WeeklyBuckets(nil, cancellations, now, 14)
	require.Len(t, buckets, 2)
	assert.Equal(t, 1, buckets[0].CanceledSubscriptions)
	assert.Equal(t, 1, buckets[1].CanceledSubscriptions)
}

func TestAnalyzeTrendSteadyRate(t *testing.T) {
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var subs []models.Subscription
	for d := 0; d < 120; d++ {
		subs = append(subs, models.Subscription{PlanType: models.PlanMonthly, CreatedAt: models.DaysAgo(at, d)})
	}

	res := AnalyzeTrend(subs, nil, at, models.DefaultTunables())
	require.Len(t, res.Weeks, 13)
	for i, b := range res.Weeks {
		assert.Equal(t, 7, b.NewSubscriptions, "week %d", i)
	}
	assert.Equal(t, 7.0, res.RecentMean)
	assert.Equal(t, models.TrendStable, res.Direction)
	assert.Equal(t, 30.0, res.MonthlySales)
}

func TestWeeklyBucketsIncludeNow(t *testing.T) {
	subs := []models.Subscription{
		{CreatedAt: now},
		{CreatedAt: models.DaysAgo(now, 7)},
		{CreatedAt: models.DaysAgo(now, 14)},
		{CreatedAt: now.Add(time.Hour)},
	}
	buckets := WeeklyBuckets(subs, nil, now, 14)
	require.Len(t, buckets, 2)
	// weeks are (now-7d, now] and (now-14d, now-7d]
	assert.Equal(t, 1, buckets[1].NewSubscriptions)
	assert.Equal(t, 1, buckets[0].NewSubscriptions)
	assert.Equal(t, models.DaysAgo(now, 7), buckets[1].Start)
}

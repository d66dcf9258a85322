package revenue

import (
	"testing"
	"time"

	"github.com/Alias1177/SubForecast/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

func tunables() models.Tunables {
	t := models.DefaultTunables()
	t.PlanPrices = map[models.PlanType]float64{
		models.PlanMonthly:   10,
		models.PlanQuarterly: 27,
		models.PlanSemester:  48,
	}
	return t
}

func sub(plan models.PlanType, createdDaysAgo int, periodEnd time.Time, cancelPending bool) models.Subscription {
	return models.Subscription{
		PlanType:          plan,
		CreatedAt:         models.DaysAgo(now, createdDaysAgo),
		PeriodStart:       models.DaysAgo(now, 5),
		PeriodEnd:         periodEnd,
		CancelAtPeriodEnd: cancelPending,
		Source:            models.SourceManual,
	}
}

func TestProjectHorizonCompounding(t *testing.T) {
	h := ProjectHorizon(1000, 0.05, 0, 0, 6)
	assert.Equal(t, 735.09, h.DecayedCurrentMRR)
	assert.Equal(t, 735.09, h.MRR)
	assert.Equal(t, 8821.1, h.ARR)

	h = ProjectHorizon(1000, 0.05, 10, 9, 12)
	// 1000*0.95^12 + 120*9*0.95^6
	assert.Equal(t, 540.36, h.DecayedCurrentMRR)
	assert.Equal(t, 120.0, h.NewSubs)
	assert.Equal(t, 0.7351, h.AvgChurnFactor)
	assert.InDelta(t, 540.36+793.90, h.MRR, 0.02)
}

func TestChurn(t *testing.T) {
	tun := tunables()
	active := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("fallback with few active subscriptions", func(t *testing.T) {
		subs := []models.Subscription{sub(models.PlanMonthly, 300, active, false)}
		cb, rate := Churn(subs, 50, now, tun)
		assert.True(t, cb.Fallback)
		assert.Equal(t, 0.05, rate)
	})

	t.Run("clamped to the upper bound", func(t *testing.T) {
		var subs []models.Subscription
		for i := 0; i < 10; i++ {
			subs = append(subs, sub(models.PlanMonthly, 60, active, false))
		}
		// 2 months old, 40 canceled: 20/month over 10 active
		cb, rate := Churn(subs, 40, now, tun)
		assert.False(t, cb.Fallback)
		assert.Equal(t, 2.0, cb.BusinessAgeMonths)
		assert.Equal(t, 0.15, rate)
	})

	t.Run("clamped to the lower bound", func(t *testing.T) {
		var subs []models.Subscription
		for i := 0; i < 10; i++ {
			subs = append(subs, sub(models.PlanMonthly, 10, active, false))
		}
		cb, rate := Churn(subs, 0, now, tun)
		// younger than a month counts as one month
		assert.Equal(t, 1.0, cb.BusinessAgeMonths)
		assert.Equal(t, 0.03, rate)
	})

	t.Run("inside bounds", func(t *testing.T) {
		var subs []models.Subscription
		for i := 0; i < 20; i++ {
			subs = append(subs, sub(models.PlanMonthly, 300, active, false))
		}
		// 10 months, 16 canceled: 1.6/month over 20 active
		_, rate := Churn(subs, 16, now, tun)
		assert.InDelta(t, 0.08, rate, 1e-9)
	})
}

func TestRevenuePerNewSub(t *testing.T) {
	tun := tunables()

	empty := ActivePlanMix(nil, now)
	// (10 + 9 + 8) / 3
	assert.InDelta(t, 9.0, RevenuePerNewSub(empty, tun), 1e-9)
	assert.InDelta(t, (10.0+27+48)/3, TicketPerNewSub(empty, tun), 1e-9)

	end := now.AddDate(0, 1, 0)
	subs := []models.Subscription{
		sub(models.PlanMonthly, 30, end, false),
		sub(models.PlanMonthly, 30, end, false),
		sub(models.PlanMonthly, 30, end, false),
		sub(models.PlanSemester, 30, end, false),
		sub(models.PlanSemester, 30, now.AddDate(0, 0, -1), false), // expired
	}
	mix := ActivePlanMix(subs, now)
	assert.Equal(t, 4, mix.Active)
	assert.Equal(t, 0.75, mix.Shares[models.PlanMonthly])
	assert.InDelta(t, 0.75*10+0.25*8, RevenuePerNewSub(mix, tun), 1e-9)
	assert.InDelta(t, 0.75*10+0.25*48, TicketPerNewSub(mix, tun), 1e-9)
}

func TestCurrentMRR(t *testing.T) {
	end := now.AddDate(0, 2, 0)
	subs := []models.Subscription{
		sub(models.PlanMonthly, 30, end, false),
		sub(models.PlanQuarterly, 30, end, false),
		sub(models.PlanSemester, 30, end, true),
		sub(models.PlanMonthly, 30, now.Add(-time.Hour), false),
	}
	assert.InDelta(t, 19.0, CurrentMRR(subs, now, tunables()), 1e-9)
}

func TestRenewalCalendar(t *testing.T) {
	subs := []models.Subscription{
		sub(models.PlanMonthly, 30, time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC), false),
		sub(models.PlanQuarterly, 30, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false),
		sub(models.PlanSemester, 30, time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC), false),
		sub(models.PlanSemester, 30, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true),
		sub(models.PlanMonthly, 30, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), false),
		sub(models.PlanMonthly, 30, time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC), false),
		sub(models.PlanMonthly, 30, time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC), false),
	}

	cal := RenewalCalendar(subs, now, tunables())
	require.Len(t, cal, 12)
	assert.Equal(t, "2026-01", cal[0].Month)
	assert.Equal(t, "2026-12", cal[11].Month)
	assert.Equal(t, 10.0, cal[0].Amount)
	assert.Equal(t, 0.0, cal[1].Amount)
	assert.Equal(t, 75.0, cal[2].Amount)
	assert.Equal(t, 2, cal[2].Subscriptions)
	assert.Equal(t, 10.0, cal[11].Amount)
}

func TestBilling(t *testing.T) {
	cal := make([]models.RenewalMonth, 12)
	for i := range cal {
		cal[i].Amount = 100
	}

	b := Billing(cal, 0.05, 2, 20)
	f6 := AvgChurnFactor(0.05, 6)
	f12 := AvgChurnFactor(0.05, 12)

	assert.InDelta(t, 600*f6, b.SixMonths.Renewals, 0.01)
	assert.InDelta(t, 12*20*f6, b.SixMonths.NewSales, 0.01)
	assert.InDelta(t, 1200*f12, b.TwelveMonths.Renewals, 0.01)
	assert.InDelta(t, b.TwelveMonths.Renewals+b.TwelveMonths.NewSales, b.TwelveMonths.Total, 0.011)
	assert.Equal(t, 6, b.SixMonths.Months)
	assert.Equal(t, 12, b.TwelveMonths.Months)
}

func TestProject(t *testing.T) {
	end := now.AddDate(0, 1, 0)
	var subs []models.Subscription
	for i := 0; i < 4; i++ {
		subs = append(subs, sub(models.PlanMonthly, 90, end, false))
	}

	r := Project(subs, 5, 2, now, tunables())
	assert.Equal(t, 40.0, r.CurrentMRR)
	assert.Equal(t, 480.0, r.CurrentARR)
	assert.Equal(t, 10.0, r.RevenuePerNewSub)
	assert.True(t, r.Churn.Fallback)
	assert.Equal(t, 1.0, r.PlanMix[models.PlanMonthly])
	assert.Equal(t, 0, r.PlanCounts[models.PlanSemester])
	assert.Equal(t, 6, r.SixMonths.Months)
	assert.Greater(t, r.TwelveMonths.NewSubs, r.SixMonths.NewSubs)
}

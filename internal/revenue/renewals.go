package revenue

import (
	"time"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
)

// CalendarMonths is the length of the renewal calendar
const CalendarMonths = 12

// RenewalCalendar buckets the nominal price of every active subscription that
// will renew (not pending cancellation) by the calendar month its period ends,
// starting with the current month
func RenewalCalendar(subs []models.Subscription, now time.Time, t models.Tunables) []models.RenewalMonth {
	first := models.StartOfMonth(now)
	calendar := make([]models.RenewalMonth, CalendarMonths)
	for i := range calendar {
		calendar[i].Month = first.AddDate(0, i, 0).Format("2006-01")
	}

	for _, s := range subs {
		if !s.ActiveAt(now) || s.CancelAtPeriodEnd {
			continue
		}
		end := s.PeriodEnd.In(now.Location())
		i := monthsBetween(first, end)
		if i < 0 || i >= CalendarMonths {
			continue
		}
		calendar[i].Subscriptions++
		calendar[i].Amount += t.PlanPrices[s.PlanType]
	}

	for i := range calendar {
		calendar[i].Amount = calculate.Round2(calendar[i].Amount)
	}
	return calendar
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// BillingForHorizon discounts the renewals of the first months of the calendar
// and the new-subscription ticket revenue by the horizon's average churn factor
func BillingForHorizon(calendar []models.RenewalMonth, churn, monthlySales, ticketPerNewSub float64, months int) models.BillingHorizon {
	factor := AvgChurnFactor(churn, months)

	renewals := 0.0
	for i := 0; i < months && i < len(calendar); i++ {
		renewals += calendar[i].Amount * factor
	}
	newSales := monthlySales * float64(months) * ticketPerNewSub * factor

	return models.BillingHorizon{
		Months:   months,
		Renewals: calculate.Round2(renewals),
		NewSales: calculate.Round2(newSales),
		Total:    calculate.Round2(renewals + newSales),
	}
}

// Billing projects discounted billing for every horizon
func Billing(calendar []models.RenewalMonth, churn, monthlySales, ticketPerNewSub float64) models.BillingProjection {
	var out models.BillingProjection
	for _, h := range Horizons {
		b := BillingForHorizon(calendar, churn, monthlySales, ticketPerNewSub, h)
		switch h {
		case 6:
			out.SixMonths = b
		case 12:
			out.TwelveMonths = b
		}
	}
	return out
}

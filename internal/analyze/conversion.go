package analyze

import (
	"sort"
	"time"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
)

// Trailing windows used for payer counts and activity conversion
const (
	WeekDays  = 7
	MonthDays = 30
)

// ProbabilityTargets are the target probabilities reported by the sale-probability model
var ProbabilityTargets = []float64{0.5, 0.9, 0.95}

// Result bundles every conversion figure derived from the raw event stream
type Result struct {
	Conversion  models.ConversionSummary
	Activity    models.ActivityConversion
	Probability models.SaleProbability

	// Unrounded inputs for the forecast ensemble
	GlobalRate   float64
	WeeklyRate   float64
	DailyRegRate float64
}

// UserSet is a set of user IDs
type UserSet map[string]struct{}

func (s UserSet) add(id string) { s[id] = struct{}{} }

func (s UserSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Analyze derives refund-adjusted conversion, activity conversion, conversion
// timing and the sale-probability model from events as of now
func Analyze(events []models.Event, now time.Time, t models.Tunables) Result {
	registeredAt := registrations(events)
	payments := filterKind(events, models.EventPayment)

	week := models.TrailingWindow(now, WeekDays)
	month := models.TrailingWindow(now, MonthDays)

	// Gross and net payers per window
	grossAll, netAll := NetPayers(payments, nil)
	gross7, net7 := NetPayers(payments, &week)
	gross30, net30 := NetPayers(payments, &month)

	var res Result
	conv := &res.Conversion
	conv.RegisteredUsers = len(registeredAt)
	conv.AllTime = models.PayerCounts{Gross: len(grossAll), Net: len(netAll)}
	conv.Last7Days = models.PayerCounts{Gross: len(gross7), Net: len(net7)}
	conv.Last30Days = models.PayerCounts{Gross: len(gross30), Net: len(net30)}

	// Global conversion: net payers over everyone who registered
	registeredNet := 0
	for id := range netAll {
		if _, ok := registeredAt[id]; ok {
			registeredNet++
		}
	}
	res.GlobalRate = calculate.SafeDiv(float64(registeredNet), float64(conv.RegisteredUsers))
	conv.Rate = calculate.Round(res.GlobalRate, 4)
	conv.RateInterval = calculate.RoundInterval(calculate.Wilson(registeredNet, conv.RegisteredUsers, t.Confidence))

	// Registration velocity over the last week
	for _, regAt := range registeredAt {
		if week.Contains(regAt) {
			conv.Registrations7d++
		}
	}
	res.DailyRegRate = float64(conv.Registrations7d) / WeekDays
	conv.DailyRegRate = calculate.Round(res.DailyRegRate, 4)

	conv.Timing = ConversionTimingSplit(payments, registeredAt)

	// Activity-based conversion
	active7 := activeUsers(events, week)
	active30 := activeUsers(events, month)
	res.Activity.Weekly = windowConversion(active7, net7, t.Confidence)
	res.Activity.Monthly = windowConversion(active30, net30, t.Confidence)
	res.WeeklyRate = calculate.SafeDiv(float64(res.Activity.Weekly.NetPayers), float64(res.Activity.Weekly.ActiveUsers))
	for id := range active7 {
		if !netAll.has(id) {
			res.Activity.WeeklyActiveFree++
		}
	}

	// Sale probability over users who never converted
	pool := conv.RegisteredUsers - registeredNet
	if pool < 0 {
		pool = 0
	}
	res.Probability = SaleProbability(res.GlobalRate, pool)

	return res
}

// NetPayers returns the distinct payers in the window and the subset with no
// refund dated at or after their most recent payment in that window. Refunds
// arrive either on the payment row itself or as separate refund-only events.
// A nil window means all time.
func NetPayers(payments []models.Event, window *models.DateRange) (gross, net UserSet) {
	latestPaid := make(map[string]time.Time)
	latestRefund := make(map[string]time.Time)
	for _, p := range payments {
		if window != nil && !window.Contains(p.OccurredAt) {
			continue
		}
		if p.Paid() {
			if prev, ok := latestPaid[p.UserID]; !ok || p.OccurredAt.After(prev) {
				latestPaid[p.UserID] = p.OccurredAt
			}
		}
		if p.Refunded() {
			if prev, ok := latestRefund[p.UserID]; !ok || p.OccurredAt.After(prev) {
				latestRefund[p.UserID] = p.OccurredAt
			}
		}
	}

	gross = make(UserSet, len(latestPaid))
	net = make(UserSet, len(latestPaid))
	for id, paidAt := range latestPaid {
		gross.add(id)
		if refundAt, ok := latestRefund[id]; ok && !refundAt.Before(paidAt) {
			continue
		}
		net.add(id)
	}
	return gross, net
}

// ConversionTimingSplit classifies every payment of a registered user as a
// same-day or delayed conversion and collects the days-to-convert distribution
func ConversionTimingSplit(payments []models.Event, registeredAt map[string]time.Time) models.ConversionTiming {
	timing := models.ConversionTiming{DaysToConvert: []int{}}
	for _, p := range payments {
		regAt, ok := registeredAt[p.UserID]
		if !ok || !p.Paid() {
			continue
		}
		daysDiff := models.RoundedDaysBetween(regAt, p.OccurredAt)
		if daysDiff < 0 {
			continue
		}
		if daysDiff == 0 {
			timing.SameDay++
		} else {
			timing.Delayed++
		}
		timing.DaysToConvert = append(timing.DaysToConvert, daysDiff)
	}

	sort.Ints(timing.DaysToConvert)
	days := make([]float64, len(timing.DaysToConvert))
	for i, d := range timing.DaysToConvert {
		days[i] = float64(d)
	}
	timing.AvgDaysToConvert = calculate.Round2(calculate.Average(days))
	timing.MedianDays = calculate.Round2(calculate.Median(days))
	return timing
}

// SaleProbability builds the probability model for a pool of n users converting with probability p
func SaleProbability(p float64, n int) models.SaleProbability {
	sp := models.SaleProbability{
		PoolSize:       n,
		ConversionRate: calculate.Round(p, 4),
		ProbAtLeastOne: calculate.Round(calculate.ProbabilityAtLeastOne(p, n), 4),
	}
	for _, target := range ProbabilityTargets {
		sp.TrialsForTargets = append(sp.TrialsForTargets, models.TargetTrials{
			Target: target,
			Trials: calculate.TrialsForProbability(p, target),
		})
	}
	return sp
}

func windowConversion(active, net UserSet, confidence float64) models.WindowConversion {
	wc := models.WindowConversion{ActiveUsers: len(active)}
	for id := range net {
		if active.has(id) {
			wc.NetPayers++
		}
	}
	wc.Rate = calculate.Round(calculate.SafeDiv(float64(wc.NetPayers), float64(wc.ActiveUsers)), 4)
	wc.Interval = calculate.RoundInterval(calculate.Wilson(wc.NetPayers, wc.ActiveUsers, confidence))
	return wc
}

// registrations maps each user to their earliest registration time
func registrations(events []models.Event) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, e := range events {
		if e.Kind != models.EventRegistration {
			continue
		}
		if prev, ok := out[e.UserID]; !ok || e.OccurredAt.Before(prev) {
			out[e.UserID] = e.OccurredAt
		}
	}
	return out
}

func activeUsers(events []models.Event, window models.DateRange) UserSet {
	out := make(UserSet)
	for _, e := range events {
		if e.Kind == models.EventActivePing && window.Contains(e.OccurredAt) {
			out.add(e.UserID)
		}
	}
	return out
}

func filterKind(events []models.Event, kind models.EventKind) []models.Event {
	var out []models.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

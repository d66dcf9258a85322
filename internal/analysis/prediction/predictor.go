package prediction

import (
	"encoding/json"
	"math"
	"time"

	"github.com/Alias1177/SubForecast/internal/analyze"
	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
	"github.com/google/uuid"
)

// What each method is best at forecasting
var bestFor = map[models.Method]string{
	models.MethodByRegistrations: "long-run trend",
	models.MethodByActiveUsers:   "near-term (next few weeks)",
	models.MethodByHistoric:      "ground truth / primary signal",
	models.MethodCombined:        "weighted blend",
}

// Estimate is one method's monthly sales forecast with the inputs it used
type Estimate struct {
	Method models.Method
	Value  float64
	Inputs map[string]float64
}

// Valid reports whether the estimate may contribute to the combined forecast
func (e Estimate) Valid() bool {
	return e.Value > 0 && !math.IsNaN(e.Value) && !math.IsInf(e.Value, 0)
}

// ByRegistrations forecasts from registration velocity and global conversion
func ByRegistrations(dailyRegRate, globalRate float64) Estimate {
	return Estimate{
		Method: models.MethodByRegistrations,
		Value:  dailyRegRate * globalRate * models.DaysPerMonth,
		Inputs: map[string]float64{
			"daily_registration_rate": calculate.Round(dailyRegRate, 4),
			"global_conversion_rate":  calculate.Round(globalRate, 4),
			"days":                    models.DaysPerMonth,
		},
	}
}

// ByActiveUsers forecasts from this week's free active users and weekly conversion
func ByActiveUsers(weeklyActiveFree int, weeklyRate float64) Estimate {
	return Estimate{
		Method: models.MethodByActiveUsers,
		Value:  float64(weeklyActiveFree) * weeklyRate * models.WeeksPerMonth,
		Inputs: map[string]float64{
			"weekly_active_free_users": float64(weeklyActiveFree),
			"weekly_conversion_rate":   calculate.Round(weeklyRate, 4),
			"weeks":                    models.WeeksPerMonth,
		},
	}
}

// ByHistoric forecasts from the windowed subscription trend
func ByHistoric(trend models.TrendAnalysis) Estimate {
	return Estimate{
		Method: models.MethodByHistoric,
		Value:  trend.MonthlySales,
		Inputs: map[string]float64{
			"lookback_days":      float64(trend.LookbackDays),
			"weeks":              float64(len(trend.Weeks)),
			"mean_per_week":      trend.MeanPerWeek,
			"recent_mean":        trend.RecentMean,
			"recency_weight":     trend.RecencyWeight,
			"projected_per_week": trend.ProjectedPerWeek,
			"slope":              trend.Slope,
		},
	}
}

// Combine blends valid estimates with fixed prior weights. Invalid estimates
// drop out and the remaining weights renormalize by their own sum.
func Combine(estimates []Estimate, priors map[models.Method]float64) float64 {
	weightedSum := 0.0
	totalWeight := 0.0
	for _, e := range estimates {
		if !e.Valid() {
			continue
		}
		w := priors[e.Method]
		if w <= 0 {
			continue
		}
		weightedSum += e.Value * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Project runs the three estimators and the combiner
func Project(conv analyze.Result, trend models.TrendAnalysis, priors map[models.Method]float64) models.ProjectionMethods {
	estimates := []Estimate{
		ByRegistrations(conv.DailyRegRate, conv.GlobalRate),
		ByActiveUsers(conv.Activity.WeeklyActiveFree, conv.WeeklyRate),
		ByHistoric(trend),
	}

	out := models.ProjectionMethods{
		Combined: calculate.Round2(Combine(estimates, priors)),
		Trend:    trend,
	}
	for _, e := range estimates {
		value := e.Value
		if !e.Valid() {
			value = 0
		}
		out.Methods = append(out.Methods, models.MethodProjection{
			Method:  e.Method,
			Monthly: calculate.Round2(value),
			Valid:   e.Valid(),
			Prior:   priors[e.Method],
			Inputs:  e.Inputs,
			BestFor: bestFor[e.Method],
		})
	}
	return out
}

// CreatePredictionRecords turns a projection into one record per method plus
// the combined forecast, dated on the day of the run
func CreatePredictionRecords(p models.ProjectionMethods, revenuePerNewSub float64, now time.Time) []models.PredictionRecord {
	date := models.StartOfDay(now)
	records := make([]models.PredictionRecord, 0, len(p.Methods)+1)

	for _, m := range p.Methods {
		records = append(records, newRecord(date, m.Method, m.Monthly, revenuePerNewSub, m.Inputs))
	}

	priors := make(map[string]float64, len(p.Methods))
	for _, m := range p.Methods {
		priors[string(m.Method)] = m.Prior
	}
	records = append(records, newRecord(date, models.MethodCombined, p.Combined, revenuePerNewSub, priors))
	return records
}

func newRecord(date time.Time, method models.Method, sales, revenuePerNewSub float64, inputs map[string]float64) models.PredictionRecord {
	snapshot, err := json.Marshal(inputs)
	if err != nil {
		snapshot = []byte("{}")
	}
	return models.PredictionRecord{
		ID:                       uuid.NewString(),
		PredictionDate:           date,
		MethodName:               method,
		PredictedSalesPerMonth:   sales,
		PredictedRevenuePerMonth: calculate.Round2(sales * revenuePerNewSub),
		InputsSnapshot:           string(snapshot),
	}
}

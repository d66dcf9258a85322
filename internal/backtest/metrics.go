package backtest

import (
	"math"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
)

// ErrorScore is the symmetric percentage error of one verified prediction
type ErrorScore struct {
	// AbsoluteError is sMAPE, bounded to [0, 200]
	AbsoluteError float64
	// SignedError keeps the direction: positive means the forecast was too low
	SignedError float64
}

// CalcError scores actual against expected with the symmetric mean absolute
// percentage error. Two zeros score 0.
func CalcError(actual, expected float64) ErrorScore {
	diff := math.Abs(actual - expected)
	avg := (math.Abs(actual) + math.Abs(expected)) / 2
	if avg <= 0 {
		return ErrorScore{}
	}
	return ErrorScore{
		AbsoluteError: diff / avg * 100,
		SignedError:   (actual - expected) / avg * 100,
	}
}

// ExpectedInPeriod scales a monthly sales forecast down to the verification period
func ExpectedInPeriod(predictedPerMonth float64, periodDays int) float64 {
	return predictedPerMonth * float64(periodDays) / models.DaysPerMonth
}

// Verify scores a prediction record against the realized outcome of its period
func Verify(record models.PredictionRecord, outcome models.RealizedOutcome, periodDays int) models.Verification {
	actual := float64(outcome.DistinctPayers)
	score := CalcError(actual, ExpectedInPeriod(record.PredictedSalesPerMonth, periodDays))
	return models.Verification{
		ActualSales:          actual,
		ActualRevenue:        calculate.Round2(outcome.TotalRevenue),
		ErrorPercentSigned:   calculate.Round2(score.SignedError),
		AbsoluteErrorPercent: calculate.Round2(score.AbsoluteError),
	}
}

package calculate

import (
	"math"

	"github.com/Alias1177/SubForecast/models"
	"gonum.org/v1/gonum/stat/distuv"
)

// ZScore returns the two-sided critical value for a confidence level.
// The two supported levels use the rounded textbook values.
func ZScore(confidence float64) float64 {
	switch confidence {
	case 0.90:
		return models.Z90
	case 0.95:
		return models.Z95
	}
	if confidence <= 0 || confidence >= 1 {
		return models.Z95
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// Wilson computes the Wilson score interval for successes out of total trials.
// An empty sample yields a zero interval.
func Wilson(successes, total int, confidence float64) models.Interval {
	if total <= 0 {
		return models.Interval{}
	}
	if successes < 0 {
		successes = 0
	}
	if successes > total {
		successes = total
	}

	z := ZScore(confidence)
	n := float64(total)
	p := float64(successes) / n
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := (z / denom) * math.Sqrt(p*(1-p)/n+z2/(4*n*n))

	return models.Interval{
		Lower:  math.Max(0, center-margin),
		Upper:  math.Min(1, center+margin),
		Center: center,
	}
}

// RoundInterval rounds every bound to 4 decimals for reporting
func RoundInterval(iv models.Interval) models.Interval {
	return models.Interval{
		Lower:  Round(iv.Lower, 4),
		Upper:  Round(iv.Upper, 4),
		Center: Round(iv.Center, 4),
	}
}

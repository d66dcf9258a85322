package calculate

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Average calculates the simple average, 0 for an empty slice
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

// Median of values, 0 for an empty slice
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}

// Round2 rounds to 2 decimals, the precision used for money and percentages
func Round2(value float64) float64 {
	return Round(value, 2)
}

// Round rounds to the given number of decimals. Non-finite values pass through.
func Round(value float64, places int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	rounded, err := stats.Round(value, places)
	if err != nil {
		return value
	}
	return rounded
}

// SafeDiv divides, returning 0 when the denominator is 0
func SafeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

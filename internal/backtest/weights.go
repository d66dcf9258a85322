package backtest

import (
	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
)

// AdaptiveWeights derives per-method weights from verified accuracy history:
// each method with verified predictions gets 1/(avgAbsoluteError+1), then the
// weights are normalized. Without any verified data every ensemble method gets
// an equal share and fallback is true.
//
// These weights are diagnostic only and are never fed into the combiner.
func AdaptiveWeights(history []models.MethodAccuracy) (weights []models.MethodWeight, fallback bool) {
	raw := make(map[models.Method]float64)
	total := 0.0
	for _, h := range history {
		if h.MethodName == models.MethodCombined || h.VerifiedCount < 1 {
			continue
		}
		w := 1 / (h.AvgAbsoluteError + 1)
		raw[h.MethodName] += w
		total += w
	}

	if total == 0 {
		equal := 1 / float64(len(models.EnsembleMethods))
		for _, m := range models.EnsembleMethods {
			weights = append(weights, models.MethodWeight{MethodName: m, Weight: calculate.Round(equal, 4)})
		}
		return weights, true
	}

	for _, m := range models.EnsembleMethods {
		weights = append(weights, models.MethodWeight{
			MethodName: m,
			Weight:     calculate.Round(raw[m]/total, 4),
		})
	}
	return weights, false
}

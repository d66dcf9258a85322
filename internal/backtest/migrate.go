package backtest

import (
	"context"
	"fmt"

	"github.com/Alias1177/SubForecast/internal/calculate"
	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog/log"
)

// MigrateLegacyErrors recomputes the error of verified records scored with the
// old unbounded percentage formula. Records whose absolute error exceeds
// threshold are rescored with sMAPE from their stored actual and predicted
// values. It returns the number of repaired records.
func MigrateLegacyErrors(ctx context.Context, store models.PredictionStore, threshold float64, periodDays int) (int, error) {
	logger := log.With().Str("component", "legacy_migration").Logger()

	records, err := store.ListVerifiedAboveError(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("listing legacy records: %w", err)
	}

	repaired := 0
	for _, rec := range records {
		if rec.ActualSales == nil {
			continue
		}
		score := CalcError(*rec.ActualSales, ExpectedInPeriod(rec.PredictedSalesPerMonth, periodDays))
		signed := calculate.Round2(score.SignedError)
		absolute := calculate.Round2(score.AbsoluteError)
		if err := store.RepairPredictionError(ctx, rec.ID, signed, absolute); err != nil {
			logger.Error().Err(err).Str("id", rec.ID).Msg("Failed to repair record")
			continue
		}
		repaired++
	}

	logger.Info().Int("found", len(records)).Int("repaired", repaired).Msg("Legacy error migration finished")
	return repaired, nil
}

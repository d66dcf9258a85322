package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Verifier closes the feedback loop: predictions made one verification period
// ago are compared against the sales actually realized since.
type Verifier struct {
	store      models.PredictionStore
	outcomes   models.OutcomeSource
	periodDays int
	logger     zerolog.Logger
}

// VerifyResult summarizes one verification run
type VerifyResult struct {
	PredictionDate time.Time
	Candidates     int
	Verified       int
	Failed         int
}

// NewVerifier creates a verifier over the given store and outcome source
func NewVerifier(store models.PredictionStore, outcomes models.OutcomeSource, periodDays int) *Verifier {
	if periodDays <= 0 {
		periodDays = models.VerificationDays
	}
	return &Verifier{
		store:      store,
		outcomes:   outcomes,
		periodDays: periodDays,
		logger:     log.With().Str("component", "verifier").Logger(),
	}
}

// Run verifies every unverified prediction dated periodDays before today.
// A failure on one record is logged and does not stop the others.
func (v *Verifier) Run(ctx context.Context, today time.Time) (*VerifyResult, error) {
	date := models.StartOfDay(today).AddDate(0, 0, -v.periodDays)
	result := &VerifyResult{PredictionDate: date}

	records, err := v.store.GetUnverifiedPredictions(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading unverified predictions for %s: %w", date.Format("2006-01-02"), err)
	}
	result.Candidates = len(records)
	if len(records) == 0 {
		v.logger.Debug().Time("date", date).Msg("No predictions to verify")
		return result, nil
	}

	period := models.DateRange{From: date, To: date.AddDate(0, 0, v.periodDays)}
	outcome, err := v.outcomes.GetRealizedOutcomes(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("loading realized outcomes: %w", err)
	}

	for _, rec := range records {
		if rec.Verified {
			continue
		}
		verification := Verify(rec, outcome, v.periodDays)
		if err := v.store.UpdatePredictionVerification(ctx, rec.ID, verification); err != nil {
			result.Failed++
			v.logger.Error().Err(err).
				Str("id", rec.ID).
				Str("method", string(rec.MethodName)).
				Msg("Failed to store verification")
			continue
		}
		result.Verified++
		v.logger.Info().
			Str("method", string(rec.MethodName)).
			Float64("expected", ExpectedInPeriod(rec.PredictedSalesPerMonth, v.periodDays)).
			Float64("actual", verification.ActualSales).
			Float64("smape", verification.AbsoluteErrorPercent).
			Msg("Prediction verified")
	}

	return result, nil
}

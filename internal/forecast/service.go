// Package forecast assembles the full sales and revenue report from a
// snapshot of events, subscriptions and accuracy history.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/internal/analysis/prediction"
	"github.com/Alias1177/SubForecast/internal/analyze"
	"github.com/Alias1177/SubForecast/internal/backtest"
	"github.com/Alias1177/SubForecast/internal/patterns"
	"github.com/Alias1177/SubForecast/internal/revenue"
	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Snapshot is everything one report run reads up front
type Snapshot struct {
	Events          []models.Event
	Subscriptions   []models.Subscription
	AccuracyHistory []models.MethodAccuracy
}

// Service produces reports and hands persistence and verification to the dispatcher
type Service struct {
	events     models.EventSource
	subs       models.SubscriptionSource
	store      models.PredictionStore
	verifier   *backtest.Verifier
	tunables   models.Tunables
	dispatcher *Dispatcher
	now        func() time.Time
	logger     zerolog.Logger
}

// Options configures a Service. Dispatcher may be nil, in which case nothing
// is persisted or verified.
type Options struct {
	Events        models.EventSource
	Subscriptions models.SubscriptionSource
	Store         models.PredictionStore
	Outcomes      models.OutcomeSource
	Tunables      models.Tunables
	Dispatcher    *Dispatcher
	Now           func() time.Time
}

// NewService creates a report service
func NewService(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		events:     opts.Events,
		subs:       opts.Subscriptions,
		store:      opts.Store,
		tunables:   opts.Tunables,
		dispatcher: opts.Dispatcher,
		now:        now,
		logger:     log.With().Str("component", "forecast").Logger(),
	}
	if opts.Store != nil && opts.Outcomes != nil {
		s.verifier = backtest.NewVerifier(opts.Store, opts.Outcomes, opts.Tunables.VerificationDays)
	}
	return s
}

// Generate loads a snapshot and computes the full report. A failing read
// aborts the run. Saving the new predictions and verifying old ones are
// queued in the background and never affect the returned report.
func (s *Service) Generate(ctx context.Context) (*models.Report, error) {
	now := s.now()

	snap, err := s.LoadSnapshot(ctx, now)
	if err != nil {
		return nil, err
	}

	report, records := Build(snap, now, s.tunables)
	s.logger.Info().
		Float64("combined_monthly", report.ProjectionMethods.Combined).
		Float64("mrr", report.MRR.CurrentMRR).
		Int("events", len(snap.Events)).
		Int("subscriptions", len(snap.Subscriptions)).
		Msg("Report generated")

	s.dispatch(ctx, records, now)
	return report, nil
}

// LoadSnapshot reads events, subscriptions and accuracy history concurrently
func (s *Service) LoadSnapshot(ctx context.Context, now time.Time) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		events, err := s.events.ListEvents(gctx, nil, models.DateRange{From: time.Unix(0, 0).UTC(), To: now})
		if err != nil {
			return fmt.Errorf("loading events: %w", err)
		}
		snap.Events = events
		return nil
	})

	g.Go(func() error {
		subs, err := s.subs.ListSubscriptions(gctx, now)
		if err != nil {
			return fmt.Errorf("loading subscriptions: %w", err)
		}
		snap.Subscriptions = subs
		return nil
	})

	if s.store != nil {
		g.Go(func() error {
			history, err := s.store.GetAccuracyHistory(gctx)
			if err != nil {
				return fmt.Errorf("loading accuracy history: %w", err)
			}
			snap.AccuracyHistory = history
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Build computes every report section from a snapshot. It is pure: the same
// snapshot and clock always give the same report. The prediction records to
// persist for this run are returned alongside.
func Build(snap *Snapshot, now time.Time, t models.Tunables) (*models.Report, []models.PredictionRecord) {
	cancellations := make([]models.Event, 0)
	for _, e := range snap.Events {
		if e.Kind == models.EventCancellation {
			cancellations = append(cancellations, e)
		}
	}

	conv := analyze.Analyze(snap.Events, now, t)
	trend := patterns.AnalyzeTrend(snap.Subscriptions, cancellations, now, t)
	projection := prediction.Project(conv, trend, t.Priors)

	mrr := revenue.Project(snap.Subscriptions, projection.Combined, len(cancellations), now, t)
	calendar := revenue.RenewalCalendar(snap.Subscriptions, now, t)
	_, churn := revenue.Churn(snap.Subscriptions, len(cancellations), now, t)
	ticket := revenue.TicketPerNewSub(revenue.ActivePlanMix(snap.Subscriptions, now), t)

	weights, fallback := backtest.AdaptiveWeights(snap.AccuracyHistory)
	history := snap.AccuracyHistory
	if history == nil {
		history = []models.MethodAccuracy{}
	}

	report := &models.Report{
		GeneratedAt:          now,
		Conversion:           conv.Conversion,
		ConversionByActivity: conv.Activity,
		Prediction:           conv.Probability,
		ProjectionMethods:    projection,
		MRR:                  mrr,
		Renewals:             calendar,
		Billing:              revenue.Billing(calendar, churn, projection.Combined, ticket),
		PredictionAccuracy: models.PredictionAccuracy{
			History:  history,
			Weights:  weights,
			Fallback: fallback,
		},
	}

	records := prediction.CreatePredictionRecords(projection, mrr.RevenuePerNewSub, now)
	return report, records
}

func (s *Service) dispatch(ctx context.Context, records []models.PredictionRecord, now time.Time) {
	if s.dispatcher == nil || s.store == nil {
		return
	}

	s.dispatcher.Submit(ctx, "save_predictions", func(ctx context.Context) error {
		return s.store.SaveDailyPredictions(ctx, records)
	})

	if s.verifier == nil {
		return
	}
	s.dispatcher.Submit(ctx, "verify_predictions", func(ctx context.Context) error {
		res, err := s.verifier.Run(ctx, now)
		if err != nil {
			return err
		}
		s.logger.Info().
			Int("candidates", res.Candidates).
			Int("verified", res.Verified).
			Int("failed", res.Failed).
			Msg("Verification finished")
		return nil
	})
}

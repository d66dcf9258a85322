package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/Alias1177/SubForecast/internal/backtest"
	"github.com/Alias1177/SubForecast/internal/config"
	"github.com/Alias1177/SubForecast/internal/database"
	"github.com/Alias1177/SubForecast/internal/forecast"
	"github.com/Alias1177/SubForecast/internal/payment"
	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	migrate := flag.Bool("migrate-legacy-errors", false, "rescore verified predictions stored with the old error formula and exit")
	addPlan := flag.String("add-subscription", "", "record a manual subscription of this plan (monthly, quarterly, semester) and exit")
	addStart := flag.String("start", "", "period start of the manual subscription, YYYY-MM-DD (default today)")
	addCancel := flag.Bool("cancel-at-period-end", false, "mark the manual subscription as not renewing")
	flag.Parse()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting subscription forecast")
	printConfig(cfg)

	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancelTimeout()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if *migrate || cfg.MigrateLegacy {
		n, err := backtest.MigrateLegacyErrors(ctx, db, cfg.Tunables.LegacyErrorThreshold, cfg.Tunables.VerificationDays)
		if err != nil {
			log.Fatal().Err(err).Msg("Legacy error migration failed")
		}
		log.Info().Int("repaired", n).Msg("Legacy error migration done")
		return
	}

	if *addPlan != "" {
		sub, err := manualSubscription(*addPlan, *addStart, *addCancel, time.Now().UTC())
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid manual subscription")
		}
		id, err := database.NewManualSubscriptions(db).Add(ctx, sub)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to add manual subscription")
		}
		log.Info().
			Str("id", id).
			Str("plan", string(sub.PlanType)).
			Time("period_end", sub.PeriodEnd).
			Msg("Manual subscription added")
		return
	}

	var sources []models.SubscriptionSource
	if cfg.StripeAPIKey != "" {
		sources = append(sources, payment.NewStripeService(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.StripeRequestsPerSec))
	} else {
		log.Warn().Msg("STRIPE_API_KEY not set, using manual subscriptions only")
	}
	sources = append(sources, database.NewManualSubscriptions(db))

	dispatcher := forecast.NewDispatcher(cfg.QueueSize)
	opts := forecast.Options{
		Events:        db,
		Subscriptions: payment.NewMergedSubscriptions(sources...),
		Store:         db,
		Tunables:      cfg.Tunables,
		Dispatcher:    dispatcher,
	}
	if cfg.RunVerification {
		opts.Outcomes = db
	}
	svc := forecast.NewService(opts)

	report, err := svc.Generate(ctx)
	if err != nil {
		dispatcher.Close()
		log.Fatal().Err(err).Msg("Failed to generate report")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error().Err(err).Msg("Failed to write report")
	}

	// Let persistence and verification finish before exiting
	dispatcher.Close()
}

// manualSubscription builds a subscription whose period runs one plan length
// from start. An empty start means today.
func manualSubscription(plan, start string, cancelAtPeriodEnd bool, now time.Time) (models.Subscription, error) {
	planType := models.PlanType(plan)
	if !slices.Contains(models.PlanTypes, planType) {
		return models.Subscription{}, fmt.Errorf("unknown plan %q", plan)
	}

	periodStart := models.StartOfDay(now)
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return models.Subscription{}, fmt.Errorf("parsing start date: %w", err)
		}
		periodStart = t
	}

	return models.Subscription{
		PlanType:          planType,
		PeriodStart:       periodStart,
		PeriodEnd:         periodStart.AddDate(0, planType.Months(), 0),
		CancelAtPeriodEnd: cancelAtPeriodEnd,
		Source:            models.SourceManual,
		CreatedAt:         now,
	}, nil
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, cancelling...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	t := cfg.Tunables
	log.Info().
		Str("DBHost", cfg.DB.Host).
		Str("DBName", cfg.DB.DBName).
		Bool("Stripe", cfg.StripeAPIKey != "").
		Float64("Confidence", t.Confidence).
		Float64("ChurnMin", t.ChurnMin).
		Float64("ChurnMax", t.ChurnMax).
		Int("VerificationDays", t.VerificationDays).
		Int("LookbackDays", t.LookbackDays).
		Float64("PriceMonthly", t.PlanPrices[models.PlanMonthly]).
		Float64("PriceQuarterly", t.PlanPrices[models.PlanQuarterly]).
		Float64("PriceSemester", t.PlanPrices[models.PlanSemester]).
		Msg("Configuration loaded")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Alias1177/SubForecast/internal/config"
	"github.com/Alias1177/SubForecast/internal/database"
	"github.com/Alias1177/SubForecast/internal/payment"
	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

const maxBodyBytes = 65536

type eventVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

type eventAppender interface {
	AppendEvent(ctx context.Context, e models.Event) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log.Logger = log.Logger.Level(level)
	}

	log.Info().
		Str("host", cfg.DB.Host).
		Str("port", cfg.DB.Port).
		Str("user", cfg.DB.User).
		Str("dbname", cfg.DB.DBName).
		Msg("Webhook server starting")

	db, err := database.New(context.Background(), cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	stripeService := payment.NewStripeService(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.StripeRequestsPerSec)
	log.Info().
		Str("secret", maskSecret(cfg.StripeWebhookSecret)).
		Int("length", len(cfg.StripeWebhookSecret)).
		Msg("Stripe initialized")

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", newWebhookHandler(stripeService, db))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Webhook server is running"))
	})

	server := &http.Server{
		Addr:              cfg.WebhookAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", cfg.WebhookAddr).Msg("Starting webhook server")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// newWebhookHandler verifies Stripe webhooks and appends the user events they carry
func newWebhookHandler(verifier eventVerifier, store eventAppender) http.HandlerFunc {
	logger := log.With().Str("component", "webhook").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			logger.Error().Err(err).Msg("Error reading request body")
			http.Error(w, "Error reading request body", http.StatusBadRequest)
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			http.Error(w, "Stripe-Signature header required", http.StatusBadRequest)
			return
		}

		event, err := verifier.VerifyWebhookSignature(body, signature)
		if err != nil {
			logger.Warn().Err(err).Str("signature", maskSecret(signature)).Msg("Failed to verify webhook signature")
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}

		logger.Debug().Str("type", string(event.Type)).Str("id", event.ID).Msg("Webhook event verified")

		userEvent, err := payment.ParseWebhookEvent(event)
		if errors.Is(err, payment.ErrUnhandledEvent) {
			// Acknowledge so Stripe does not retry
			writeStatus(w, "ignored")
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to process event")
			http.Error(w, "Error processing event", http.StatusUnprocessableEntity)
			return
		}

		id, err := store.AppendEvent(r.Context(), *userEvent)
		if errors.Is(err, database.ErrDuplicateEvent) {
			logger.Info().Str("id", event.ID).Msg("Duplicate webhook delivery")
			writeStatus(w, "ignored")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("Failed to store event")
			http.Error(w, "Error storing event", http.StatusInternalServerError)
			return
		}

		logger.Info().
			Int64("event_id", id).
			Str("kind", string(userEvent.Kind)).
			Str("user", userEvent.UserID).
			Msg("Event stored")
		writeStatus(w, "success")
	}
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// maskSecret masks a secret string for logging (shows first 3 and last 3 characters)
func maskSecret(secret string) string {
	if len(secret) < 7 {
		return "***"
	}
	return secret[:3] + "..." + secret[len(secret)-3:]
}

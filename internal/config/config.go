package config

import (
	"os"
	"strconv"

	"github.com/Alias1177/SubForecast/internal/database"
	"github.com/Alias1177/SubForecast/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	DB database.ConnectionParams

	StripeAPIKey         string
	StripeWebhookSecret  string
	StripeRequestsPerSec int
	WebhookAddr          string

	LogLevel        string
	TimeoutSeconds  int
	QueueSize       int
	MigrateLegacy   bool
	RunVerification bool

	Tunables models.Tunables
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.DB = database.ConnectionParams{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "subforecast"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.StripeRequestsPerSec = getEnvIntWithDefault("STRIPE_REQUESTS_PER_SEC", 5)
	cfg.WebhookAddr = getEnvWithDefault("WEBHOOK_ADDR", ":8080")

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.TimeoutSeconds = getEnvIntWithDefault("TIMEOUT_SECONDS", 60)
	cfg.QueueSize = getEnvIntWithDefault("TASK_QUEUE_SIZE", 16)
	cfg.MigrateLegacy = getEnvBoolWithDefault("MIGRATE_LEGACY_ERRORS", false)
	cfg.RunVerification = getEnvBoolWithDefault("RUN_VERIFICATION", true)

	cfg.Tunables = loadTunables()

	return &cfg, nil
}

// loadTunables overrides the shipped engine constants from the environment
func loadTunables() models.Tunables {
	t := models.DefaultTunables()

	t.Confidence = getEnvFloatWithDefault("CONFIDENCE_LEVEL", t.Confidence)
	t.ChurnMin = getEnvFloatWithDefault("CHURN_MIN_MONTHLY", t.ChurnMin)
	t.ChurnMax = getEnvFloatWithDefault("CHURN_MAX_MONTHLY", t.ChurnMax)
	t.ChurnFallback = getEnvFloatWithDefault("CHURN_FALLBACK_MONTHLY", t.ChurnFallback)
	t.ChurnMinActiveSubs = getEnvIntWithDefault("CHURN_MIN_ACTIVE_SUBS", t.ChurnMinActiveSubs)
	t.VerificationDays = getEnvIntWithDefault("VERIFICATION_DAYS", t.VerificationDays)
	t.LegacyErrorThreshold = getEnvFloatWithDefault("LEGACY_ERROR_THRESHOLD", t.LegacyErrorThreshold)
	t.LookbackDays = getEnvIntWithDefault("TREND_LOOKBACK_DAYS", t.LookbackDays)
	t.MinTrendWeeks = getEnvIntWithDefault("TREND_MIN_WEEKS", t.MinTrendWeeks)
	t.RecentBuckets = getEnvIntWithDefault("TREND_RECENT_BUCKETS", t.RecentBuckets)
	t.RecencyWeightCap = getEnvFloatWithDefault("RECENCY_WEIGHT_CAP", t.RecencyWeightCap)
	t.RecencyWeightDivisor = getEnvFloatWithDefault("RECENCY_WEIGHT_DIVISOR", t.RecencyWeightDivisor)
	t.SlopeThreshold = getEnvFloatWithDefault("TREND_SLOPE_THRESHOLD", t.SlopeThreshold)

	t.Priors[models.MethodByHistoric] = getEnvFloatWithDefault("PRIOR_WEIGHT_HISTORIC", t.Priors[models.MethodByHistoric])
	t.Priors[models.MethodByRegistrations] = getEnvFloatWithDefault("PRIOR_WEIGHT_REGISTRATIONS", t.Priors[models.MethodByRegistrations])
	t.Priors[models.MethodByActiveUsers] = getEnvFloatWithDefault("PRIOR_WEIGHT_ACTIVE_USERS", t.Priors[models.MethodByActiveUsers])

	t.PlanPrices[models.PlanMonthly] = getEnvFloatWithDefault("PRICE_MONTHLY", t.PlanPrices[models.PlanMonthly])
	t.PlanPrices[models.PlanQuarterly] = getEnvFloatWithDefault("PRICE_QUARTERLY", t.PlanPrices[models.PlanQuarterly])
	t.PlanPrices[models.PlanSemester] = getEnvFloatWithDefault("PRICE_SEMESTER", t.PlanPrices[models.PlanSemester])

	return t
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

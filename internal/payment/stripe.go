package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	httpClient "github.com/Alias1177/SubForecast/internal/platform/http"
	"github.com/Alias1177/SubForecast/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrUnhandledEvent is returned for webhook events that do not map to a user event
var ErrUnhandledEvent = errors.New("unhandled event type")

// StripeService reads subscriptions from Stripe and maps its webhooks to events
type StripeService struct {
	WebhookSecret string
	subscriptions *subscription.Client
	logger        zerolog.Logger
}

var _ models.SubscriptionSource = (*StripeService)(nil)

// NewStripeService creates a new Stripe payment service. API calls go through
// a rate-limited client that retries throttled and failed reads.
func NewStripeService(apiKey, webhookSecret string, requestsPerSec int) *StripeService {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        30 * time.Second,
			RequestsPerSec: requestsPerSec,
		}),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return &StripeService{
		WebhookSecret: webhookSecret,
		subscriptions: &subscription.Client{B: backend, Key: apiKey},
		logger:        log.With().Str("component", "stripe").Logger(),
	}
}

// ListSubscriptions lists every subscription created up to asOf, whatever its
// status. Subscriptions whose price does not map to a known plan are skipped.
func (s *StripeService) ListSubscriptions(ctx context.Context, asOf time.Time) ([]models.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Status: stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var subs []models.Subscription
	iter := s.subscriptions.List(params)
	for iter.Next() {
		raw := iter.Subscription()
		sub, ok := ToSubscription(raw)
		if !ok {
			s.logger.Debug().Str("subscription", raw.ID).Msg("Skipping subscription with unknown plan")
			continue
		}
		if sub.CreatedAt.After(asOf) {
			continue
		}
		subs = append(subs, sub)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing stripe subscriptions: %w", err)
	}

	s.logger.Debug().Int("count", len(subs)).Msg("Fetched provider subscriptions")
	return subs, nil
}

// PlanFromPrice maps a recurring price to a plan by its month count
func PlanFromPrice(price *stripe.Price) (models.PlanType, bool) {
	if price == nil || price.Recurring == nil {
		return "", false
	}
	months := price.Recurring.IntervalCount
	if price.Recurring.Interval == stripe.PriceRecurringIntervalYear {
		months *= 12
	} else if price.Recurring.Interval != stripe.PriceRecurringIntervalMonth {
		return "", false
	}

	for _, p := range models.PlanTypes {
		if int64(p.Months()) == months {
			return p, true
		}
	}
	return "", false
}

// ToSubscription converts a Stripe subscription to the domain view
func ToSubscription(sub *stripe.Subscription) (models.Subscription, bool) {
	if sub == nil || sub.Items == nil {
		return models.Subscription{}, false
	}

	for _, item := range sub.Items.Data {
		plan, ok := PlanFromPrice(item.Price)
		if !ok {
			continue
		}
		return models.Subscription{
			ID:                sub.ID,
			PlanType:          plan,
			PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:         periodEnd(sub),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			Source:            models.SourceProvider,
			CreatedAt:         time.Unix(sub.Created, 0).UTC(),
		}, true
	}
	return models.Subscription{}, false
}

// periodEnd cuts the period short for subscriptions that already ended
func periodEnd(sub *stripe.Subscription) time.Time {
	end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	if sub.EndedAt > 0 {
		if ended := time.Unix(sub.EndedAt, 0).UTC(); ended.Before(end) {
			return ended
		}
	}
	return end
}

// VerifyWebhookSignature verifies the signature of a Stripe webhook event
func (s *StripeService) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verifying webhook signature: %w", err)
	}
	return &event, nil
}

// ParseWebhookEvent maps a Stripe webhook event to a user event.
// Events that carry nothing for the forecast return ErrUnhandledEvent.
// The Stripe event ID is kept on the result so redelivered events can be
// deduplicated on insert.
func ParseWebhookEvent(event *stripe.Event) (*models.Event, error) {
	if event == nil || event.Data == nil {
		return nil, fmt.Errorf("empty event")
	}
	ev, err := parseEventObject(event)
	if err != nil {
		return nil, err
	}
	ev.SourceEventID = event.ID
	return ev, nil
}

func parseEventObject(event *stripe.Event) (*models.Event, error) {

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		// Subscription checkouts are billed through invoices, which arrive as invoice.paid
		if sess.Mode == stripe.CheckoutSessionModeSubscription {
			return nil, ErrUnhandledEvent
		}
		userID := userIdentity(sess.Metadata, sess.ClientReferenceID, sess.Customer)
		if userID == "" {
			return nil, fmt.Errorf("no user on checkout session %s", sess.ID)
		}
		return &models.Event{
			UserID:      userID,
			Kind:        models.EventPayment,
			OccurredAt:  eventTime(sess.Created, event),
			AmountCents: stripe.Int64(sess.AmountTotal),
		}, nil

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice: %w", err)
		}
		if inv.AmountPaid <= 0 {
			return nil, ErrUnhandledEvent
		}
		userID := userIdentity(inv.Metadata, "", inv.Customer)
		if userID == "" {
			return nil, fmt.Errorf("no user on invoice %s", inv.ID)
		}
		paidAt := inv.Created
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			paidAt = inv.StatusTransitions.PaidAt
		}
		return &models.Event{
			UserID:      userID,
			Kind:        models.EventPayment,
			OccurredAt:  eventTime(paidAt, event),
			AmountCents: stripe.Int64(inv.AmountPaid),
		}, nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("failed to parse charge: %w", err)
		}
		if charge.AmountRefunded <= 0 {
			return nil, ErrUnhandledEvent
		}
		userID := userIdentity(charge.Metadata, "", charge.Customer)
		if userID == "" {
			return nil, fmt.Errorf("no user on charge %s", charge.ID)
		}
		// A refund is its own event at refund time; the original charge
		// already arrived as a payment.
		return &models.Event{
			UserID:            userID,
			Kind:              models.EventPayment,
			OccurredAt:        eventTime(0, event),
			RefundAmountCents: stripe.Int64(charge.AmountRefunded),
		}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		userID := userIdentity(sub.Metadata, "", sub.Customer)
		if userID == "" {
			return nil, fmt.Errorf("no user on subscription %s", sub.ID)
		}
		canceledAt := sub.CanceledAt
		if canceledAt == 0 {
			canceledAt = sub.EndedAt
		}
		return &models.Event{
			UserID:     userID,
			Kind:       models.EventCancellation,
			OccurredAt: eventTime(canceledAt, event),
		}, nil

	default:
		return nil, ErrUnhandledEvent
	}
}

// userIdentity prefers our own user id from metadata, then the client
// reference, then the Stripe customer
func userIdentity(metadata map[string]string, clientReference string, customer *stripe.Customer) string {
	if id := metadata["user_id"]; id != "" {
		return id
	}
	if clientReference != "" {
		return clientReference
	}
	if customer != nil {
		return customer.ID
	}
	return ""
}

func eventTime(unix int64, event *stripe.Event) time.Time {
	if unix > 0 {
		return time.Unix(unix, 0).UTC()
	}
	return time.Unix(event.Created, 0).UTC()
}

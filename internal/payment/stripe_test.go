package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Alias1177/SubForecast/internal/analyze"
	"github.com/Alias1177/SubForecast/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func recurring(interval stripe.PriceRecurringInterval, count int64) *stripe.Price {
	return &stripe.Price{Recurring: &stripe.PriceRecurring{Interval: interval, IntervalCount: count}}
}

func TestPlanFromPrice(t *testing.T) {
	tests := []struct {
		name  string
		price *stripe.Price
		want  models.PlanType
		ok    bool
	}{
		{"monthly", recurring(stripe.PriceRecurringIntervalMonth, 1), models.PlanMonthly, true},
		{"quarterly", recurring(stripe.PriceRecurringIntervalMonth, 3), models.PlanQuarterly, true},
		{"semester", recurring(stripe.PriceRecurringIntervalMonth, 6), models.PlanSemester, true},
		{"yearly is not offered", recurring(stripe.PriceRecurringIntervalYear, 1), "", false},
		{"weekly", recurring(stripe.PriceRecurringIntervalWeek, 4), "", false},
		{"one-off price", &stripe.Price{}, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PlanFromPrice(tt.price)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSubscription(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &stripe.Subscription{
		ID:                 "sub_1",
		Created:            start.Unix(),
		CurrentPeriodStart: start.Unix(),
		CurrentPeriodEnd:   start.AddDate(0, 3, 0).Unix(),
		CancelAtPeriodEnd:  true,
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
			{Price: recurring(stripe.PriceRecurringIntervalMonth, 3)},
		}},
	}

	got, ok := ToSubscription(sub)
	require.True(t, ok)
	assert.Equal(t, models.PlanQuarterly, got.PlanType)
	assert.Equal(t, models.SourceProvider, got.Source)
	assert.True(t, got.CancelAtPeriodEnd)
	assert.Equal(t, start.AddDate(0, 3, 0), got.PeriodEnd)

	t.Run("ended subscriptions stop at the end date", func(t *testing.T) {
		ended := *sub
		ended.EndedAt = start.AddDate(0, 1, 0).Unix()
		got, ok := ToSubscription(&ended)
		require.True(t, ok)
		assert.Equal(t, start.AddDate(0, 1, 0), got.PeriodEnd)
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, ok := ToSubscription(&stripe.Subscription{Items: &stripe.SubscriptionItemList{}})
		assert.False(t, ok)
	})
}

func stripeEvent(typ, object string) *stripe.Event {
	var e stripe.Event
	payload := `{"id":"evt_1","type":"` + typ + `","created":1767225600,"data":{"object":` + object + `}}`
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		panic(err)
	}
	return &e
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("invoice paid", func(t *testing.T) {
		e, err := ParseWebhookEvent(stripeEvent("invoice.paid",
			`{"id":"in_1","amount_paid":990,"customer":"cus_1","created":1767000000,"status_transitions":{"paid_at":1767100000}}`))
		require.NoError(t, err)
		assert.Equal(t, models.EventPayment, e.Kind)
		assert.Equal(t, "cus_1", e.UserID)
		assert.Equal(t, int64(990), *e.AmountCents)
		assert.Equal(t, time.Unix(1767100000, 0).UTC(), e.OccurredAt)
		assert.False(t, e.Refunded())
	})

	t.Run("metadata user id wins", func(t *testing.T) {
		e, err := ParseWebhookEvent(stripeEvent("checkout.session.completed",
			`{"id":"cs_1","mode":"payment","amount_total":4990,"customer":"cus_1","client_reference_id":"ref","metadata":{"user_id":"u42"}}`))
		require.NoError(t, err)
		assert.Equal(t, "u42", e.UserID)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), e.OccurredAt)
	})

	t.Run("subscription checkout waits for the invoice", func(t *testing.T) {
		_, err := ParseWebhookEvent(stripeEvent("checkout.session.completed",
			`{"id":"cs_2","mode":"subscription","amount_total":990,"customer":"cus_1"}`))
		assert.True(t, errors.Is(err, ErrUnhandledEvent))
	})

	t.Run("refund", func(t *testing.T) {
		e, err := ParseWebhookEvent(stripeEvent("charge.refunded",
			`{"id":"ch_1","amount":990,"amount_refunded":990,"customer":"cus_1","created":1767000000}`))
		require.NoError(t, err)
		assert.True(t, e.Refunded())
		assert.False(t, e.Paid())
		assert.Nil(t, e.AmountCents)
		assert.Equal(t, int64(990), *e.RefundAmountCents)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), e.OccurredAt)
		assert.Equal(t, "evt_1", e.SourceEventID)
	})

	t.Run("charge without refunded amount", func(t *testing.T) {
		_, err := ParseWebhookEvent(stripeEvent("charge.refunded",
			`{"id":"ch_3","amount":990,"customer":"cus_1"}`))
		assert.ErrorIs(t, err, ErrUnhandledEvent)
	})

	t.Run("cancellation", func(t *testing.T) {
		e, err := ParseWebhookEvent(stripeEvent("customer.subscription.deleted",
			`{"id":"sub_1","customer":"cus_9","canceled_at":1767000000}`))
		require.NoError(t, err)
		assert.Equal(t, models.EventCancellation, e.Kind)
		assert.Equal(t, "cus_9", e.UserID)
		assert.Nil(t, e.AmountCents)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := ParseWebhookEvent(stripeEvent("charge.refunded", `{"id":"ch_2","amount":100,"amount_refunded":100}`))
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnhandledEvent))
	})

	t.Run("unrelated event", func(t *testing.T) {
		_, err := ParseWebhookEvent(stripeEvent("customer.created", `{}`))
		assert.ErrorIs(t, err, ErrUnhandledEvent)
	})
}

func TestRefundedInvoiceLeavesNoNetPayer(t *testing.T) {
	paid, err := ParseWebhookEvent(stripeEvent("invoice.paid",
		`{"id":"in_1","amount_paid":990,"customer":"cus_1","created":1767000000,"status_transitions":{"paid_at":1767100000}}`))
	require.NoError(t, err)
	refund, err := ParseWebhookEvent(stripeEvent("charge.refunded",
		`{"id":"ch_1","amount":990,"amount_refunded":990,"customer":"cus_1","created":1767100000}`))
	require.NoError(t, err)
	require.True(t, refund.OccurredAt.After(paid.OccurredAt))

	events := []models.Event{*paid, *refund}
	gross, net := analyze.NetPayers(events, nil)
	assert.Len(t, gross, 1)
	assert.Empty(t, net)

	var revenue int64
	for _, e := range events {
		if e.AmountCents != nil {
			revenue += *e.AmountCents
		}
		if e.RefundAmountCents != nil {
			revenue -= *e.RefundAmountCents
		}
	}
	assert.Zero(t, revenue)
}

type staticSource struct {
	subs []models.Subscription
	err  error
}

func (s staticSource) ListSubscriptions(context.Context, time.Time) ([]models.Subscription, error) {
	return s.subs, s.err
}

func TestMergedSubscriptions(t *testing.T) {
	ctx := context.Background()
	provider := staticSource{subs: []models.Subscription{{ID: "sub_1", Source: models.SourceProvider}}}
	manual := staticSource{subs: []models.Subscription{{ID: "m1", Source: models.SourceManual}, {ID: "m2", Source: models.SourceManual}}}

	all, err := NewMergedSubscriptions(provider, nil, manual).ListSubscriptions(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "sub_1", all[0].ID)

	_, err = NewMergedSubscriptions(provider, staticSource{err: errors.New("boom")}).ListSubscriptions(ctx, time.Now())
	assert.ErrorContains(t, err, "boom")
}

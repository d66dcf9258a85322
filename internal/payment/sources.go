package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/models"
)

// MergedSubscriptions concatenates provider and manual subscription snapshots
type MergedSubscriptions struct {
	sources []models.SubscriptionSource
}

// NewMergedSubscriptions merges the given sources. Nil sources are ignored.
func NewMergedSubscriptions(sources ...models.SubscriptionSource) *MergedSubscriptions {
	m := &MergedSubscriptions{}
	for _, s := range sources {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
	return m
}

// ListSubscriptions lists every source in order. Any failure fails the snapshot.
func (m *MergedSubscriptions) ListSubscriptions(ctx context.Context, asOf time.Time) ([]models.Subscription, error) {
	var all []models.Subscription
	for i, s := range m.sources {
		subs, err := s.ListSubscriptions(ctx, asOf)
		if err != nil {
			return nil, fmt.Errorf("subscription source %d: %w", i, err)
		}
		all = append(all, subs...)
	}
	return all, nil
}

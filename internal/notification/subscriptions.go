package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
)

const subscriptionsDocument = "push_subscriptions.json"

// Subscriptions stores browser push subscriptions keyed by endpoint.
type Subscriptions struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time
}

// NewSubscriptions creates a subscription store.
func NewSubscriptions(s store.Store) *Subscriptions {
	return &Subscriptions{store: s, now: time.Now}
}

// Put creates or replaces the subscription for sub.Endpoint.
func (s *Subscriptions) Put(ctx context.Context, sub model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return err
	}
	if old, ok := subs[sub.Endpoint]; ok && !old.CreatedAt.IsZero() {
		sub.CreatedAt = old.CreatedAt
	} else {
		sub.CreatedAt = s.now().UTC()
	}
	subs[sub.Endpoint] = sub
	return store.SaveJSON(ctx, s.store, subscriptionsDocument, subs)
}

// Delete removes the subscription for endpoint. Deleting an unknown endpoint is not an error.
func (s *Subscriptions) Delete(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := subs[endpoint]; !ok {
		return nil
	}
	delete(subs, endpoint)
	return store.SaveJSON(ctx, s.store, subscriptionsDocument, subs)
}

// List returns every subscription sorted by endpoint.
func (s *Subscriptions) List(ctx context.Context) ([]model.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PushSubscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func (s *Subscriptions) load(ctx context.Context) (map[string]model.PushSubscription, error) {
	subs := make(map[string]model.PushSubscription)
	err := store.LoadJSON(ctx, s.store, subscriptionsDocument, &subs)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	return subs, nil
}

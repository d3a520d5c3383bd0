package registry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/match"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

// SubscriptionCriteria selects subscriptions. Empty fields do not constrain.
type SubscriptionCriteria struct {
	MTAID        string `json:"mta_id,omitempty"`
	SpaceID      string `json:"space_id,omitempty"`
	AppName      string `json:"app_name,omitempty"`
	ResourceName string `json:"resource_name,omitempty"`
}

func (c SubscriptionCriteria) query() store.SubscriptionQuery {
	return store.SubscriptionQuery{
		MTAID:        c.MTAID,
		SpaceID:      c.SpaceID,
		AppName:      c.AppName,
		ResourceName: c.ResourceName,
	}
}

// SubscriptionService manages configuration subscriptions.
type SubscriptionService struct {
	*deps
}

// Add validates and persists a new subscription, assigning its id.
func (s *SubscriptionService) Add(ctx context.Context, sub model.ConfigurationSubscription) (_ *model.ConfigurationSubscription, err error) {
	ctx, span := s.start(ctx, "registry.subscriptions.add",
		attribute.String("mta_id", sub.MTAID),
		attribute.String("app_name", sub.AppName))
	defer func() { endSpan(span, err) }()

	sub.ID = 0
	if err := model.ValidateSubscription(&sub); err != nil {
		return nil, err
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateSubscription(ctx, &sub)
	})
	if err != nil {
		return nil, translateWrite(err, model.KindSubscription, 0, sub.Key())
	}

	s.publish(ctx, events.TopicSubscriptionCreated, events.SubscriptionCreated{Subscription: &sub})
	return &sub, nil
}

// Update applies delta to the subscription with the given id inside one transaction.
func (s *SubscriptionService) Update(ctx context.Context, id int64, delta model.SubscriptionDelta) (_ *model.ConfigurationSubscription, err error) {
	ctx, span := s.start(ctx, "registry.subscriptions.update", attribute.Int64("id", id))
	defer func() { endSpan(span, err) }()

	if err := model.ValidateSubscriptionDelta(&delta); err != nil {
		return nil, err
	}

	var updated model.ConfigurationSubscription
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		updated = delta.Apply(*cur)
		if err := model.ValidateSubscription(&updated); err != nil {
			return err
		}
		return tx.UpdateSubscription(ctx, &updated)
	})
	if err != nil {
		return nil, translateWrite(err, model.KindSubscription, id, updated.Key())
	}

	s.publish(ctx, events.TopicSubscriptionUpdated, events.SubscriptionUpdated{Subscription: &updated})
	return &updated, nil
}

// Remove deletes the subscription with the given id.
func (s *SubscriptionService) Remove(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "registry.subscriptions.remove", attribute.Int64("id", id))
	defer func() { endSpan(span, err) }()

	var removed *model.ConfigurationSubscription
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteSubscription(ctx, id); err != nil {
			return err
		}
		removed = cur
		return nil
	})
	if err != nil {
		return translate(err, model.KindSubscription, id)
	}

	s.audit.SubscriptionDeleted(ctx, removed.SpaceID, removed)
	s.publish(ctx, events.TopicSubscriptionDeleted, events.SubscriptionDeleted{Subscription: removed})
	return nil
}

// RemoveAll deletes every subscription of spaceID and returns how many were removed.
func (s *SubscriptionService) RemoveAll(ctx context.Context, spaceID string) (_ int64, err error) {
	ctx, span := s.start(ctx, "registry.subscriptions.remove_all", attribute.String("space_id", spaceID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(spaceID) == "" {
		return 0, &model.ValidationError{Errors: []model.FieldError{{Field: "space_id", Message: "is required"}}}
	}
	var n int64
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		n, err = tx.DeleteSubscriptionsBySpace(ctx, spaceID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("remove configuration subscriptions of space %s: %w", spaceID, err)
	}

	s.audit.SpaceCleared(ctx, spaceID, model.KindSubscription, n)
	s.publish(ctx, events.TopicSpacePurged, events.SpacePurged{SpaceID: spaceID, DeletedSubscriptions: int(n)})
	return n, nil
}

// Find returns the subscriptions satisfying c, ordered by id.
func (s *SubscriptionService) Find(ctx context.Context, c SubscriptionCriteria) ([]*model.ConfigurationSubscription, error) {
	subs, err := s.store.ListSubscriptions(ctx, c.query())
	if err != nil {
		return nil, fmt.Errorf("find configuration subscriptions: %w", err)
	}
	return subs, nil
}

// FindByID returns the subscription with the given id.
func (s *SubscriptionService) FindByID(ctx context.Context, id int64) (*model.ConfigurationSubscription, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return nil, translate(err, model.KindSubscription, id)
	}
	return sub, nil
}

// Exists reports whether a subscription with the given id exists. Store
// failures are logged and reported as false.
func (s *SubscriptionService) Exists(ctx context.Context, id int64) bool {
	_, err := s.FindByID(ctx, id)
	if err != nil && !model.IsNotFound(err) {
		s.log.WarnContext(ctx, "checking configuration subscription existence", "id", id, "err", err)
	}
	return err == nil
}

// FindMatching returns the subscriptions within scope whose filter is
// satisfied by at least one of entries. Subscriptions are loaded once and
// matched in process.
func (s *SubscriptionService) FindMatching(ctx context.Context, entries []*model.ConfigurationEntry, scope SubscriptionCriteria) (_ []*model.ConfigurationSubscription, err error) {
	ctx, span := s.start(ctx, "registry.subscriptions.find_matching", attribute.Int("entries", len(entries)))
	defer func() { endSpan(span, err) }()

	if len(entries) == 0 {
		return nil, nil
	}
	subs, err := s.store.ListSubscriptions(ctx, scope.query())
	if err != nil {
		return nil, fmt.Errorf("find matching subscriptions: %w", err)
	}

	var out []*model.ConfigurationSubscription
	for _, sub := range subs {
		for _, e := range entries {
			if match.Filter(&sub.Filter, e) {
				out = append(out, sub)
				break
			}
		}
	}
	span.SetAttributes(attribute.Int("matched", len(out)))
	return out, nil
}

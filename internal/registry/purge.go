package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

// PurgeReport summarizes one purge run.
type PurgeReport struct {
	SpaceID              string  `json:"space_id"`
	DeletedEntries       []int64 `json:"deleted_entries"`
	DeletedSubscriptions []int64 `json:"deleted_subscriptions"`
	Failures             int     `json:"failures"`
}

// Purger removes registry rows whose owning application or module no
// longer exists in a space.
type Purger struct {
	*deps
}

// providedKey identifies an entry by provider id and version.
type providedKey struct {
	providerID string
	version    string
}

// Purge reconciles the rows of spaceID against the applications currently
// running there. Subscriptions of vanished applications and MTA entries no
// longer provided by any live module are deleted, each in its own
// transaction. A failed deletion is logged and skipped, so Purge only fails
// when the rows cannot be listed. Running it again with the same inventory
// deletes nothing.
func (p *Purger) Purge(ctx context.Context, spaceID string, live []model.LiveApplication) (report PurgeReport, err error) {
	ctx, span := p.start(ctx, "registry.purge",
		attribute.String("space_id", spaceID),
		attribute.Int("live_applications", len(live)))
	defer func() { endSpan(span, err) }()

	report = PurgeReport{SpaceID: spaceID, DeletedEntries: []int64{}, DeletedSubscriptions: []int64{}}
	if strings.TrimSpace(spaceID) == "" {
		return report, &model.ValidationError{Errors: []model.FieldError{{Field: "space_id", Message: "is required"}}}
	}

	subs, err := p.store.ListSubscriptions(ctx, store.SubscriptionQuery{SpaceID: spaceID})
	if err != nil {
		return report, err
	}
	entries, err := p.store.ListEntries(ctx, store.EntryQuery{
		ProviderNID: model.ProviderNIDMTA,
		SpaceID:     spaceID,
		OrderByID:   true,
	})
	if err != nil {
		return report, err
	}

	appNames := make(map[string]struct{}, len(live))
	relevant := make(map[providedKey]struct{})
	for _, app := range live {
		appNames[app.Name] = struct{}{}
		if app.MTA == nil {
			continue
		}
		for _, dep := range app.ProvidedDependencyNames {
			relevant[providedKey{model.ComputeProviderID(app.MTA.ID, dep), model.CanonicalVersion(app.MTA.Version)}] = struct{}{}
		}
	}

	for _, sub := range subs {
		if _, ok := appNames[sub.AppName]; ok {
			continue
		}
		deleted, err := p.deleteOne(ctx, func(tx store.Store) error { return tx.DeleteSubscription(ctx, sub.ID) })
		if err != nil {
			p.log.WarnContext(ctx, "purge: failed to delete subscription", "space_id", spaceID, "id", sub.ID, "app", sub.AppName, "err", err)
			report.Failures++
			continue
		}
		if !deleted {
			continue
		}
		report.DeletedSubscriptions = append(report.DeletedSubscriptions, sub.ID)
		p.audit.SubscriptionDeleted(ctx, spaceID, sub)
		p.publish(ctx, events.TopicSubscriptionDeleted, events.SubscriptionDeleted{Subscription: sub})
	}

	for _, e := range entries {
		if _, ok := relevant[providedKey{e.ProviderID, model.CanonicalVersion(e.ProviderVersion)}]; ok {
			continue
		}
		deleted, err := p.deleteOne(ctx, func(tx store.Store) error { return tx.DeleteEntry(ctx, e.ID) })
		if err != nil {
			p.log.WarnContext(ctx, "purge: failed to delete configuration entry", "space_id", spaceID, "id", e.ID, "provider_id", e.ProviderID, "err", err)
			report.Failures++
			continue
		}
		if !deleted {
			continue
		}
		report.DeletedEntries = append(report.DeletedEntries, e.ID)
		p.audit.EntryDeleted(ctx, spaceID, e)
		p.publish(ctx, events.TopicEntryDeleted, events.EntryDeleted{Entry: e})
	}

	if n := len(report.DeletedEntries) + len(report.DeletedSubscriptions); n > 0 || report.Failures > 0 {
		p.log.InfoContext(ctx, "purged configuration registry",
			"space_id", spaceID,
			"entries", len(report.DeletedEntries),
			"subscriptions", len(report.DeletedSubscriptions),
			"failures", report.Failures)
		p.publish(ctx, events.TopicSpacePurged, events.SpacePurged{
			SpaceID:              spaceID,
			DeletedEntries:       len(report.DeletedEntries),
			DeletedSubscriptions: len(report.DeletedSubscriptions),
			Failures:             report.Failures,
		})
	}
	span.SetAttributes(
		attribute.Int("deleted_entries", len(report.DeletedEntries)),
		attribute.Int("deleted_subscriptions", len(report.DeletedSubscriptions)))
	return report, nil
}

// deleteOne runs del in its own transaction. A row that is already gone is
// not an error and reports deleted=false.
func (p *Purger) deleteOne(ctx context.Context, del func(tx store.Store) error) (bool, error) {
	err := p.store.RunInTransaction(ctx, del)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	}
	return false, err
}

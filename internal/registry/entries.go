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

// EntryCriteria selects configuration entries. Empty fields do not constrain.
type EntryCriteria struct {
	ProviderNID string `json:"provider_nid,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
	// MTAID selects every provider id of the form "<MTAID>:...".
	MTAID string `json:"mta_id,omitempty"`
	// ProviderNamespace "default" selects entries without a namespace.
	ProviderNamespace  string        `json:"provider_namespace,omitempty"`
	VersionRequirement string        `json:"version,omitempty"`
	Target             *model.Target `json:"target,omitempty"`
	RequiredContent    model.Content `json:"required_content"`
	// VisibleTo keeps entries visible to at least one of the targets.
	VisibleTo []model.Target `json:"visible_to,omitempty"`
	SpaceID   string         `json:"space_id,omitempty"`
	OrderByID bool           `json:"order_by_id,omitempty"`
}

// CriteriaFromFilter converts a subscription filter into entry criteria.
func CriteriaFromFilter(f model.ConfigurationFilter) EntryCriteria {
	c := EntryCriteria{
		ProviderNID:        f.ProviderNID,
		ProviderID:         f.ProviderID,
		MTAID:              f.MTAID,
		ProviderNamespace:  f.ProviderNamespace,
		VersionRequirement: f.ProviderVersion,
		Target:             f.TargetSpace,
		RequiredContent:    f.RequiredContent,
		OrderByID:          true,
	}
	if f.Requester != nil {
		c.VisibleTo = []model.Target{*f.Requester}
	}
	return c
}

func (c *EntryCriteria) validate() (model.Requirement, error) {
	var ve model.ValidationError
	req, err := model.ParseRequirement(c.VersionRequirement)
	if err != nil {
		ve.Add("version", err.Error())
	}
	if c.ProviderID != "" && c.MTAID != "" {
		ve.Add("mta_id", "cannot be combined with provider_id")
	}
	if ve.HasErrors() {
		return model.Requirement{}, &ve
	}
	return req, nil
}

// pattern returns the criteria target with empty components widened to the wildcard.
func (c *EntryCriteria) pattern() (model.Target, bool) {
	if c.Target == nil {
		return model.Target{}, false
	}
	t := *c.Target
	if strings.TrimSpace(t.Org) == "" {
		t.Org = model.Wildcard
	}
	if strings.TrimSpace(t.Space) == "" {
		t.Space = model.Wildcard
	}
	return t, true
}

// query builds the indexed predicates pushed down to the store.
func (c *EntryCriteria) query() store.EntryQuery {
	q := store.EntryQuery{
		ProviderNID: c.ProviderNID,
		ProviderID:  c.ProviderID,
		SpaceID:     c.SpaceID,
		OrderByID:   c.OrderByID,
	}
	if c.MTAID != "" {
		q.ProviderIDPrefix = model.ProviderIDPrefix(c.MTAID)
	}
	if c.ProviderNamespace != "" {
		ns := model.NormalizeNamespace(c.ProviderNamespace)
		q.ProviderNamespace = &ns
	}
	if t, ok := c.pattern(); ok {
		if t.Org != model.Wildcard {
			q.Org = t.Org
		}
		if t.Space != model.Wildcard {
			q.Space = t.Space
		}
	}
	return q
}

// EntryService manages configuration entries.
type EntryService struct {
	*deps
	globalTarget *model.Target
}

// Add validates and persists a new entry, assigning its id. A nil visibility
// defaults to every space of the owner's organization.
func (s *EntryService) Add(ctx context.Context, entry model.ConfigurationEntry) (_ *model.ConfigurationEntry, err error) {
	ctx, span := s.start(ctx, "registry.entries.add",
		attribute.String("provider_id", entry.ProviderID),
		attribute.String("provider_version", entry.ProviderVersion))
	defer func() { endSpan(span, err) }()

	entry.ID = 0
	entry.ProviderNamespace = model.NormalizeNamespace(entry.ProviderNamespace)
	entry.ProviderVersion = model.CanonicalVersion(entry.ProviderVersion)
	if entry.Visibility == nil {
		entry.Visibility = model.DefaultVisibility(entry.Target)
	}
	if err := model.ValidateEntry(&entry); err != nil {
		return nil, err
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateEntry(ctx, &entry)
	})
	if err != nil {
		return nil, translateWrite(err, model.KindEntry, 0, entry.Key())
	}

	s.log.DebugContext(ctx, "configuration entry added", "id", entry.ID, "provider_id", entry.ProviderID)
	s.publish(ctx, events.TopicEntryPublished, events.EntryPublished{Entry: &entry})
	return &entry, nil
}

// Update applies delta to the entry with the given id inside one
// transaction. Moving the entry onto the key of another entry is a conflict.
func (s *EntryService) Update(ctx context.Context, id int64, delta model.EntryDelta) (_ *model.ConfigurationEntry, err error) {
	ctx, span := s.start(ctx, "registry.entries.update", attribute.Int64("id", id))
	defer func() { endSpan(span, err) }()

	if err := model.ValidateEntryDelta(&delta); err != nil {
		return nil, err
	}

	var previous, updated model.ConfigurationEntry
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		previous = *cur
		updated = delta.Apply(*cur)
		if err := model.ValidateEntry(&updated); err != nil {
			return err
		}
		return tx.UpdateEntry(ctx, &updated)
	})
	if err != nil {
		return nil, translateWrite(err, model.KindEntry, id, updated.Key())
	}

	s.publish(ctx, events.TopicEntryUpdated, events.EntryUpdated{Entry: &updated, Previous: &previous})
	return &updated, nil
}

// Remove deletes the entry with the given id.
func (s *EntryService) Remove(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "registry.entries.remove", attribute.Int64("id", id))
	defer func() { endSpan(span, err) }()

	var removed *model.ConfigurationEntry
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		removed = cur
		return nil
	})
	if err != nil {
		return translate(err, model.KindEntry, id)
	}

	s.audit.EntryDeleted(ctx, removed.SpaceID, removed)
	s.publish(ctx, events.TopicEntryDeleted, events.EntryDeleted{Entry: removed})
	return nil
}

// RemoveAll deletes every entry owned by spaceID and returns how many were removed.
func (s *EntryService) RemoveAll(ctx context.Context, spaceID string) (_ int64, err error) {
	ctx, span := s.start(ctx, "registry.entries.remove_all", attribute.String("space_id", spaceID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(spaceID) == "" {
		return 0, &model.ValidationError{Errors: []model.FieldError{{Field: "space_id", Message: "is required"}}}
	}
	var n int64
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		n, err = tx.DeleteEntriesBySpace(ctx, spaceID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("remove configuration entries of space %s: %w", spaceID, err)
	}

	s.audit.SpaceCleared(ctx, spaceID, model.KindEntry, n)
	s.publish(ctx, events.TopicSpacePurged, events.SpacePurged{SpaceID: spaceID, DeletedEntries: int(n)})
	return n, nil
}

// Find returns the entries satisfying c. Cheap predicates are evaluated by
// the store; version, target, content and visibility are checked here.
func (s *EntryService) Find(ctx context.Context, c EntryCriteria) (_ []*model.ConfigurationEntry, err error) {
	ctx, span := s.start(ctx, "registry.entries.find")
	defer func() { endSpan(span, err) }()

	req, err := c.validate()
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListEntries(ctx, c.query())
	if err != nil {
		return nil, fmt.Errorf("find configuration entries: %w", err)
	}

	pattern, hasTarget := c.pattern()
	out := make([]*model.ConfigurationEntry, 0, len(rows))
	for _, e := range rows {
		if hasTarget && !match.Target(e.Target, pattern) {
			continue
		}
		if !match.VersionRequirement(e.ProviderVersion, req) {
			continue
		}
		if !match.Content(e.Content, c.RequiredContent) {
			continue
		}
		if !match.VisibleToAny(e, c.VisibleTo) {
			continue
		}
		out = append(out, e)
	}
	span.SetAttributes(attribute.Int("scanned", len(rows)), attribute.Int("matched", len(out)))
	return out, nil
}

// FindWithGlobalFallback resolves a consumer filter. When nothing matches
// and the filter does not insist on its target, the global configuration
// target is searched instead, with a missing namespace meaning the default
// namespace.
func (s *EntryService) FindWithGlobalFallback(ctx context.Context, f model.ConfigurationFilter, visibleTo []model.Target) ([]*model.ConfigurationEntry, error) {
	c := CriteriaFromFilter(f)
	c.VisibleTo = append(c.VisibleTo, visibleTo...)

	found, err := s.Find(ctx, c)
	if err != nil || len(found) > 0 || f.StrictTargetSpace || s.globalTarget == nil {
		return found, err
	}
	if c.Target != nil && *c.Target == *s.globalTarget {
		return found, nil
	}

	global := *s.globalTarget
	c.Target = &global
	if c.ProviderNamespace == "" {
		c.ProviderNamespace = model.DefaultNamespace
	}
	s.log.DebugContext(ctx, "no entries in target, searching global configuration space", "target", global.String())
	return s.Find(ctx, c)
}

// FindByID returns the entry with the given id.
func (s *EntryService) FindByID(ctx context.Context, id int64) (*model.ConfigurationEntry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, translate(err, model.KindEntry, id)
	}
	return e, nil
}

// Exists reports whether an entry with the given id exists. Store failures
// are logged and reported as false.
func (s *EntryService) Exists(ctx context.Context, id int64) bool {
	_, err := s.FindByID(ctx, id)
	if err != nil && !model.IsNotFound(err) {
		s.log.WarnContext(ctx, "checking configuration entry existence", "id", id, "err", err)
	}
	return err == nil
}

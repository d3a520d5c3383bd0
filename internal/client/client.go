// Package client provides a transport-agnostic interface for the
// configuration registry and an HTTP/JSON implementation that talks to the
// registry's REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
)

// RegistryClient is the interface the cfgreg CLI commands use to talk to a
// registry server.
type RegistryClient interface {
	// Entries
	AddEntry(ctx context.Context, e model.ConfigurationEntry) (*model.ConfigurationEntry, error)
	GetEntry(ctx context.Context, id int64) (*model.ConfigurationEntry, error)
	ListEntries(ctx context.Context, req *ListEntriesRequest) ([]*model.ConfigurationEntry, error)
	SearchEntries(ctx context.Context, c registry.EntryCriteria) ([]*model.ConfigurationEntry, error)
	ResolveEntries(ctx context.Context, f model.ConfigurationFilter, visibleTo []model.Target) ([]*model.ConfigurationEntry, error)
	UpdateEntry(ctx context.Context, id int64, delta model.EntryDelta) (*model.ConfigurationEntry, error)
	RemoveEntry(ctx context.Context, id int64) error
	RemoveSpaceEntries(ctx context.Context, spaceID string) (int64, error)

	// Subscriptions
	AddSubscription(ctx context.Context, s model.ConfigurationSubscription) (*model.ConfigurationSubscription, error)
	GetSubscription(ctx context.Context, id int64) (*model.ConfigurationSubscription, error)
	ListSubscriptions(ctx context.Context, c registry.SubscriptionCriteria) ([]*model.ConfigurationSubscription, error)
	MatchSubscriptions(ctx context.Context, req *MatchRequest) ([]*model.ConfigurationSubscription, error)
	UpdateSubscription(ctx context.Context, id int64, delta model.SubscriptionDelta) (*model.ConfigurationSubscription, error)
	RemoveSubscription(ctx context.Context, id int64) error
	RemoveSpaceSubscriptions(ctx context.Context, spaceID string) (int64, error)

	// Spaces
	Purge(ctx context.Context, spaceID string, live []model.LiveApplication) (*registry.PurgeReport, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListEntriesRequest holds the query parameters for ListEntries. Targets
// are written "org/space".
type ListEntriesRequest struct {
	ProviderNID string
	ProviderID  string
	MTAID       string
	Namespace   string
	Version     string
	Target      string
	VisibleTo   []string
	SpaceID     string
}

// MatchRequest selects the subscriptions interested in a set of entries,
// given inline or by id.
type MatchRequest struct {
	Entries  []*model.ConfigurationEntry   `json:"entries,omitempty"`
	EntryIDs []int64                       `json:"entry_ids,omitempty"`
	Scope    registry.SubscriptionCriteria `json:"scope"`
}

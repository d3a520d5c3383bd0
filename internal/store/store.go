package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// ErrUniqueViolation is returned when a write collides with a unique index.
// Missing rows are reported as sql.ErrNoRows.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrSerializationFailure is returned when a serializable transaction lost
// a race with a concurrent writer.
var ErrSerializationFailure = errors.New("serialization failure")

// EntryQuery holds the indexed predicates pushed down to the store when
// listing configuration entries. Empty fields do not constrain.
type EntryQuery struct {
	ProviderNID      string
	ProviderID       string
	ProviderIDPrefix string
	// ProviderNamespace filters by exact (normalized) namespace when non-nil.
	ProviderNamespace *string
	// Org and Space match rows holding the same value or the wildcard.
	Org       string
	Space     string
	SpaceID   string
	OrderByID bool
}

// SubscriptionQuery holds the predicates for listing subscriptions.
type SubscriptionQuery struct {
	MTAID        string
	SpaceID      string
	AppName      string
	ResourceName string
}

// Store defines the persistence interface for the configuration registry.
type Store interface {
	// Entries
	CreateEntry(ctx context.Context, entry *model.ConfigurationEntry) error
	GetEntry(ctx context.Context, id int64) (*model.ConfigurationEntry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]*model.ConfigurationEntry, error)
	UpdateEntry(ctx context.Context, entry *model.ConfigurationEntry) error
	DeleteEntry(ctx context.Context, id int64) error
	DeleteEntriesBySpace(ctx context.Context, spaceID string) (int64, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error
	GetSubscription(ctx context.Context, id int64) (*model.ConfigurationSubscription, error)
	ListSubscriptions(ctx context.Context, q SubscriptionQuery) ([]*model.ConfigurationSubscription, error)
	UpdateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error
	DeleteSubscription(ctx context.Context, id int64) error
	DeleteSubscriptionsBySpace(ctx context.Context, spaceID string) (int64, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

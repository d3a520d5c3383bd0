package events

import (
	"context"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// Event topic constants
const (
	TopicEntryPublished = "cfgregistry.entry.published"
	TopicEntryUpdated   = "cfgregistry.entry.updated"
	TopicEntryDeleted   = "cfgregistry.entry.deleted"

	TopicSubscriptionCreated = "cfgregistry.subscription.created"
	TopicSubscriptionUpdated = "cfgregistry.subscription.updated"
	TopicSubscriptionDeleted = "cfgregistry.subscription.deleted"

	// Emitted once per purge or space-wide removal.
	TopicSpacePurged = "cfgregistry.space.purged"

	// Audit records, one per deleted row.
	TopicAudit = "cfgregistry.audit"

	// TopicAll matches every registry subject.
	TopicAll = "cfgregistry.>"
)

// Event types

type EntryPublished struct {
	Entry *model.ConfigurationEntry `json:"entry"`
}

type EntryUpdated struct {
	Entry    *model.ConfigurationEntry `json:"entry"`
	Previous *model.ConfigurationEntry `json:"previous"`
}

type EntryDeleted struct {
	Entry *model.ConfigurationEntry `json:"entry"`
}

type SubscriptionCreated struct {
	Subscription *model.ConfigurationSubscription `json:"subscription"`
}

type SubscriptionUpdated struct {
	Subscription *model.ConfigurationSubscription `json:"subscription"`
}

type SubscriptionDeleted struct {
	Subscription *model.ConfigurationSubscription `json:"subscription"`
}

type SpacePurged struct {
	SpaceID              string `json:"space_id"`
	DeletedEntries       int    `json:"deleted_entries"`
	DeletedSubscriptions int    `json:"deleted_subscriptions"`
	Failures             int    `json:"failures,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

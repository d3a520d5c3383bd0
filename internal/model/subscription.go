package model

import "fmt"

// ConfigurationSubscription is a consumer's standing interest in entries
// matching a filter.
type ConfigurationSubscription struct {
	ID                 int64               `json:"id"`
	MTAID              string              `json:"mta_id"`
	SpaceID            string              `json:"space_id"`
	AppName            string              `json:"app_name"`
	ResourceName       string              `json:"resource_name"`
	ModuleID           string              `json:"module_id,omitempty"`
	ResourceID         string              `json:"resource_id,omitempty"`
	Filter             ConfigurationFilter `json:"filter"`
	ModuleContent      Content             `json:"module_content"`
	ResourceProperties Content             `json:"resource_properties"`
}

// SubscriptionKey is the uniqueness key of a subscription.
type SubscriptionKey struct {
	MTAID        string
	AppName      string
	ResourceName string
	SpaceID      string
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("mta=%q app=%q resource=%q space=%q", k.MTAID, k.AppName, k.ResourceName, k.SpaceID)
}

// Key returns the subscription's uniqueness key.
func (s *ConfigurationSubscription) Key() SubscriptionKey {
	return SubscriptionKey{
		MTAID:        s.MTAID,
		AppName:      s.AppName,
		ResourceName: s.ResourceName,
		SpaceID:      s.SpaceID,
	}
}

// ConfigurationFilter describes which entries a consumer is interested in.
// Empty fields do not constrain.
type ConfigurationFilter struct {
	ProviderNID       string  `json:"provider_nid,omitempty"`
	ProviderID        string  `json:"provider_id,omitempty"`
	MTAID             string  `json:"mta_id,omitempty"` // matches provider ids "<mta_id>:*"
	ProviderVersion   string  `json:"provider_version,omitempty"`
	ProviderNamespace string  `json:"provider_namespace,omitempty"`
	TargetSpace       *Target `json:"target,omitempty"`
	RequiredContent   Content `json:"required_content"`
	// Requester, when set, limits matches to entries visible to it.
	Requester         *Target `json:"requester,omitempty"`
	StrictTargetSpace bool    `json:"strict_target,omitempty"`
}

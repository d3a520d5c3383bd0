package model

import (
	"bytes"
	"encoding/json"
)

// Optional carries a value together with whether it was supplied. A supplied
// zero value clears the field it is applied to.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a supplied Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Or returns the value when supplied, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.Set {
		return o.Value
	}
	return def
}

// MarshalJSON writes the value, or null when not supplied.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON marks the field as supplied. An explicit null clears it.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	var zero T
	o.Value, o.Set = zero, true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// EntryDelta lists the fields of a configuration entry to change.
type EntryDelta struct {
	ProviderNID       Optional[string]   `json:"provider_nid,omitzero"`
	ProviderID        Optional[string]   `json:"provider_id,omitzero"`
	ProviderVersion   Optional[string]   `json:"provider_version,omitzero"`
	ProviderNamespace Optional[string]   `json:"provider_namespace,omitzero"`
	Target            Optional[Target]   `json:"target,omitzero"`
	Content           Optional[Content]  `json:"content,omitzero"`
	Visibility        Optional[[]Target] `json:"visibility,omitzero"`
	SpaceID           Optional[string]   `json:"space_id,omitzero"`
	ContentID         Optional[string]   `json:"content_id,omitzero"`
}

// IsEmpty reports whether no field is supplied.
func (d EntryDelta) IsEmpty() bool {
	return !d.ProviderNID.Set && !d.ProviderID.Set && !d.ProviderVersion.Set &&
		!d.ProviderNamespace.Set && !d.Target.Set && !d.Content.Set &&
		!d.Visibility.Set && !d.SpaceID.Set && !d.ContentID.Set
}

// Apply returns a copy of e with every supplied field replaced.
func (d EntryDelta) Apply(e ConfigurationEntry) ConfigurationEntry {
	e.ProviderNID = d.ProviderNID.Or(e.ProviderNID)
	e.ProviderID = d.ProviderID.Or(e.ProviderID)
	e.ProviderVersion = CanonicalVersion(d.ProviderVersion.Or(e.ProviderVersion))
	e.ProviderNamespace = NormalizeNamespace(d.ProviderNamespace.Or(e.ProviderNamespace))
	e.Target = d.Target.Or(e.Target)
	e.Content = d.Content.Or(e.Content)
	if d.Visibility.Set {
		e.Visibility = append([]Target{}, d.Visibility.Value...)
	}
	e.SpaceID = d.SpaceID.Or(e.SpaceID)
	e.ContentID = d.ContentID.Or(e.ContentID)
	return e
}

// SubscriptionDelta lists the fields of a subscription to change.
type SubscriptionDelta struct {
	MTAID              Optional[string]              `json:"mta_id,omitzero"`
	SpaceID            Optional[string]              `json:"space_id,omitzero"`
	AppName            Optional[string]              `json:"app_name,omitzero"`
	ResourceName       Optional[string]              `json:"resource_name,omitzero"`
	ModuleID           Optional[string]              `json:"module_id,omitzero"`
	ResourceID         Optional[string]              `json:"resource_id,omitzero"`
	Filter             Optional[ConfigurationFilter] `json:"filter,omitzero"`
	ModuleContent      Optional[Content]             `json:"module_content,omitzero"`
	ResourceProperties Optional[Content]             `json:"resource_properties,omitzero"`
}

// IsEmpty reports whether no field is supplied.
func (d SubscriptionDelta) IsEmpty() bool {
	return !d.MTAID.Set && !d.SpaceID.Set && !d.AppName.Set && !d.ResourceName.Set &&
		!d.ModuleID.Set && !d.ResourceID.Set && !d.Filter.Set &&
		!d.ModuleContent.Set && !d.ResourceProperties.Set
}

// Apply returns a copy of s with every supplied field replaced.
func (d SubscriptionDelta) Apply(s ConfigurationSubscription) ConfigurationSubscription {
	s.MTAID = d.MTAID.Or(s.MTAID)
	s.SpaceID = d.SpaceID.Or(s.SpaceID)
	s.AppName = d.AppName.Or(s.AppName)
	s.ResourceName = d.ResourceName.Or(s.ResourceName)
	s.ModuleID = d.ModuleID.Or(s.ModuleID)
	s.ResourceID = d.ResourceID.Or(s.ResourceID)
	s.Filter = d.Filter.Or(s.Filter)
	s.ModuleContent = d.ModuleContent.Or(s.ModuleContent)
	s.ResourceProperties = d.ResourceProperties.Or(s.ResourceProperties)
	return s
}

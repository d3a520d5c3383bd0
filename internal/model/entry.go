package model

import (
	"fmt"
	"strings"
)

// ProviderNIDMTA is the provider namespace id of entries published by MTA deployments.
const ProviderNIDMTA = "mta"

// DefaultNamespace is treated the same as an empty provider namespace.
const DefaultNamespace = "default"

// ConfigurationEntry is a unit of configuration published by a provider
// for consumption by other deployments.
type ConfigurationEntry struct {
	ID                int64    `json:"id"`
	ProviderNID       string   `json:"provider_nid"`
	ProviderID        string   `json:"provider_id"`
	ProviderVersion   string   `json:"provider_version,omitempty"`
	ProviderNamespace string   `json:"provider_namespace,omitempty"`
	Target            Target   `json:"target"`
	Content           Content  `json:"content"`
	Visibility        []Target `json:"visibility"`
	SpaceID           string   `json:"space_id,omitempty"`
	ContentID         string   `json:"content_id,omitempty"`
}

// EntryKey is the uniqueness key of a configuration entry.
type EntryKey struct {
	ProviderNID     string
	ProviderID      string
	ProviderVersion string
	Target          Target
}

func (k EntryKey) String() string {
	return fmt.Sprintf("nid=%q id=%q version=%q target=%q", k.ProviderNID, k.ProviderID, k.ProviderVersion, k.Target.String())
}

// Key returns the entry's uniqueness key.
func (e *ConfigurationEntry) Key() EntryKey {
	return EntryKey{
		ProviderNID:     e.ProviderNID,
		ProviderID:      e.ProviderID,
		ProviderVersion: e.ProviderVersion,
		Target:          e.Target,
	}
}

// MTAID returns the portion of the provider id before the first ':'.
func (e *ConfigurationEntry) MTAID() string {
	id, _, _ := strings.Cut(e.ProviderID, ":")
	return id
}

// DefaultVisibility returns the visibility an entry gets when none is given:
// every space of the owner's organization.
func DefaultVisibility(owner Target) []Target {
	return []Target{AnySpace(owner.Org)}
}

// ComputeProviderID builds the provider id for a dependency provided by an MTA.
func ComputeProviderID(mtaID, providedDependencyName string) string {
	return mtaID + ":" + providedDependencyName
}

// ProviderIDPrefix returns the prefix shared by all provider ids of mtaID.
func ProviderIDPrefix(mtaID string) string {
	return mtaID + ":"
}

// NormalizeNamespace maps the default namespace to the empty namespace.
func NormalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == DefaultNamespace {
		return ""
	}
	return ns
}

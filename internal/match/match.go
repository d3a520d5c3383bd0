// Package match implements the pure predicates used to decide which
// configuration entries a query or subscription selects.
package match

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// Version reports whether version satisfies requirement. An empty
// requirement matches anything, including an empty version. A version that
// does not parse fails every non-empty requirement, as does a requirement
// that does not parse.
func Version(version, requirement string) bool {
	req, err := model.ParseRequirement(requirement)
	if err != nil {
		return false
	}
	return VersionRequirement(version, req)
}

// VersionRequirement is Version for an already parsed requirement.
func VersionRequirement(version string, req model.Requirement) bool {
	if req.IsZero() {
		return true
	}
	v, err := model.ParseVersion(version)
	if err != nil {
		return false
	}
	c := semver.Compare(v, req.Version)
	switch req.Op {
	case model.OpGT:
		return c > 0
	case model.OpGE:
		return c >= 0
	case model.OpLT:
		return c < 0
	case model.OpLE:
		return c <= 0
	default:
		return c == 0
	}
}

// Target reports whether actual matches pattern. Each component matches when
// the two are equal or either side is the wildcard.
func Target(actual, pattern model.Target) bool {
	return component(actual.Org, pattern.Org) && component(actual.Space, pattern.Space)
}

func component(a, b string) bool {
	return a == b || a == model.Wildcard || b == model.Wildcard
}

// Content reports whether every required property is present in content
// with a deep-equal value.
func Content(content, required model.Content) bool {
	for _, key := range required.Keys() {
		want, _ := required.Get(key)
		got, ok := content.Get(key)
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Visible reports whether requester may see entry: it owns the entry or
// matches one of its visibility patterns.
func Visible(entry *model.ConfigurationEntry, requester model.Target) bool {
	if requester == entry.Target {
		return true
	}
	for _, v := range entry.Visibility {
		if Target(requester, v) {
			return true
		}
	}
	return false
}

// VisibleToAny reports whether any requester may see entry. An empty
// requester list does not restrict.
func VisibleToAny(entry *model.ConfigurationEntry, requesters []model.Target) bool {
	if len(requesters) == 0 {
		return true
	}
	for _, r := range requesters {
		if Visible(entry, r) {
			return true
		}
	}
	return false
}

// Filter reports whether entry satisfies every constraint of f. It assumes
// f passed model.ValidateFilter; an unparsable version requirement matches
// nothing.
func Filter(f *model.ConfigurationFilter, entry *model.ConfigurationEntry) bool {
	if f.ProviderNID != "" && f.ProviderNID != entry.ProviderNID {
		return false
	}
	if f.ProviderID != "" && f.ProviderID != entry.ProviderID {
		return false
	}
	if f.MTAID != "" && !strings.HasPrefix(entry.ProviderID, model.ProviderIDPrefix(f.MTAID)) {
		return false
	}
	if f.ProviderNamespace != "" && model.NormalizeNamespace(f.ProviderNamespace) != model.NormalizeNamespace(entry.ProviderNamespace) {
		return false
	}
	if f.TargetSpace != nil && !Target(entry.Target, *f.TargetSpace) {
		return false
	}
	if f.Requester != nil && !Visible(entry, *f.Requester) {
		return false
	}
	if !Version(entry.ProviderVersion, f.ProviderVersion) {
		return false
	}
	return Content(entry.Content, f.RequiredContent)
}

package model

import (
	"fmt"
	"strings"
)

// Wildcard matches any organization or space.
const Wildcard = "*"

// Target identifies an organization/space pair on the runtime platform.
type Target struct {
	Org   string `json:"org"`
	Space string `json:"space"`
}

// AnySpace returns the target covering every space of org.
func AnySpace(org string) Target {
	return Target{Org: org, Space: Wildcard}
}

// String renders the target as "org/space".
func (t Target) String() string {
	return t.Org + "/" + t.Space
}

// IsZero reports whether both components are empty.
func (t Target) IsZero() bool {
	return t.Org == "" && t.Space == ""
}

// HasWildcard reports whether either component is the wildcard.
func (t Target) HasWildcard() bool {
	return t.Org == Wildcard || t.Space == Wildcard
}

// ParseTarget parses "org/space". A bare org yields a
// wildcard space.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("empty target")
	}
	if org, space, ok := strings.Cut(s, "/"); ok {
		org, space = strings.TrimSpace(org), strings.TrimSpace(space)
		if org == "" || space == "" {
			return Target{}, fmt.Errorf("invalid target %q", s)
		}
		return Target{Org: org, Space: space}, nil
	}
	return AnySpace(s), nil
}

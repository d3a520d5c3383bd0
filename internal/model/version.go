package model

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Comparator is the relational operator of a version requirement.
type Comparator string

const (
	OpEQ Comparator = "="
	OpGT Comparator = ">"
	OpGE Comparator = ">="
	OpLT Comparator = "<"
	OpLE Comparator = "<="
)

// Requirement is a parsed version requirement such as ">=1.2.0".
// The zero Requirement allows every version.
type Requirement struct {
	Op      Comparator
	Version string // canonical semver with "v" prefix
}

// IsZero reports whether r places no constraint.
func (r Requirement) IsZero() bool { return r.Version == "" }

func (r Requirement) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Op) + strings.TrimPrefix(r.Version, "v")
}

// ParseRequirement parses "[op] version" with optional whitespace. An empty
// string yields the zero Requirement.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, nil
	}
	op := OpEQ
	for _, candidate := range []Comparator{OpGE, OpLE, OpGT, OpLT, OpEQ} {
		if rest, ok := strings.CutPrefix(s, string(candidate)); ok {
			op = candidate
			s = strings.TrimSpace(rest)
			break
		}
	}
	v, err := ParseVersion(s)
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid version requirement: %w", err)
	}
	return Requirement{Op: op, Version: v}, nil
}

// ParseVersion validates a major.minor.patch[-prerelease][+build] version
// and returns its canonical "v"-prefixed form.
func ParseVersion(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty version")
	}
	v := "v" + strings.TrimPrefix(s, "v")
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if strings.Count(core, ".") != 2 || !semver.IsValid(v) {
		return "", fmt.Errorf("%q is not a semantic version", s)
	}
	return v, nil
}

// CanonicalVersion returns the stored form of a provider version: trimmed and
// without the "v" prefix, so that "v1.0.0", " 1.0.0" and "1.0.0" compare
// equal. Strings that are not semantic versions are only trimmed.
func CanonicalVersion(s string) string {
	v, err := ParseVersion(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimPrefix(v, "v")
}

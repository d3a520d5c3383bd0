// Package idgen generates the short URL-safe identifiers that label audit
// records and HTTP requests. Registry rows are numbered by the database.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind selects the prefix of a generated ID.
type Kind string

const (
	Audit   Kind = "aud"
	Request Kind = "req"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 10

	// maxExternalLen bounds request IDs accepted from callers.
	maxExternalLen = 64
)

// New returns a fresh ID of the form "<kind>-<10 random chars>".
func New(k Kind) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return string(k) + "-" + id, nil
}

// AuditID returns an ID for an audit record.
func AuditID() string { return mustNew(Audit) }

// RequestID returns an ID for correlating a request across log lines.
func RequestID() string { return mustNew(Request) }

// mustNew falls back to a fixed ID when the entropy source fails.
func mustNew(k Kind) string {
	id, err := New(k)
	if err != nil {
		return string(k) + "-unknown"
	}
	return id
}

// ValidExternal reports whether a caller-supplied request ID is safe to
// echo and log: 1 to 64 characters of letters, digits, '-', '_' or '.'.
func ValidExternal(id string) bool {
	if id == "" || len(id) > maxExternalLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

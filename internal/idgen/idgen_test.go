package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, k := range []Kind{Audit, Request} {
		id, err := New(k)
		if err != nil {
			t.Fatalf("New(%q): %v", k, err)
		}
		pattern := regexp.MustCompile(`^` + string(k) + `-[a-zA-Z0-9]{10}$`)
		if !pattern.MatchString(id) {
			t.Errorf("New(%q) = %q, want match %s", k, id, pattern)
		}
	}
}

func TestNew_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id := AuditID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestAuditAndRequestIDs(t *testing.T) {
	if id := AuditID(); !strings.HasPrefix(id, "aud-") {
		t.Errorf("AuditID() = %q", id)
	}
	if id := RequestID(); !strings.HasPrefix(id, "req-") {
		t.Errorf("RequestID() = %q", id)
	}
}

func TestValidExternal(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{RequestID(), true},
		{"trace.01_abc-XYZ", true},
		{"", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
		{"has space", false},
		{"line\nbreak", false},
		{"quote\"", false},
	}
	for _, tc := range tests {
		if got := ValidExternal(tc.id); got != tc.want {
			t.Errorf("ValidExternal(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

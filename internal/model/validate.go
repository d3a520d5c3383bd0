package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add records a failure on field.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) errOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateEntry checks a ConfigurationEntry for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the entry is valid.
func ValidateEntry(e *ConfigurationEntry) error {
	var ve ValidationError

	if strings.TrimSpace(e.ProviderID) == "" {
		ve.Add("provider_id", "is required")
	}
	if e.ProviderVersion != "" {
		if _, err := ParseVersion(e.ProviderVersion); err != nil {
			ve.Add("provider_version", err.Error())
		}
	}
	validateTarget(&ve, "target", e.Target)
	for i, v := range e.Visibility {
		validateTarget(&ve, fmt.Sprintf("visibility[%d]", i), v)
	}

	return ve.errOrNil()
}

// ValidateSubscription checks a ConfigurationSubscription for constraint violations.
func ValidateSubscription(s *ConfigurationSubscription) error {
	var ve ValidationError

	for _, f := range []struct{ name, value string }{
		{"mta_id", s.MTAID},
		{"space_id", s.SpaceID},
		{"app_name", s.AppName},
		{"resource_name", s.ResourceName},
	} {
		if strings.TrimSpace(f.value) == "" {
			ve.Add(f.name, "is required")
		}
	}
	validateFilter(&ve, "filter.", &s.Filter)

	return ve.errOrNil()
}

// ValidateFilter checks the syntax of a filter's version requirement and targets.
func ValidateFilter(f *ConfigurationFilter) error {
	var ve ValidationError
	validateFilter(&ve, "", f)
	return ve.errOrNil()
}

func validateFilter(ve *ValidationError, prefix string, f *ConfigurationFilter) {
	if _, err := ParseRequirement(f.ProviderVersion); err != nil {
		ve.Add(prefix+"provider_version", err.Error())
	}
	if f.ProviderID != "" && f.MTAID != "" {
		ve.Add(prefix+"mta_id", "cannot be combined with provider_id")
	}
	if f.TargetSpace != nil {
		validateTarget(ve, prefix+"target", *f.TargetSpace)
	}
	if f.Requester != nil {
		validateTarget(ve, prefix+"requester", *f.Requester)
	}
}

func validateTarget(ve *ValidationError, field string, t Target) {
	if strings.TrimSpace(t.Org) == "" {
		ve.Add(field+".org", "is required")
	}
	if strings.TrimSpace(t.Space) == "" {
		ve.Add(field+".space", "is required")
	}
}

// ValidateEntryDelta checks the supplied fields of an entry delta. Rules
// that depend on the merged entry are checked again after merging.
func ValidateEntryDelta(d *EntryDelta) error {
	var ve ValidationError

	if d.ProviderID.Set && strings.TrimSpace(d.ProviderID.Value) == "" {
		ve.Add("provider_id", "cannot be cleared")
	}
	if d.ProviderVersion.Set && d.ProviderVersion.Value != "" {
		if _, err := ParseVersion(d.ProviderVersion.Value); err != nil {
			ve.Add("provider_version", err.Error())
		}
	}
	if d.Target.Set {
		validateTarget(&ve, "target", d.Target.Value)
	}
	for i, v := range d.Visibility.Value {
		validateTarget(&ve, fmt.Sprintf("visibility[%d]", i), v)
	}

	return ve.errOrNil()
}

// ValidateSubscriptionDelta checks the supplied fields of a subscription delta.
func ValidateSubscriptionDelta(d *SubscriptionDelta) error {
	var ve ValidationError

	for _, f := range []struct {
		name  string
		value Optional[string]
	}{
		{"mta_id", d.MTAID},
		{"space_id", d.SpaceID},
		{"app_name", d.AppName},
		{"resource_name", d.ResourceName},
	} {
		if f.value.Set && strings.TrimSpace(f.value.Value) == "" {
			ve.Add(f.name, "cannot be cleared")
		}
	}
	if d.Filter.Set {
		validateFilter(&ve, "filter.", &d.Filter.Value)
	}

	return ve.errOrNil()
}

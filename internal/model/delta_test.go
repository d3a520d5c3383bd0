package model

import (
	"encoding/json"
	"testing"
)

func TestOptional_UnmarshalDistinguishesAbsentAndNull(t *testing.T) {
	var d EntryDelta
	if err := json.Unmarshal([]byte(`{"provider_version":null,"content_id":"key-1"}`), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !d.ProviderVersion.Set || d.ProviderVersion.Value != "" {
		t.Errorf("provider_version = %+v, want explicit clear", d.ProviderVersion)
	}
	if !d.ContentID.Set || d.ContentID.Value != "key-1" {
		t.Errorf("content_id = %+v", d.ContentID)
	}
	if d.ProviderID.Set || d.Target.Set {
		t.Error("absent fields must stay unset")
	}
}

func TestOptional_MarshalOmitsUnset(t *testing.T) {
	d := EntryDelta{ProviderVersion: Some("2.0.0")}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"provider_version":"2.0.0"}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestEntryDelta_Apply(t *testing.T) {
	e := validEntry()
	e.ContentID = "old"
	e.Visibility = DefaultVisibility(e.Target)

	d := EntryDelta{
		ProviderVersion:   Some(" v2.0.0"),
		ProviderNamespace: Some("default"),
		ContentID:         Some(""),
		Visibility:        Some[[]Target](nil),
	}
	got := d.Apply(e)

	if got.ProviderVersion != "2.0.0" {
		t.Errorf("ProviderVersion = %q, want canonical 2.0.0", got.ProviderVersion)
	}
	if got.ProviderNamespace != "" {
		t.Errorf("ProviderNamespace = %q, want default mapped to empty", got.ProviderNamespace)
	}
	if got.ContentID != "" {
		t.Errorf("ContentID = %q, want cleared", got.ContentID)
	}
	if got.Visibility == nil || len(got.Visibility) != 0 {
		t.Errorf("Visibility = %#v, want empty non-nil", got.Visibility)
	}
	if got.ProviderID != e.ProviderID || got.Target != e.Target {
		t.Error("unset fields changed")
	}
	if len(e.Visibility) != 1 {
		t.Error("Apply mutated its input")
	}
}

func TestSubscriptionDelta_Apply(t *testing.T) {
	s := validSubscription()
	d := SubscriptionDelta{AppName: Some("web-v2"), Filter: Some(ConfigurationFilter{MTAID: "m"})}
	if d.IsEmpty() {
		t.Fatal("IsEmpty() = true")
	}
	got := d.Apply(s)
	if got.AppName != "web-v2" || got.Filter.MTAID != "m" || got.ResourceName != s.ResourceName {
		t.Errorf("Apply() = %+v", got)
	}
	if !(SubscriptionDelta{}).IsEmpty() {
		t.Error("zero delta should be empty")
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProfiles_SaveLoadRoundTrip(t *testing.T) {
	isolateState(t)

	in := profileFile{
		Active: "prod",
		Profiles: map[string]Profile{
			"prod":  {URL: "https://registry.example.com", Token: "tok_abc", NATSURL: "nats://bus:4222", GRPCAddr: "registry:9090"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := saveProfiles(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadProfiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q", got.Active)
	}
	if got.Profiles["prod"] != in.Profiles["prod"] {
		t.Errorf("prod = %+v", got.Profiles["prod"])
	}
}

func TestProfiles_NoFile(t *testing.T) {
	isolateState(t)

	pf, err := loadProfiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pf.Active != "" || pf.Profiles == nil || len(pf.Profiles) != 0 {
		t.Errorf("expected empty profiles, got %+v", pf)
	}
}

func TestProfiles_PathAndPermissions(t *testing.T) {
	isolateState(t)

	if err := saveProfiles(profileFile{Profiles: map[string]Profile{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, err := profilesPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(os.Getenv("XDG_STATE_HOME"), "cfgregistry", "profiles.toml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		p       Profile
		wantErr bool
	}{
		{Profile{URL: "http://localhost:8080"}, false},
		{Profile{URL: "https://registry.example.com", NATSURL: "nats://bus:4222"}, false},
		{Profile{URL: "localhost:8080"}, true},
		{Profile{URL: "ftp://registry"}, true},
		{Profile{URL: "http://"}, true},
		{Profile{URL: "http://localhost", NATSURL: "bus:4222"}, true},
	}
	for _, tc := range tests {
		if err := tc.p.validate(); (err != nil) != tc.wantErr {
			t.Errorf("validate(%+v) = %v, wantErr %v", tc.p, err, tc.wantErr)
		}
	}
}

func TestMaskToken(t *testing.T) {
	for in, want := range map[string]string{
		"":                   "",
		"abc":                "***",
		"tok_verylongsecret": "tok_**************",
	} {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProfileLifecycle(t *testing.T) {
	isolateState(t)
	const server = "http://unused"

	// The first profile becomes active.
	mustRun(t, server, "profile", "add", "local", "http://localhost:8080/")
	mustRun(t, server, "profile", "add", "prod", "https://registry.example.com",
		"--token", "tok_verylongsecret", "--nats", "nats://bus:4222", "--grpc", "registry:9090")

	pf, err := loadProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if pf.Active != "local" {
		t.Fatalf("Active = %q, want local", pf.Active)
	}
	if pf.Profiles["local"].URL != "http://localhost:8080" {
		t.Errorf("trailing slash kept: %q", pf.Profiles["local"].URL)
	}

	mustRun(t, server, "profile", "use", "prod")

	out := mustRun(t, server, "profile", "list")
	if !strings.Contains(out, "* prod") || !strings.Contains(out, "  local") {
		t.Errorf("list output:\n%s", out)
	}
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("list must not print the full token")
	}
	if strings.Index(out, "local") > strings.Index(out, "prod") {
		t.Errorf("profiles not sorted:\n%s", out)
	}

	out = mustRun(t, server, "profile", "show")
	for _, want := range []string{"prod (active)", "https://registry.example.com", "registry:9090", "nats://bus:4222", "tok_****"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, server, "--json", "profile", "list")
	var summaries []profileSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, out)
	}
	if len(summaries) != 2 || !summaries[1].Active || summaries[1].Token == "tok_verylongsecret" {
		t.Errorf("json summaries = %+v", summaries)
	}

	mustRun(t, server, "profile", "rm", "prod")
	pf, _ = loadProfiles()
	if _, ok := pf.Profiles["prod"]; ok || pf.Active != "" {
		t.Errorf("after remove: %+v", pf)
	}
}

func TestProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"use unknown", []string{"profile", "use", "ghost"}},
		{"remove unknown", []string{"profile", "remove", "ghost"}},
		{"show without active", []string{"profile", "show"}},
		{"bad url", []string{"profile", "add", "x", "localhost:8080"}},
		{"blank name", []string{"profile", "add", " ", "http://localhost"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolateState(t)
			if _, err := run(t, "http://unused", tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

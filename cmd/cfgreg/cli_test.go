package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
	"github.com/alfredjeanlab/cfgregistry/internal/server"
	"github.com/alfredjeanlab/cfgregistry/internal/store/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newTestRegistry starts an HTTP registry backed by a temporary SQLite database.
func newTestRegistry(t *testing.T) string {
	t.Helper()
	isolateState(t)
	db, err := sqlite.New(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	reg := registry.New(db, registry.Options{})
	srv := httptest.NewServer(server.NewRegistryServer(reg, db, nil).NewHTTPHandler(""))
	t.Cleanup(srv.Close)
	return srv.URL
}

// isolateState points profile storage at a fresh directory.
func isolateState(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
}

// resetFlags restores every flag of cmd and its children to its default.
// Commands are package globals, so flag values otherwise leak between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	rootCmd.SetArgs(append([]string{"--server", url}, args...))
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	err := rootCmd.Execute()
	stdout = prev
	return buf.String(), err
}

func mustRun(t *testing.T, url string, args ...string) string {
	t.Helper()
	out, err := run(t, url, args...)
	if err != nil {
		t.Fatalf("cfgreg %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCLI_EntryLifecycle(t *testing.T) {
	url := newTestRegistry(t)
	contentFile := writeFile(t, "content.yaml", "url: https://db\nplan: small\n")

	out := mustRun(t, url, "entries", "add", "--json",
		"--mta", "shop", "--dependency", "db-config",
		"--version", "1.2.0",
		"--target", "org-1/space-1",
		"--space-id", "guid-1",
		"--content-file", contentFile)
	var created model.ConfigurationEntry
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode add output: %v\n%s", err, out)
	}
	if created.ProviderID != "shop:db-config" || created.ProviderNID != "mta" {
		t.Fatalf("unexpected entry: %+v", created)
	}
	if v, ok := created.Content.Get("plan"); !ok || v.Any() != "small" {
		t.Errorf("content plan = %v", v.Any())
	}
	id := strconv.FormatInt(created.ID, 10)

	if _, err := run(t, url, "entries", "add",
		"--mta", "shop", "--dependency", "db-config", "--version", "1.2.0", "--target", "org-1/space-1"); err == nil {
		t.Error("expected conflict on duplicate add")
	}

	out = mustRun(t, url, "entries", "list", "--mta", "shop", "--visible-to", "org-1/space-9")
	if !strings.Contains(out, "shop:db-config") || !strings.Contains(out, "1 entries") {
		t.Errorf("list output:\n%s", out)
	}
	out = mustRun(t, url, "entries", "list", "--mta", "shop", "--visible-to", "org-2/space-1")
	if !strings.Contains(out, "0 entries") {
		t.Errorf("other orgs must not see the entry:\n%s", out)
	}

	out = mustRun(t, url, "entries", "update", id, "--version", "1.3.0", "--owner-only")
	if !strings.Contains(out, "1.3.0") || !strings.Contains(out, "(owner only)") {
		t.Errorf("update output:\n%s", out)
	}

	out = mustRun(t, url, "entries", "resolve", "--mta", "shop", "--version", ">=1.3.0")
	if !strings.Contains(out, "1 entries") {
		t.Errorf("resolve output:\n%s", out)
	}

	mustRun(t, url, "entries", "remove", id)
	if _, err := run(t, url, "entries", "get", id); err == nil {
		t.Error("expected not found after remove")
	}
}

func TestCLI_UpdateRequiresAField(t *testing.T) {
	url := newTestRegistry(t)
	if _, err := run(t, url, "entries", "update", "1"); err == nil || !strings.Contains(err.Error(), "nothing to update") {
		t.Fatalf("err = %v", err)
	}
	if _, err := run(t, url, "entries", "get", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestCLI_SubscriptionsAndPurge(t *testing.T) {
	url := newTestRegistry(t)

	mustRun(t, url, "entries", "add", "--mta", "shop", "--dependency", "db", "--version", "1.0.0",
		"--target", "org-1/space-1", "--space-id", "guid-1")
	out := mustRun(t, url, "subscriptions", "add",
		"--mta-id", "consumer", "--space-id", "guid-1", "--app", "web", "--resource", "db",
		"--filter-mta", "shop", "--filter-version", ">=1.0.0")
	if !strings.Contains(out, "mta=shop version=>=1.0.0") {
		t.Errorf("subscription output:\n%s", out)
	}

	out = mustRun(t, url, "subscriptions", "match", "1")
	if !strings.Contains(out, "web") || !strings.Contains(out, "1 subscriptions") {
		t.Errorf("match output:\n%s", out)
	}

	inventory := writeFile(t, "apps.yaml", `
- name: web
  mta: {id: consumer, version: 2.0.0}
`)
	out = mustRun(t, url, "purge", "guid-1", "--apps-file", inventory)
	if !strings.Contains(out, "1 entries, 0 subscriptions deleted") {
		t.Errorf("purge output:\n%s", out)
	}

	out = mustRun(t, url, "subscriptions", "list", "--space-id", "guid-1")
	if !strings.Contains(out, "1 subscriptions") {
		t.Errorf("subscription of a live app must survive:\n%s", out)
	}

	out = mustRun(t, url, "purge", "guid-1")
	if !strings.Contains(out, "0 entries, 1 subscriptions deleted") {
		t.Errorf("empty inventory purge output:\n%s", out)
	}
}

func TestCLI_Health(t *testing.T) {
	url := newTestRegistry(t)
	out := mustRun(t, url, "health")
	if !strings.Contains(out, "Health: ok") {
		t.Errorf("health output:\n%s", out)
	}
	out = mustRun(t, url, "health", "--json")
	if !strings.Contains(out, `"status": "ok"`) {
		t.Errorf("health JSON output:\n%s", out)
	}
}

func TestReadInventory(t *testing.T) {
	path := writeFile(t, "apps.json", `[{"name": "web", "mta": {"id": "shop", "version": "1.0.0"}, "provided_dependency_names": ["db"]}, {"name": "plain"}]`)
	apps, err := readInventory(path)
	if err != nil {
		t.Fatalf("readInventory: %v", err)
	}
	if len(apps) != 2 || apps[0].MTA == nil || apps[0].MTA.ID != "shop" || apps[0].ProvidedDependencyNames[0] != "db" {
		t.Fatalf("apps = %+v", apps)
	}
	if apps[1].MTA != nil {
		t.Errorf("app without metadata decoded with %+v", apps[1].MTA)
	}

	apps, err = readInventory(writeFile(t, "empty.yaml", ""))
	if err != nil || apps != nil {
		t.Errorf("empty file: apps=%v err=%v", apps, err)
	}
}

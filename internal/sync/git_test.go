package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// newClone creates a bare remote with one commit on main and returns a
// working clone of it.
func newClone(t *testing.T) (repoDir, remoteDir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir = t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir = filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "registry@example.com")
	run(t, repoDir, "git", "config", "user.name", "Registry")
	run(t, repoDir, "git", "branch", "-m", "main")
	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir, remoteDir
}

func snapshot(ts string, records ...string) []byte {
	lines := append([]string{`{"version":"1","type":"header","timestamp":"` + ts + `"}`}, records...)
	return []byte(strings.Join(lines, "\n") + "\n")
}

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	out, err := exec.Command("git", "-C", dir, "rev-list", "--count", "main").Output()
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("parse commit count %q: %v", out, err)
	}
	return n
}

func TestGitDestination(t *testing.T) {
	repoDir, remoteDir := newClone(t)
	dest := NewGitDestination(repoDir, "cfgregistry.jsonl", "main")
	dest.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	entry := `{"type":"entry","data":{"id":1}}`
	data1 := snapshot("2026-03-01T12:00:00Z", entry)
	if err := dest.Write(ctx, data1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "cfgregistry.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data1) {
		t.Fatalf("file content mismatch: got %q", got)
	}
	if n := commitCount(t, remoteDir); n != 2 {
		t.Fatalf("remote commits = %d, want 2", n)
	}

	// Same records under a newer header: nothing to commit.
	if err := dest.Write(ctx, snapshot("2026-03-01T12:05:00Z", entry)); err != nil {
		t.Fatalf("unchanged write: %v", err)
	}
	if n := commitCount(t, remoteDir); n != 2 {
		t.Fatalf("remote commits after unchanged write = %d, want 2", n)
	}

	data2 := snapshot("2026-03-01T12:10:00Z", entry, `{"type":"entry","data":{"id":2}}`)
	if err := dest.Write(ctx, data2); err != nil {
		t.Fatalf("third write: %v", err)
	}
	got, err = os.ReadFile(filepath.Join(repoDir, "cfgregistry.jsonl"))
	if err != nil {
		t.Fatalf("read file after update: %v", err)
	}
	if string(got) != string(data2) {
		t.Fatalf("file content mismatch after update: got %q", got)
	}
	if n := commitCount(t, remoteDir); n != 3 {
		t.Fatalf("remote commits after update = %d, want 3", n)
	}

	out, err := exec.Command("git", "-C", remoteDir, "log", "-1", "--format=%s", "main").Output()
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	if msg := strings.TrimSpace(string(out)); msg != "cfgregistry: snapshot 2026-03-01T12:00:00Z" {
		t.Fatalf("commit message = %q", msg)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repoDir, _ := newClone(t)
	dest := NewGitDestination(repoDir, "data/cfgregistry.jsonl", "main")

	data := snapshot("2026-03-01T12:00:00Z")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "data", "cfgregistry.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestGitDestination_UnknownBranch(t *testing.T) {
	repoDir, _ := newClone(t)
	dest := NewGitDestination(repoDir, "cfgregistry.jsonl", "does-not-exist")

	err := dest.Write(context.Background(), snapshot("2026-03-01T12:00:00Z"))
	if err == nil {
		t.Fatal("expected checkout error")
	}
	if !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("error = %v, want git checkout failure", err)
	}
}

func TestGitDestination_String(t *testing.T) {
	dest := NewGitDestination("/srv/snapshots", "registry.jsonl", "main")
	if got := dest.String(); got != "git:/srv/snapshots@main/registry.jsonl" {
		t.Fatalf("String() = %q", got)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
}

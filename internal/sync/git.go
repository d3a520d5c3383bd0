package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitDestination commits registry snapshots to a file in a local clone and
// pushes the branch.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string
	now    func() time.Time
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch, now: time.Now}
}

// String names the destination in log output.
func (d *GitDestination) String() string {
	return "git:" + d.repo + "@" + d.branch + "/" + d.file
}

// Write stores the snapshot and pushes a commit. A snapshot whose records
// match the committed file is not written.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The remote branch may not exist yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(snapshotRecords(current), snapshotRecords(data)) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	msg := "cfgregistry: snapshot " + d.now().UTC().Format(time.RFC3339)
	if err := d.git(ctx, "commit", "-m", msg); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

// git runs a git subcommand in the clone. Failures carry git's own output.
func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}

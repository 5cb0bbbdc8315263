// Package git runs the few git commands the workbench needs.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Repo runs git inside one working tree.
type Repo struct {
	Dir    string
	Remote string
}

// New returns a Repo for dir pushing to remote ("origin" when empty).
func New(dir, remote string) *Repo {
	if remote == "" {
		remote = "origin"
	}
	return &Repo{Dir: dir, Remote: remote}
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.Dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w\n%s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Available reports the installed git version, or false when git cannot run.
func Available(ctx context.Context) (string, bool) {
	out, err := exec.CommandContext(ctx, "git", "--version").Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(ctx context.Context, branch string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", r.Dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git show-ref %s: %w", branch, err)
}

// CreateBranch creates branch at HEAD without switching to it.
func (r *Repo) CreateBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "branch", branch)
	return err
}

// Push pushes branch and sets its upstream.
func (r *Repo) Push(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "push", "--set-upstream", r.Remote, branch)
	return err
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// RemoteURL returns the configured URL of the push remote, or "" when unset.
func (r *Repo) RemoteURL(ctx context.Context) string {
	out, err := r.run(ctx, "config", "--get", "remote."+r.Remote+".url")
	if err != nil {
		return ""
	}
	return out
}

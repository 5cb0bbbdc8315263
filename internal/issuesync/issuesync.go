// Package issuesync reconciles work items with remote issues.
package issuesync

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/models"
)

// Issue is a remote issue.
type Issue = github.Issue

// Tracker is the remote issue tracker.
type Tracker interface {
	FetchIssue(ctx context.Context, ref github.IssueRef) (*Issue, error)
	ListIssues(ctx context.Context, repo github.RepoRef, limit int) ([]*Issue, error)
	CreateIssue(ctx context.Context, repo github.RepoRef, title, body string, labels []string) (string, error)
	UpdateIssue(ctx context.Context, ref github.IssueRef, title, body string) error
	CreatePullRequest(ctx context.Context, repo github.RepoRef, pr github.PullRequest) (string, error)
	CheckAuth(ctx context.Context, repo github.RepoRef) github.AuthStatus
}

// Git manages local branches.
type Git interface {
	BranchExists(ctx context.Context, branch string) (bool, error)
	CreateBranch(ctx context.Context, branch string) error
	Push(ctx context.Context, branch string) error
}

// Items persists work items.
type Items interface {
	Save(doc *models.Document) error
	CreateFromIssue(issue *Issue, itemType, status string) (*models.Document, error)
}

// Policy decides which side wins when an item and its issue diverge.
type Policy string

// Conflict policies.
const (
	PolicyFail   Policy = "fail"
	PolicyLocal  Policy = "local"
	PolicyGithub Policy = "github"
)

// ParsePolicy resolves a --prefer flag value, falling back to the configured
// default and then to PolicyFail.
func ParsePolicy(prefer, configured string) (Policy, error) {
	if p := strings.ToLower(strings.TrimSpace(prefer)); p != "" {
		switch Policy(p) {
		case PolicyLocal, PolicyGithub, PolicyFail:
			return Policy(p), nil
		}
		return "", fmt.Errorf("issuesync: invalid sync preference %q, use local, github or fail: %w", prefer, apperr.ErrInvalidReference)
	}
	switch Policy(strings.ToLower(strings.TrimSpace(configured))) {
	case PolicyLocal:
		return PolicyLocal, nil
	case PolicyGithub:
		return PolicyGithub, nil
	}
	return PolicyFail, nil
}

// Options controls one sync run.
type Options struct {
	Policy Policy
	DryRun bool

	// Import lists the repository's issues and imports the unlinked ones.
	// Ignored when Selected is set.
	Import bool
	// IssueInputs imports exactly these issues instead of listing.
	IssueInputs []string
	// Selected marks a run over explicitly chosen items; nothing is listed.
	Selected bool
	// NoIssues skips everything remote; only branches are reconciled.
	NoIssues bool

	// ImportType and ImportStatus override the values derived from the issue.
	ImportType   string
	ImportStatus string
}

// ImportEntry records an issue imported as a work item. ItemID and Path are
// empty on dry runs.
type ImportEntry struct {
	Repo     string `json:"repo"`
	Number   int    `json:"number"`
	IssueURL string `json:"issueUrl"`
	Title    string `json:"title"`
	State    string `json:"state"`
	ItemID   string `json:"itemId,omitempty"`
	Path     string `json:"path,omitempty"`
}

// ItemIssue pairs an item with an issue URL.
type ItemIssue struct {
	ItemID   string `json:"itemId"`
	IssueURL string `json:"issueUrl"`
}

// BranchEntry records a created branch.
type BranchEntry struct {
	ItemID string `json:"itemId"`
	Branch string `json:"branch"`
}

// Conflict is an item whose content diverged on both sides.
type Conflict struct {
	ItemID   string `json:"itemId"`
	IssueURL string `json:"issueUrl"`
	Reason   string `json:"reason"`
}

// ConflictReason is the reason reported for diverged items.
const ConflictReason = "Local and GitHub issue content diverged. Re-run with `--prefer local` or `--prefer github`."

// Result is the outcome of a sync run.
type Result struct {
	Imported        []ImportEntry `json:"imported"`
	IssuesCreated   []ItemIssue   `json:"issuesCreated"`
	IssuesUpdated   []ItemIssue   `json:"issuesUpdated"`
	ItemsUpdated    []ItemIssue   `json:"itemsUpdated"`
	BranchesCreated []BranchEntry `json:"branchesCreated"`
	Conflicts       []Conflict    `json:"conflicts"`
	Warnings        []string      `json:"warnings"`
	DryRun          bool          `json:"dryRun"`
}

func newResult(dryRun bool) *Result {
	return &Result{
		Imported:        []ImportEntry{},
		IssuesCreated:   []ItemIssue{},
		IssuesUpdated:   []ItemIssue{},
		ItemsUpdated:    []ItemIssue{},
		BranchesCreated: []BranchEntry{},
		Conflicts:       []Conflict{},
		Warnings:        []string{},
		DryRun:          dryRun,
	}
}

// Counts summarizes a Result.
type Counts struct {
	Imported        int `json:"imported"`
	IssuesCreated   int `json:"issuesCreated"`
	IssuesUpdated   int `json:"issuesUpdated"`
	ItemsUpdated    int `json:"itemsUpdated"`
	BranchesCreated int `json:"branchesCreated"`
	Conflicts       int `json:"conflicts"`
	Warnings        int `json:"warnings"`
}

// Counts returns the size of every result list.
func (r *Result) Counts() Counts {
	return Counts{
		Imported:        len(r.Imported),
		IssuesCreated:   len(r.IssuesCreated),
		IssuesUpdated:   len(r.IssuesUpdated),
		ItemsUpdated:    len(r.ItemsUpdated),
		BranchesCreated: len(r.BranchesCreated),
		Conflicts:       len(r.Conflicts),
		Warnings:        len(r.Warnings),
	}
}

// HasConflicts reports whether any item needs an explicit preference.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

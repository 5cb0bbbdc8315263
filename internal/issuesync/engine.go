package issuesync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
)

// ListLimit caps how many issues an import run lists.
const ListLimit = 1000

// Config wires an Engine.
type Config struct {
	// Repo is the default repository for short issue references and new
	// issues.
	Repo github.RepoRef
	// BaseBranch is the branch rendered path links point at.
	BaseBranch string
	Logger     *slog.Logger
	// Now stamps githubSynced; defaults to time.Now.
	Now func() time.Time
}

// Engine reconciles work items with a Tracker.
type Engine struct {
	tracker Tracker
	git     Git
	items   Items
	cfg     Config
}

// New returns an Engine. git may be nil, which skips branch reconciliation.
func New(tracker Tracker, git Git, items Items, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	return &Engine{tracker: tracker, git: git, items: items, cfg: cfg}
}

// Run syncs docs in order: import, compare and apply the policy, create
// missing issues, then reconcile branches. Dry runs compute the same result
// without remote mutations or writes.
func (e *Engine) Run(ctx context.Context, docs []*models.Document, opts Options) (*Result, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyFail
	}
	res := newResult(opts.DryRun)
	state := newRunState(e.tracker, e.cfg.Repo)
	items := append([]*models.Document{}, docs...)

	if !opts.NoIssues {
		if e.tracker == nil {
			return nil, fmt.Errorf("issuesync: no issue tracker configured")
		}
		linked, err := e.linkedIssues(items, state)
		if err != nil {
			return nil, err
		}
		if err := e.prefetchFor(ctx, state, items, opts.IssueInputs); err != nil {
			return nil, err
		}

		imported, err := e.importIssues(ctx, state, linked, opts, res)
		if err != nil {
			return nil, err
		}
		items = append(items, imported...)

		skip := make(map[*models.Document]struct{}, len(imported))
		for _, doc := range imported {
			skip[doc] = struct{}{}
		}
		for _, doc := range items {
			if _, ok := skip[doc]; ok {
				continue
			}
			if err := e.reconcile(ctx, state, doc, opts, res); err != nil {
				return nil, err
			}
		}

		for _, doc := range items {
			if err := e.createIssue(ctx, state, doc, opts, res); err != nil {
				return nil, err
			}
		}
	}

	e.reconcileBranches(ctx, items, opts, res, state)
	res.Warnings = append(res.Warnings, state.warnings...)
	return res, nil
}

// linkedIssues maps every issue key referenced by an item to that item.
func (e *Engine) linkedIssues(items []*models.Document, state *runState) (map[string]*models.Document, error) {
	linked := make(map[string]*models.Document)
	for _, doc := range items {
		for _, entry := range doc.Related.Issues {
			if strings.TrimSpace(entry) == "" {
				continue
			}
			ref, err := state.parseRef(entry)
			if err != nil {
				return nil, fmt.Errorf("issuesync: %s: %w", doc.ID, err)
			}
			if _, ok := linked[cacheKey(ref)]; !ok {
				linked[cacheKey(ref)] = doc
			}
		}
	}
	return linked, nil
}

func (e *Engine) prefetchFor(ctx context.Context, state *runState, items []*models.Document, inputs []string) error {
	var refs []github.IssueRef
	for _, input := range inputs {
		ref, err := state.parseRef(input)
		if err != nil {
			return fmt.Errorf("issuesync: %w", err)
		}
		refs = append(refs, ref)
	}
	for _, doc := range items {
		if link := firstNonBlank(doc.Related.Issues); link != "" {
			if ref, err := state.parseRef(link); err == nil {
				refs = append(refs, ref)
			}
		}
	}
	return state.prefetch(ctx, refs)
}

func (e *Engine) importIssues(ctx context.Context, state *runState, linked map[string]*models.Document, opts Options, res *Result) ([]*models.Document, error) {
	var candidates []*Issue
	switch {
	case len(opts.IssueInputs) > 0:
		for _, input := range opts.IssueInputs {
			ref, err := state.parseRef(input)
			if err != nil {
				return nil, fmt.Errorf("issuesync: %w", err)
			}
			if issue := state.fetch(ctx, ref); issue != nil {
				candidates = append(candidates, issue)
			}
		}
	case opts.Import && !opts.Selected:
		listed, err := e.tracker.ListIssues(ctx, e.cfg.Repo, ListLimit)
		if err != nil {
			return nil, fmt.Errorf("issuesync: list issues: %w", err)
		}
		candidates = listed
	}

	var created []*models.Document
	for _, issue := range candidates {
		key := cacheKey(issue.Ref())
		if _, ok := linked[key]; ok {
			continue
		}
		entry := ImportEntry{
			Repo:     issue.Repo.Display(),
			Number:   issue.Number,
			IssueURL: issue.URL,
			Title:    issue.Title,
			State:    issue.State,
		}
		if opts.DryRun {
			linked[key] = nil
			res.Imported = append(res.Imported, entry)
			continue
		}
		doc, err := e.items.CreateFromIssue(issue, IssueType(issue, opts.ImportType), IssueStatus(issue, opts.ImportStatus))
		if err != nil {
			return nil, fmt.Errorf("issuesync: import %s: %w", issue.Ref().Key(), err)
		}
		e.cfg.Logger.Info("sync: issue imported",
			slog.String("issue", issue.Ref().Key()), slog.String("item", doc.ID))
		entry.ItemID, entry.Path = doc.ID, doc.Path
		res.Imported = append(res.Imported, entry)
		linked[key] = doc
		created = append(created, doc)
	}
	return created, nil
}

// reconcile compares one item with its first linked issue and applies the
// policy.
func (e *Engine) reconcile(ctx context.Context, state *runState, doc *models.Document, opts Options, res *Result) error {
	link := firstNonBlank(doc.Related.Issues)
	if link == "" {
		return nil
	}
	ref, err := state.parseRef(link)
	if err != nil {
		return fmt.Errorf("issuesync: %s: %w", doc.ID, err)
	}
	issue := state.fetch(ctx, ref)
	if issue == nil {
		return nil
	}

	desiredBody := RenderIssueBody(doc, e.cfg.Repo, e.cfg.BaseBranch)
	push := remoteStale(doc, issue, desiredBody)
	// An issue matching the rendered item is in sync, whatever the Summary
	// check says.
	pull := push && localStale(doc, issue)

	switch opts.Policy {
	case PolicyGithub:
		push = false
	case PolicyLocal:
		pull = false
	default:
		if pull && push {
			res.Conflicts = append(res.Conflicts, Conflict{ItemID: doc.ID, IssueURL: issue.URL, Reason: ConflictReason})
			return nil
		}
	}
	if push && doc.IsTerminal() {
		push = false
	}

	switch {
	case pull:
		if !opts.DryRun {
			ApplyIssue(doc, issue, e.cfg.Now())
			if err := e.items.Save(doc); err != nil {
				return fmt.Errorf("issuesync: save %s: %w", doc.ID, err)
			}
			e.cfg.Logger.Info("sync: item updated", slog.String("item", doc.ID), slog.String("issue", ref.Key()))
		}
		res.ItemsUpdated = append(res.ItemsUpdated, ItemIssue{ItemID: doc.ID, IssueURL: issue.URL})
	case push:
		if !opts.DryRun {
			if err := e.tracker.UpdateIssue(ctx, ref, doc.Title, desiredBody); err != nil {
				state.warn(fmt.Sprintf("Issue update failed: %s (%v)", ref.Key(), err))
				return nil
			}
			doc.GithubSynced = document.FormatSynced(e.cfg.Now())
			if err := e.items.Save(doc); err != nil {
				return fmt.Errorf("issuesync: save %s: %w", doc.ID, err)
			}
			e.cfg.Logger.Info("sync: issue updated", slog.String("item", doc.ID), slog.String("issue", ref.Key()))
		}
		res.IssuesUpdated = append(res.IssuesUpdated, ItemIssue{ItemID: doc.ID, IssueURL: issue.URL})
	}
	return nil
}

func (e *Engine) createIssue(ctx context.Context, state *runState, doc *models.Document, opts Options, res *Result) error {
	if doc.IsTerminal() || firstNonBlank(doc.Related.Issues) != "" {
		return nil
	}
	if opts.DryRun {
		res.IssuesCreated = append(res.IssuesCreated, ItemIssue{ItemID: doc.ID})
		return nil
	}
	body := RenderIssueBody(doc, e.cfg.Repo, e.cfg.BaseBranch)
	url, err := e.tracker.CreateIssue(ctx, e.cfg.Repo, doc.Title, body, doc.Tags)
	if err != nil {
		state.warn(fmt.Sprintf("Issue create failed: %s (%v)", doc.ID, err))
		return nil
	}
	if _, err := links.AddLink(doc, models.RelatedIssues, url); err != nil {
		return fmt.Errorf("issuesync: link %s: %w", doc.ID, err)
	}
	doc.GithubSynced = document.FormatSynced(e.cfg.Now())
	if err := e.items.Save(doc); err != nil {
		return fmt.Errorf("issuesync: save %s: %w", doc.ID, err)
	}
	e.cfg.Logger.Info("sync: issue created", slog.String("item", doc.ID), slog.String("url", url))
	res.IssuesCreated = append(res.IssuesCreated, ItemIssue{ItemID: doc.ID, IssueURL: url})
	return nil
}

// reconcileBranches creates and pushes the first listed branch of every
// active item when it does not exist locally.
func (e *Engine) reconcileBranches(ctx context.Context, items []*models.Document, opts Options, res *Result, state *runState) {
	if e.git == nil {
		return
	}
	for _, doc := range items {
		if doc.IsTerminal() {
			continue
		}
		branch := firstNonBlank(doc.Related.Branches)
		if branch == "" {
			continue
		}
		exists, err := e.git.BranchExists(ctx, branch)
		if err != nil {
			state.warn(fmt.Sprintf("Branch check failed: %s (%v)", branch, err))
			continue
		}
		if exists {
			continue
		}
		if !opts.DryRun {
			if err := e.git.CreateBranch(ctx, branch); err != nil {
				state.warn(fmt.Sprintf("Branch create failed: %s (%v)", branch, err))
				continue
			}
			if err := e.git.Push(ctx, branch); err != nil {
				state.warn(fmt.Sprintf("Branch push failed: %s (%v)", branch, err))
			}
			e.cfg.Logger.Info("sync: branch created", slog.String("item", doc.ID), slog.String("branch", branch))
		}
		res.BranchesCreated = append(res.BranchesCreated, BranchEntry{ItemID: doc.ID, Branch: branch})
	}
}

// RefreshResult lists the items whose issue or pull request links changed.
type RefreshResult struct {
	ItemsUpdated []string `json:"itemsUpdated"`
	Warnings     []string `json:"warnings"`
	DryRun       bool     `json:"dryRun"`
}

// RefreshIssueLinks rewrites every issue entry to the issue's canonical URL
// and merges the pull requests linked on the remote into related.prs.
func (e *Engine) RefreshIssueLinks(ctx context.Context, docs []*models.Document, dryRun bool) (*RefreshResult, error) {
	if e.tracker == nil {
		return nil, fmt.Errorf("issuesync: no issue tracker configured")
	}
	state := newRunState(e.tracker, e.cfg.Repo)
	res := &RefreshResult{ItemsUpdated: []string{}, Warnings: []string{}, DryRun: dryRun}

	var refs []github.IssueRef
	for _, doc := range docs {
		for _, entry := range doc.Related.Issues {
			if ref, err := state.parseRef(entry); err == nil {
				refs = append(refs, ref)
			}
		}
	}
	if err := state.prefetch(ctx, refs); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if len(doc.Related.Issues) == 0 {
			continue
		}
		changed := false
		issues := make([]string, 0, len(doc.Related.Issues))
		prs := append([]string{}, doc.Related.PRs...)
		for _, entry := range doc.Related.Issues {
			if strings.TrimSpace(entry) == "" {
				changed = true
				continue
			}
			canonical := entry
			ref, err := state.parseRef(entry)
			if err != nil {
				state.warn(fmt.Sprintf("Invalid issue reference in %s: %s", doc.ID, entry))
			} else if issue := state.fetch(ctx, ref); issue != nil && issue.URL != "" {
				canonical = issue.URL
				for _, pr := range issue.PullRequests {
					if links.AddUnique(&prs, pr) {
						changed = true
					}
				}
			}
			if canonical != entry || !links.AddUnique(&issues, canonical) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		res.ItemsUpdated = append(res.ItemsUpdated, doc.ID)
		if dryRun {
			continue
		}
		doc.Related.Issues = issues
		doc.Related.PRs = prs
		doc.GithubSynced = document.FormatSynced(e.cfg.Now())
		if err := e.items.Save(doc); err != nil {
			return nil, fmt.Errorf("issuesync: save %s: %w", doc.ID, err)
		}
	}
	res.Warnings = append(res.Warnings, state.warnings...)
	return res, nil
}

func firstNonBlank(list []string) string {
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

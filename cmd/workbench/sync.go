package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/models"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Sync work items with GitHub issues and create missing branches",
		ArgsUsage: "[id...]",
		Flags: []cli.Flag{
			dryRunFlag(),
			&cli.StringSliceFlag{Name: "issue", Usage: "Import exactly these issues (number, owner/repo#n or URL)"},
			&cli.BoolFlag{Name: "import", Usage: "Import open issues not linked to any item"},
			&cli.StringFlag{Name: "prefer", Usage: "Winner when an item and its issue diverge: local, github or fail"},
			&cli.BoolFlag{Name: "no-issues", Usage: "Only reconcile branches"},
		},
		Action: action(itemSync),
	}
}

type syncOutput struct {
	Links *issuesync.RefreshResult `json:"links,omitempty"`
	Sync  *issuesync.Result        `json:"sync"`
}

func itemSync(ctx context.Context, cmd *cli.Command, e *env) error {
	policy, err := issuesync.ParsePolicy(cmd.String("prefer"), e.cfg.GitHub.Sync.ConflictDefault)
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	var docs []*models.Document
	if len(ids) > 0 {
		for _, id := range ids {
			doc, err := e.svc.Resolve(id)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
	} else if docs, err = e.svc.ListItems(true); err != nil {
		return err
	}

	opts := issuesync.Options{
		Policy:      policy,
		DryRun:      cmd.Bool("dry-run"),
		Import:      cmd.Bool("import"),
		IssueInputs: cmd.StringSlice("issue"),
		Selected:    len(ids) > 0,
		NoIssues:    cmd.Bool("no-issues"),
	}

	engine := e.engine(ctx)
	out := syncOutput{}
	if !opts.NoIssues {
		if out.Links, err = engine.RefreshIssueLinks(ctx, docs, opts.DryRun); err != nil {
			return err
		}
	}
	if out.Sync, err = engine.Run(ctx, docs, opts); err != nil {
		return err
	}

	if err := e.out.Emit(out, func() {
		if out.Links != nil {
			for _, id := range out.Links.ItemsUpdated {
				e.out.Line("issue links refreshed: %s", id)
			}
		}
		e.out.SyncResult(out.Sync)
	}); err != nil {
		return err
	}
	if out.Sync.HasConflicts() {
		return errConflicts
	}
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Create work items from GitHub issues",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "issue", Usage: "Issue number, owner/repo#n or URL", Required: true},
			&cli.StringFlag{Name: "type", Usage: "Work item type (default: from labels)"},
			&cli.StringFlag{Name: "status", Usage: "Status (default: from issue state)"},
			&cli.StringFlag{Name: "priority", Usage: "Priority"},
			&cli.StringFlag{Name: "owner", Usage: "Owner"},
		},
		Action: action(itemImport),
	}
}

type importEntry struct {
	Issue *github.Issue    `json:"issue"`
	Item  *models.Document `json:"item"`
}

func itemImport(ctx context.Context, cmd *cli.Command, e *env) error {
	repo := e.githubRepo(ctx)
	tracker := e.tracker()

	imported := []importEntry{}
	for _, input := range cmd.StringSlice("issue") {
		ref, err := github.ParseIssueRef(input, repo)
		if err != nil {
			return err
		}
		issue, err := tracker.FetchIssue(ctx, ref)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ref.Key(), err)
		}
		doc, err := e.svc.CreateFromIssue(issue,
			issuesync.IssueType(issue, cmd.String("type")),
			issuesync.IssueStatus(issue, cmd.String("status")))
		if err != nil {
			return err
		}
		if p, o := cmd.String("priority"), cmd.String("owner"); p != "" || o != "" {
			if p != "" {
				doc.Priority = p
			}
			if o != "" {
				doc.Owner = o
			}
			if err := e.svc.Save(doc); err != nil {
				return err
			}
		}
		imported = append(imported, importEntry{Issue: issue, Item: doc})
	}

	return e.out.Emit(imported, func() {
		for _, entry := range imported {
			e.out.Success("imported %s as %s: %s", entry.Issue.Ref().Key(), entry.Item.ID, entry.Item.Path)
		}
	})
}

func prCommand() *cli.Command {
	return &cli.Command{
		Name:      "pr",
		Usage:     "Open a pull request for a work item",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Usage: "Base branch (default: git.default_base_branch)"},
			&cli.StringFlag{Name: "head", Usage: "Head branch (default: the checked-out branch)"},
			&cli.BoolFlag{Name: "draft", Usage: "Open as a draft"},
			&cli.BoolFlag{Name: "fill", Usage: "Render summary, acceptance criteria and links into the body"},
		},
		Action: action(itemPR),
	}
}

func itemPR(ctx context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	head := cmd.String("head")
	if head == "" {
		branch, err := e.git.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		head = branch
	}
	base := cmd.String("base")
	if base == "" {
		base = e.cfg.Git.DefaultBaseBranch
	}
	if strings.EqualFold(head, base) {
		return errorf(cmd, "head branch %q is the base branch", head)
	}

	doc, url, err := e.svc.CreatePullRequest(ctx, e.tracker(), e.githubRepo(ctx), cmd.Args().First(), itemservice.PullRequestOptions{
		Head:  head,
		Base:  base,
		Draft: cmd.Bool("draft"),
		Fill:  cmd.Bool("fill"),
	})
	if err != nil {
		return err
	}
	return e.out.Emit(map[string]string{"item": doc.ID, "path": doc.Path, "url": url}, func() {
		e.out.Success("opened %s for %s", url, doc.ID)
	})
}

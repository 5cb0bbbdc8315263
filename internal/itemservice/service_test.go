package itemservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/models"
	"github.com/starford/workbench/internal/testutil"
)

const (
	itemsDir = "docs/70-work/items"
	doneDir  = "docs/70-work/done"
)

var now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

const taskA = `---
id: TASK-0001
type: task
status: ready
created: 2026-01-01
title: First task
tags: []
related:
  specs: []
  adrs: []
  files: []
  prs: []
  issues: []
  branches: []
---

# TASK-0001 - First task

## Summary

Do the thing.
`

const guide = `---
type: guide
status: active
title: Guide
related:
  files:
    - /docs/70-work/items/TASK-0001-first-task.md
---

See [task](/docs/70-work/items/TASK-0001-first-task.md).
`

func newTestService(t *testing.T, files map[string]string) (string, *Service) {
	t.Helper()
	root, store := testutil.TestRepo(t, files)
	svc := NewService(store, Config{
		ItemsDir:     itemsDir,
		DoneDir:      doneDir,
		DocsDir:      "docs",
		TemplatesDir: "docs/templates",
		Now:          func() time.Time { return now },
	})
	return root, svc
}

func TestAllocateID(t *testing.T) {
	_, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0003-x.md":        "x",
		doneDir + "/TASK-0007-y.md":         "y",
		itemsDir + "/BUG-0010-z.md":         "z",
		itemsDir + "/nested/TASK-0099-n.md": "n",
	})

	for typ, want := range map[string]string{
		models.TypeTask:  "TASK-0008",
		models.TypeBug:   "BUG-0011",
		models.TypeSpike: "SPIKE-0001",
	} {
		got, err := svc.AllocateID(typ)
		require.NoError(t, err)
		assert.Equal(t, want, got, typ)
	}
}

func TestAllocateID_CustomPrefixAndWidth(t *testing.T) {
	_, store := testutil.TestRepo(t, map[string]string{itemsDir + "/T-12-x.md": "x"})
	svc := NewService(store, Config{ItemsDir: itemsDir, DoneDir: doneDir, IDWidth: 3,
		Prefixes: map[string]string{models.TypeTask: "T"}})

	got, err := svc.AllocateID(models.TypeTask)
	require.NoError(t, err)
	assert.Equal(t, "T-013", got)
}

func TestSlug(t *testing.T) {
	s := Slug("Add Login Page")
	assert.Equal(t, strings.ToLower(s), s)
	assert.Contains(t, s, "login")
	assert.False(t, strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-"))

	long := Slug(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(long), MaxSlugLength)
	assert.NotEmpty(t, long)
}

func TestCreateItem_DefaultTemplate(t *testing.T) {
	root, svc := newTestService(t, nil)

	doc, err := svc.CreateItem(NewItem{Type: models.TypeTask, Title: "Add login", Status: models.StatusReady, Owner: "sam"})
	require.NoError(t, err)

	assert.Equal(t, itemsDir+"/TASK-0001-"+Slug("Add login")+".md", doc.Path)
	reloaded, err := svc.Load(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "TASK-0001", reloaded.ID)
	assert.Equal(t, models.TypeTask, reloaded.Type)
	assert.Equal(t, models.StatusReady, reloaded.Status)
	assert.Equal(t, "Add login", reloaded.Title)
	assert.Equal(t, "2026-03-04", reloaded.Created)
	assert.Equal(t, "sam", reloaded.Owner)
	assert.Empty(t, reloaded.Updated)
	assert.NotNil(t, reloaded.Related.Files)
	assert.NotNil(t, reloaded.Related.Branches)

	content := testutil.ReadFile(t, root, doc.Path)
	assert.Contains(t, content, "# TASK-0001 - Add login")
	assert.NotContains(t, content, "<title>")

	next, err := svc.CreateItem(NewItem{Type: models.TypeTask, Title: "Second"})
	require.NoError(t, err)
	assert.Equal(t, "TASK-0002", next.ID)
	assert.Equal(t, models.StatusDraft, next.Status)
}

func TestCreateItem_RepositoryTemplate(t *testing.T) {
	root, svc := newTestService(t, map[string]string{
		"docs/templates/work-item.bug.md": "---\nid: BUG-0000\ntype: bug\nstatus: draft\ncreated: 0000-00-00\nseverity: low\n---\n\n# BUG-0000 - <title>\n\nReported 0000-00-00.\n",
	})

	doc, err := svc.CreateItem(NewItem{Type: models.TypeBug, Title: "Crash"})
	require.NoError(t, err)

	content := testutil.ReadFile(t, root, doc.Path)
	assert.Contains(t, content, "severity: low")
	assert.Contains(t, content, "# BUG-0001 - Crash")
	assert.Contains(t, content, "Reported 2026-03-04.")
}

func TestCreateItem_Invalid(t *testing.T) {
	_, svc := newTestService(t, nil)

	_, err := svc.CreateItem(NewItem{Type: "epic", Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
	_, err = svc.CreateItem(NewItem{Type: models.TypeTask, Title: "  "})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestCreateFromIssue(t *testing.T) {
	_, svc := newTestService(t, nil)
	issue := &issuesync.Issue{
		Title:  "Crash on start",
		Body:   "Steps",
		URL:    "https://github.com/acme/widgets/issues/5",
		Labels: []string{"bug"},
	}

	doc, err := svc.CreateFromIssue(issue, models.TypeBug, models.StatusReady)
	require.NoError(t, err)

	reloaded, err := svc.Load(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "BUG-0001", reloaded.ID)
	assert.Equal(t, []string{"https://github.com/acme/widgets/issues/5"}, reloaded.Related.Issues)
	assert.Equal(t, []string{"bug"}, reloaded.Tags)
	assert.Equal(t, "2026-03-04T10:00:00Z", reloaded.GithubSynced)
	assert.Contains(t, reloaded.Body, "Steps")
}

func TestListItems(t *testing.T) {
	_, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md":    taskA,
		itemsDir + "/notes.md":                   "no header here\n",
		itemsDir + "/nested/TASK-0005-deep.md":   strings.Replace(taskA, "TASK-0001", "TASK-0005", 1),
		doneDir + "/TASK-0002-old.md":            strings.Replace(taskA, "TASK-0001", "TASK-0002", 1),
		"docs/guide.md":                          guide,
	})

	open, err := svc.ListItems(false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "TASK-0001", open[0].ID)

	all, err := svc.ListItems(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	docs, err := svc.ListDocs()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "docs/guide.md", docs[0].Path)
}

func TestFindItem(t *testing.T) {
	_, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		doneDir + "/TASK-0002-old.md":         strings.Replace(taskA, "TASK-0001", "TASK-0002", 1),
	})

	doc, err := svc.FindItem("task-0001")
	require.NoError(t, err)
	assert.Equal(t, itemsDir+"/TASK-0001-first-task.md", doc.Path)

	doc, err = svc.FindItem("TASK-0002")
	require.NoError(t, err)
	assert.Equal(t, doneDir+"/TASK-0002-old.md", doc.Path)

	_, err = svc.FindItem("TASK-0404")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	doc, err = svc.Resolve("./" + itemsDir + "/TASK-0001-first-task.md")
	require.NoError(t, err)
	assert.Equal(t, "TASK-0001", doc.ID)

	_, err = svc.Resolve("docs/missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	root, svc := newTestService(t, map[string]string{itemsDir + "/TASK-0001-first-task.md": taskA})

	doc, err := svc.UpdateStatus("TASK-0001", models.StatusInProgress, "started work")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, doc.Status)
	assert.Equal(t, "2026-03-04", doc.Updated)

	content := testutil.ReadFile(t, root, doc.Path)
	assert.Contains(t, content, "status: in-progress")
	assert.Contains(t, content, "updated: 2026-03-04")
	assert.Contains(t, content, "- started work")

	_, err = svc.UpdateStatus("TASK-0001", "finished", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestClose_MovesAndRewritesReferences(t *testing.T) {
	root, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		"docs/guide.md":                       guide,
	})

	doc, res, err := svc.Close("TASK-0001", true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, doneDir+"/TASK-0001-first-task.md", doc.Path)
	assert.Equal(t, models.StatusDone, doc.Status)

	assert.False(t, svc.Store().Exists(itemsDir+"/TASK-0001-first-task.md"))
	assert.Contains(t, testutil.ReadFile(t, root, doc.Path), "status: done")

	g := testutil.ReadFile(t, root, "docs/guide.md")
	assert.NotContains(t, g, "/docs/70-work/items/TASK-0001-first-task.md")
	assert.Contains(t, g, "[task](/docs/70-work/done/TASK-0001-first-task.md)")
	assert.Contains(t, g, "- /docs/70-work/done/TASK-0001-first-task.md")
}

func TestClose_WithoutMove(t *testing.T) {
	_, svc := newTestService(t, map[string]string{itemsDir + "/TASK-0001-first-task.md": taskA})

	doc, res, err := svc.Close("TASK-0001", false)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, itemsDir+"/TASK-0001-first-task.md", doc.Path)
}

func TestMoveDocument_DryRunWritesNothing(t *testing.T) {
	root, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		"docs/guide.md":                       guide,
	})

	res, err := svc.MoveDocument(itemsDir+"/TASK-0001-first-task.md", "docs/archive/TASK-0001-first-task.md", true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "docs/guide.md", res.Changes[0].Path)
	assert.Equal(t, guide, res.Changes[0].Before)
	assert.Contains(t, res.Changes[0].After, "/docs/archive/TASK-0001-first-task.md")

	assert.True(t, svc.Store().Exists(itemsDir+"/TASK-0001-first-task.md"))
	assert.Equal(t, guide, testutil.ReadFile(t, root, "docs/guide.md"))
}

func TestMoveDocument_Errors(t *testing.T) {
	_, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		"docs/guide.md":                       guide,
	})

	_, err := svc.MoveDocument("docs/none.md", "docs/other.md", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.MoveDocument("docs/guide.md", itemsDir+"/TASK-0001-first-task.md", false)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestMove_IntoDirectory(t *testing.T) {
	_, svc := newTestService(t, map[string]string{itemsDir + "/TASK-0001-first-task.md": taskA})

	res, err := svc.Move("TASK-0001", "docs/parked", false)
	require.NoError(t, err)
	assert.Equal(t, "docs/parked/TASK-0001-first-task.md", res.To)
	assert.True(t, svc.Store().Exists(res.To))
}

func TestRename(t *testing.T) {
	root, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		"docs/guide.md":                       guide,
	})

	doc, res, err := svc.Rename("TASK-0001", "Brand new name", false)
	require.NoError(t, err)
	want := itemsDir + "/TASK-0001-" + Slug("Brand new name") + ".md"
	assert.Equal(t, want, doc.Path)
	assert.Equal(t, want, res.To)

	content := testutil.ReadFile(t, root, want)
	assert.Contains(t, content, "title: Brand new name")
	assert.Contains(t, content, "# TASK-0001 - Brand new name")
	assert.Contains(t, testutil.ReadFile(t, root, "docs/guide.md"), "/"+want)
}

func TestUpdateLink(t *testing.T) {
	root, svc := newTestService(t, map[string]string{itemsDir + "/TASK-0001-first-task.md": taskA})

	doc, changed, err := svc.UpdateLink("TASK-0001", models.RelatedSpecs, `.\docs\spec.md`, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"/docs/spec.md"}, doc.Related.Specs)
	assert.Contains(t, testutil.ReadFile(t, root, doc.Path), "- /docs/spec.md")

	_, changed, err = svc.UpdateLink("TASK-0001", models.RelatedSpecs, "/docs/spec.md", false)
	require.NoError(t, err)
	assert.False(t, changed)

	doc, changed, err = svc.UpdateLink("TASK-0001", models.RelatedSpecs, "docs/spec.md", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, doc.Related.Specs)

	_, _, err = svc.UpdateLink("TASK-0001", "tickets", "x", false)
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestNormalizeItems(t *testing.T) {
	messy := "---\nid: TASK-0003\ntype: task\nstatus: ready\ncreated: 2026-01-01\ntags:\n  - api\n  - API\n  - \" \"\nrelated:\n  specs:\n    - docs/a.md\n    - /docs/a.md\n---\n\n# TASK-0003 - Messy\n"
	root, svc := newTestService(t, map[string]string{
		itemsDir + "/TASK-0001-first-task.md": taskA,
		itemsDir + "/TASK-0003-messy.md":      messy,
	})

	changes, err := svc.NormalizeItems(false, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, itemsDir+"/TASK-0003-messy.md", changes[0].Path)
	assert.Equal(t, messy, testutil.ReadFile(t, root, itemsDir+"/TASK-0003-messy.md"))

	_, err = svc.NormalizeItems(false, false)
	require.NoError(t, err)
	doc, err := svc.FindItem("TASK-0003")
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, doc.Tags)
	assert.Equal(t, []string{"/docs/a.md"}, doc.Related.Specs)
	assert.NotNil(t, doc.Related.Branches)

	again, err := svc.NormalizeItems(false, false)
	require.NoError(t, err)
	assert.Empty(t, again)
}

type fakePRs struct {
	got github.PullRequest
	err error
}

func (f *fakePRs) CreatePullRequest(_ context.Context, _ github.RepoRef, pr github.PullRequest) (string, error) {
	f.got = pr
	return "https://github.com/acme/widgets/pull/9", f.err
}

func TestCreatePullRequest(t *testing.T) {
	root, svc := newTestService(t, map[string]string{itemsDir + "/TASK-0001-first-task.md": taskA})
	repo := github.RepoRef{Host: github.DefaultHost, Owner: "acme", Repo: "widgets"}
	prs := &fakePRs{}

	doc, url, err := svc.CreatePullRequest(context.Background(), prs, repo, "TASK-0001",
		PullRequestOptions{Head: "task/TASK-0001", Draft: true})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widgets/pull/9", url)
	assert.Equal(t, "TASK-0001: First task", prs.got.Title)
	assert.Equal(t, "Work item: /"+itemsDir+"/TASK-0001-first-task.md", prs.got.Body)
	assert.Equal(t, "main", prs.got.Base)
	assert.True(t, prs.got.Draft)
	assert.Equal(t, []string{url}, doc.Related.PRs)
	assert.Contains(t, testutil.ReadFile(t, root, doc.Path), url)

	_, _, err = svc.CreatePullRequest(context.Background(), prs, repo, "TASK-0001", PullRequestOptions{Fill: true, Head: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prs.got.Body, "## Summary\nDo the thing."))

	prs.err = errors.New("boom")
	_, _, err = svc.CreatePullRequest(context.Background(), prs, repo, "TASK-0001", PullRequestOptions{Head: "x"})
	assert.Error(t, err)

	_, _, err = svc.CreatePullRequest(context.Background(), prs, repo, "TASK-0001", PullRequestOptions{})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

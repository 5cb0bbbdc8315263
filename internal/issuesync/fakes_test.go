package issuesync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/models"
)

var widgets = github.RepoRef{Host: github.DefaultHost, Owner: "acme", Repo: "widgets"}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeTracker struct {
	mu      sync.Mutex
	issues  map[int]*Issue
	listed  []*Issue
	updates []string
	creates []string
	labels  [][]string
	nextNum int

	fetches  atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFakeTracker(issues ...*Issue) *fakeTracker {
	t := &fakeTracker{issues: map[int]*Issue{}, nextNum: 100}
	for _, i := range issues {
		t.issues[i.Number] = i
	}
	return t
}

func (f *fakeTracker) FetchIssue(ctx context.Context, ref github.IssueRef) (*Issue, error) {
	f.fetches.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[ref.Number]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", ref.Number, apperr.ErrNotFound)
	}
	cp := *issue
	return &cp, nil
}

func (f *fakeTracker) ListIssues(ctx context.Context, repo github.RepoRef, limit int) ([]*Issue, error) {
	return f.listed, nil
}

func (f *fakeTracker) CreateIssue(ctx context.Context, repo github.RepoRef, title, body string, labels []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNum++
	f.creates = append(f.creates, title)
	f.labels = append(f.labels, labels)
	url := fmt.Sprintf("https://github.com/%s/issues/%d", repo.Slug(), f.nextNum)
	f.issues[f.nextNum] = &Issue{Repo: repo, Number: f.nextNum, Title: title, Body: body, URL: url, State: "open"}
	return url, nil
}

func (f *fakeTracker) UpdateIssue(ctx context.Context, ref github.IssueRef, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, ref.Key())
	if issue, ok := f.issues[ref.Number]; ok {
		issue.Title, issue.Body = title, body
	}
	return nil
}

func (f *fakeTracker) CreatePullRequest(ctx context.Context, repo github.RepoRef, pr github.PullRequest) (string, error) {
	return "https://github.com/acme/widgets/pull/1", nil
}

func (f *fakeTracker) CheckAuth(ctx context.Context, repo github.RepoRef) github.AuthStatus {
	return github.AuthStatus{Status: github.AuthOK}
}

type fakeGit struct {
	existing map[string]bool
	created  []string
	pushed   []string
}

func (g *fakeGit) BranchExists(ctx context.Context, branch string) (bool, error) {
	return g.existing[branch], nil
}

func (g *fakeGit) CreateBranch(ctx context.Context, branch string) error {
	g.created = append(g.created, branch)
	return nil
}

func (g *fakeGit) Push(ctx context.Context, branch string) error {
	g.pushed = append(g.pushed, branch)
	return nil
}

type fakeItems struct {
	saved   map[string]string
	created []string
	seq     int
}

func newFakeItems() *fakeItems {
	return &fakeItems{saved: map[string]string{}}
}

func (s *fakeItems) Save(doc *models.Document) error {
	s.saved[doc.ID] = string(document.Render(doc))
	return nil
}

func (s *fakeItems) CreateFromIssue(issue *Issue, itemType, status string) (*models.Document, error) {
	s.seq++
	id := fmt.Sprintf("TASK-%04d", 900+s.seq)
	doc := &models.Document{
		Path:    "docs/70-work/items/" + id + "-imported.md",
		ID:      id,
		Type:    itemType,
		Status:  status,
		Created: "2026-01-02",
		Body:    "# " + id + " - " + issue.Title + "\n",
	}
	ApplyIssue(doc, issue, fixedNow)
	s.created = append(s.created, id+":"+itemType+":"+status)
	return doc, nil
}

func mustParse(p, text string) *models.Document {
	doc, err := document.Parse(p, []byte(text))
	if err != nil {
		panic(err)
	}
	return doc
}

func newEngine(tr Tracker, g Git, items Items) *Engine {
	return New(tr, g, items, Config{
		Repo:       widgets,
		BaseBranch: "main",
		Now:        func() time.Time { return fixedNow },
	})
}

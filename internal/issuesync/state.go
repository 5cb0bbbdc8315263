package issuesync

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/starford/workbench/internal/github"
)

// runState carries the per-run fetch cache and warnings through the sync
// steps. A key is fetched at most once per run; failures stay failed.
type runState struct {
	tracker Tracker
	repo    github.RepoRef

	mu       sync.Mutex
	cache    map[string]*Issue
	missing  map[string]struct{}
	warnings []string
}

func newRunState(tracker Tracker, repo github.RepoRef) *runState {
	return &runState{
		tracker: tracker,
		repo:    repo,
		cache:   make(map[string]*Issue),
		missing: make(map[string]struct{}),
	}
}

// prefetchLimit is the prefetch fan-out: the CPU count clamped to [2, 8].
func prefetchLimit() int64 {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}
	return int64(n)
}

func cacheKey(ref github.IssueRef) string {
	return strings.ToLower(ref.Key())
}

func (s *runState) warn(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
}

func (s *runState) lookup(key string) (*Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.missing[key]; ok {
		return nil, true
	}
	issue, ok := s.cache[key]
	return issue, ok
}

func (s *runState) record(ref github.IssueRef, issue *Issue, err error) {
	key := cacheKey(ref)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if _, ok := s.missing[key]; !ok {
			s.missing[key] = struct{}{}
			s.warnings = append(s.warnings, fmt.Sprintf("Issue fetch failed: %s (%v)", ref.Key(), err))
		}
		return
	}
	s.cache[key] = issue
}

// fetch returns the issue for ref, or nil when fetching it failed in this run.
func (s *runState) fetch(ctx context.Context, ref github.IssueRef) *Issue {
	key := cacheKey(ref)
	if issue, ok := s.lookup(key); ok {
		return issue
	}
	issue, err := s.tracker.FetchIssue(ctx, ref)
	s.record(ref, issue, err)
	if err != nil {
		return nil
	}
	return issue
}

// prefetch fills the cache for refs concurrently. Results are recorded in
// input order so warnings stay deterministic.
func (s *runState) prefetch(ctx context.Context, refs []github.IssueRef) error {
	var pending []github.IssueRef
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		key := cacheKey(ref)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := s.lookup(key); ok {
			continue
		}
		pending = append(pending, ref)
	}
	if len(pending) == 0 {
		return nil
	}

	issues := make([]*Issue, len(pending))
	errs := make([]error, len(pending))
	sem := semaphore.NewWeighted(prefetchLimit())
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range pending {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			issues[i], errs[i] = s.tracker.FetchIssue(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, ref := range pending {
		if issues[i] == nil && errs[i] == nil {
			continue
		}
		s.record(ref, issues[i], errs[i])
	}
	return nil
}

// parseRef resolves an issue link against the default repository.
func (s *runState) parseRef(link string) (github.IssueRef, error) {
	return github.ParseIssueRef(link, s.repo)
}

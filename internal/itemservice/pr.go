package itemservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
)

// PullRequestCreator opens pull requests.
type PullRequestCreator interface {
	CreatePullRequest(ctx context.Context, repo github.RepoRef, pr github.PullRequest) (string, error)
}

// PullRequestOptions controls CreatePullRequest.
type PullRequestOptions struct {
	Head  string
	Base  string
	Draft bool
	// Fill renders the item's summary, acceptance criteria and related links
	// into the pull request body.
	Fill bool
}

// CreatePullRequest opens a pull request for a work item and records its URL
// in related.prs.
func (s *Service) CreatePullRequest(ctx context.Context, tracker PullRequestCreator, repo github.RepoRef, ref string, opts PullRequestOptions) (*models.Document, string, error) {
	if repo.IsZero() {
		return nil, "", fmt.Errorf("itemservice: no GitHub repository configured: %w", apperr.ErrInvalidReference)
	}
	if strings.TrimSpace(opts.Head) == "" {
		return nil, "", fmt.Errorf("itemservice: head branch is required: %w", apperr.ErrInvalidReference)
	}
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, "", err
	}
	base := opts.Base
	if base == "" {
		base = "main"
	}

	body := "Work item: /" + doc.Path
	if opts.Fill {
		body = issuesync.RenderIssueBody(doc, repo, base)
	}
	title := doc.Title
	if doc.ID != "" {
		title = doc.ID + ": " + doc.Title
	}

	url, err := tracker.CreatePullRequest(ctx, repo, github.PullRequest{
		Title: title,
		Body:  body,
		Head:  opts.Head,
		Base:  base,
		Draft: opts.Draft,
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := links.AddLink(doc, models.RelatedPRs, url); err != nil {
		return nil, "", err
	}
	if err := s.Save(doc); err != nil {
		return nil, "", err
	}
	return doc, url, nil
}

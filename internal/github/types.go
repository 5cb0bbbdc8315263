package github

import (
	"fmt"
	"net/http"
	"time"

	"github.com/starford/workbench/internal/apperr"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3

	// MaxPageSize is the maximum number of issues to fetch per page.
	MaxPageSize = 100

	// MaxPages stops pagination on malformed Link headers.
	MaxPages = 1000

	// DefaultListLimit caps ListIssues when no limit is given.
	DefaultListLimit = 1000
)

// Auth status values reported by CheckAuth.
const (
	AuthOK   = "ok"
	AuthWarn = "warn"
	AuthSkip = "skip"
)

// AuthStatus is the outcome of an authentication check.
type AuthStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Issue is a remote issue as the sync engine sees it.
type Issue struct {
	Repo         RepoRef  `json:"repo"`
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	URL          string   `json:"url"`
	State        string   `json:"state"`
	Labels       []string `json:"labels"`
	PullRequests []string `json:"pullRequests"`
}

// Ref returns the issue's reference.
func (i *Issue) Ref() IssueRef {
	return IssueRef{Repo: i.Repo, Number: i.Number}
}

// PullRequest describes a pull request to open.
type PullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error: %s (status %d)", e.Body, e.Status)
}

// Is maps 404 to apperr.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == apperr.ErrNotFound && e.Status == http.StatusNotFound
}

// apiIssue is the REST payload of an issue.
type apiIssue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"`
	HTMLURL     string     `json:"html_url"`
	Labels      []apiLabel `json:"labels"`
	PullRequest *struct {
		URL string `json:"url,omitempty"`
	} `json:"pull_request,omitempty"`
}

type apiLabel struct {
	Name string `json:"name"`
}

// apiTimelineEvent is the subset of an issue timeline event that links pull
// requests.
type apiTimelineEvent struct {
	Event  string `json:"event"`
	Source *struct {
		Issue *apiIssue `json:"issue"`
	} `json:"source,omitempty"`
}

func (a *apiIssue) toIssue(repo RepoRef) *Issue {
	labels := make([]string, 0, len(a.Labels))
	for _, l := range a.Labels {
		if l.Name != "" {
			labels = append(labels, l.Name)
		}
	}
	return &Issue{
		Repo:         repo,
		Number:       a.Number,
		Title:        a.Title,
		Body:         a.Body,
		URL:          a.HTMLURL,
		State:        a.State,
		Labels:       labels,
		PullRequests: []string{},
	}
}

// Package github parses issue and repository references and talks to the
// GitHub REST API.
package github

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/workbench/internal/apperr"
)

// DefaultHost is the public GitHub host.
const DefaultHost = "github.com"

// RepoRef names a repository on a GitHub host.
type RepoRef struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// Slug returns "owner/repo".
func (r RepoRef) Slug() string {
	return r.Owner + "/" + r.Repo
}

// Display returns "owner/repo" on github.com and "host/owner/repo" elsewhere.
func (r RepoRef) Display() string {
	if r.Host == "" || strings.EqualFold(r.Host, DefaultHost) {
		return r.Slug()
	}
	return r.Host + "/" + r.Slug()
}

// IsZero reports whether no repository is set.
func (r RepoRef) IsZero() bool {
	return r.Owner == "" || r.Repo == ""
}

// BlobURL returns the web URL of path on branch.
func (r RepoRef) BlobURL(branch, path string) string {
	host := r.Host
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/%s/blob/%s/%s", host, r.Slug(), branch, strings.TrimLeft(path, "/"))
}

// IssueRef names one issue.
type IssueRef struct {
	Repo   RepoRef `json:"repo"`
	Number int     `json:"number"`
}

// Key is the canonical cache key, "owner/repo#n" or "host/owner/repo#n".
func (r IssueRef) Key() string {
	return r.Repo.Display() + "#" + strconv.Itoa(r.Number)
}

// URL returns the issue's web URL.
func (r IssueRef) URL() string {
	host := r.Repo.Host
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/%s/issues/%d", host, r.Repo.Slug(), r.Number)
}

// ParseIssueRef accepts an issue URL ending in /issues/<n>, "owner/repo#n",
// "#n" or "n". The short forms resolve against defaultRepo.
func ParseIssueRef(input string, defaultRepo RepoRef) (IssueRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return IssueRef{}, fmt.Errorf("github: empty issue reference: %w", apperr.ErrInvalidReference)
	}

	if u, err := url.Parse(s); err == nil && u.IsAbs() && u.Host != "" {
		segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segs) >= 4 && strings.EqualFold(segs[2], "issues") {
			if n, err := strconv.Atoi(segs[3]); err == nil && n > 0 {
				return IssueRef{Repo: RepoRef{Host: u.Host, Owner: segs[0], Repo: segs[1]}, Number: n}, nil
			}
		}
		return IssueRef{}, fmt.Errorf("github: unsupported issue URL %q: %w", input, apperr.ErrInvalidReference)
	}

	if i := strings.Index(s, "#"); i > 0 {
		if n, err := strconv.Atoi(s[i+1:]); err == nil && n > 0 {
			parts := strings.FieldsFunc(s[:i], func(r rune) bool { return r == '/' })
			if len(parts) == 2 {
				host := defaultRepo.Host
				if host == "" {
					host = DefaultHost
				}
				return IssueRef{Repo: RepoRef{Host: host, Owner: parts[0], Repo: parts[1]}, Number: n}, nil
			}
		}
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(s, "#")); err == nil && n > 0 {
		if defaultRepo.IsZero() {
			return IssueRef{}, fmt.Errorf("github: %q needs a default repository: %w", input, apperr.ErrInvalidReference)
		}
		return IssueRef{Repo: defaultRepo, Number: n}, nil
	}

	return IssueRef{}, fmt.Errorf("github: invalid issue reference %q: %w", input, apperr.ErrInvalidReference)
}

// ParseRepoURL parses a git remote URL in scp form (git@host:owner/repo.git)
// or URL form (https://host/owner/repo).
func ParseRepoURL(remote string) (RepoRef, bool) {
	s := strings.TrimSpace(remote)
	if strings.HasPrefix(strings.ToLower(s), "git@") {
		host, p, ok := strings.Cut(s[len("git@"):], ":")
		if !ok {
			return RepoRef{}, false
		}
		return repoFromPath(host, p)
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return RepoRef{}, false
	}
	return repoFromPath(u.Hostname(), u.Path)
}

func repoFromPath(host, p string) (RepoRef, bool) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if strings.HasSuffix(strings.ToLower(p), ".git") {
		p = p[:len(p)-len(".git")]
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if host == "" || len(parts) < 2 {
		return RepoRef{}, false
	}
	return RepoRef{Host: host, Owner: parts[0], Repo: parts[1]}, true
}

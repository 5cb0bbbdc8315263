package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/workbench/internal/apperr"
)

const maxResponseSize = 50 * 1024 * 1024

// maxRetryAfter bounds how long a Retry-After header can stall a request.
const maxRetryAfter = time.Minute

// Client talks to the GitHub REST API. One client serves every repository on
// the hosts it can reach.
type Client struct {
	Token      string       // personal access token, may be empty
	BaseURL    string       // API base for github.com (default: https://api.github.com)
	HTTPClient *http.Client // optional custom HTTP client

	newBackOff func() backoff.BackOff
}

// NewClient creates a new GitHub client.
func NewClient(token string) *Client {
	return &Client{
		Token:      token,
		BaseURL:    DefaultAPIEndpoint,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = 2 * time.Minute
	return bo
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	cp := *c
	cp.HTTPClient = httpClient
	return &cp
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise). When set, every repository is served from it.
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.BaseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// WithBackOff returns a new client using fresh instances from newBackOff
// between retries.
func (c *Client) WithBackOff(newBackOff func() backoff.BackOff) *Client {
	cp := *c
	cp.newBackOff = newBackOff
	return &cp
}

// apiBase picks the API root for repo. An explicit base URL wins; otherwise
// non-github.com hosts use the Enterprise layout.
func (c *Client) apiBase(repo RepoRef) string {
	if c.BaseURL != "" && c.BaseURL != DefaultAPIEndpoint {
		return c.BaseURL
	}
	if repo.Host == "" || strings.EqualFold(repo.Host, DefaultHost) {
		return DefaultAPIEndpoint
	}
	return "https://" + repo.Host + "/api/v3"
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(repo RepoRef, path string, params map[string]string) string {
	u := c.apiBase(repo) + "/repos/" + repo.Slug() + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// doRequest performs an HTTP request with authentication. Rate limits are
// retried with exponential backoff. Transport errors and 5xx responses are
// retried too, except for POST: the server may have created the resource.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body any) ([]byte, http.Header, error) {
	retryFailures := method != http.MethodPost
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("github: marshal request body: %w", err)
		}
	}

	var (
		respBody []byte
		headers  http.Header
	)
	op := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("github: create request: %w", err))
		}
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.httpClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !retryFailures {
				return backoff.Permanent(fmt.Errorf("github: request failed: %w", err))
			}
			return fmt.Errorf("github: request failed: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("github: read response: %w", err)
		}

		if isRateLimited(resp) {
			if err := waitRetryAfter(ctx, resp.Header.Get("Retry-After")); err != nil {
				return backoff.Permanent(err)
			}
			return &APIError{Status: resp.StatusCode, Body: "rate limited"}
		}
		if resp.StatusCode >= 500 && retryFailures {
			return &APIError{Status: resp.StatusCode, Body: string(data)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&APIError{Status: resp.StatusCode, Body: string(data)})
		}
		respBody, headers = data, resp.Header
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, nil, err
	}
	return respBody, headers, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) backOff() backoff.BackOff {
	if c.newBackOff != nil {
		return c.newBackOff()
	}
	return defaultBackOff()
}

// isRateLimited covers GitHub's two shapes: 429, or 403 with
// X-RateLimit-Remaining: 0.
func isRateLimited(resp *http.Response) bool {
	return resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0")
}

func waitRetryAfter(ctx context.Context, header string) error {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return nil
	}
	delay := time.Duration(seconds) * time.Second
	if delay > maxRetryAfter {
		delay = maxRetryAfter
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// FetchIssue retrieves one issue together with the pull requests that
// reference it. A failed timeline lookup leaves PullRequests empty.
func (c *Client) FetchIssue(ctx context.Context, ref IssueRef) (*Issue, error) {
	urlStr := c.buildURL(ref.Repo, "/issues/"+strconv.Itoa(ref.Number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("github: fetch issue %s: %w", ref.Key(), err)
	}
	var raw apiIssue
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("github: parse issue %s: %w", ref.Key(), err)
	}
	if raw.PullRequest != nil {
		return nil, fmt.Errorf("github: %s is a pull request: %w", ref.Key(), apperr.ErrInvalidReference)
	}
	issue := raw.toIssue(ref.Repo)
	if prs, err := c.linkedPullRequests(ctx, ref); err == nil {
		issue.PullRequests = prs
	}
	return issue, nil
}

func (c *Client) linkedPullRequests(ctx context.Context, ref IssueRef) ([]string, error) {
	prs := []string{}
	seen := map[string]struct{}{}
	urlStr := c.buildURL(ref.Repo, "/issues/"+strconv.Itoa(ref.Number)+"/timeline",
		map[string]string{"per_page": strconv.Itoa(MaxPageSize)})
	for page := 0; page < MaxPages; page++ {
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		var events []apiTimelineEvent
		if err := json.Unmarshal(respBody, &events); err != nil {
			return nil, fmt.Errorf("github: parse timeline: %w", err)
		}
		for _, ev := range events {
			if ev.Event != "cross-referenced" || ev.Source == nil || ev.Source.Issue == nil {
				continue
			}
			src := ev.Source.Issue
			if src.PullRequest == nil || src.HTMLURL == "" {
				continue
			}
			key := strings.ToLower(src.HTMLURL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			prs = append(prs, src.HTMLURL)
		}
		next, ok := hasNextPage(headers)
		if !ok {
			return prs, nil
		}
		urlStr = next
	}
	return prs, nil
}

// ListIssues returns up to limit issues of repo in any state. Pull requests
// returned by the issues endpoint are filtered out.
func (c *Client) ListIssues(ctx context.Context, repo RepoRef, limit int) ([]*Issue, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	perPage := MaxPageSize
	if limit < perPage {
		perPage = limit
	}

	var all []*Issue
	for page := 1; page <= MaxPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		urlStr := c.buildURL(repo, "/issues", map[string]string{
			"state":    "all",
			"per_page": strconv.Itoa(perPage),
			"page":     strconv.Itoa(page),
		})
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("github: list issues of %s: %w", repo.Display(), err)
		}
		var raw []apiIssue
		if err := json.Unmarshal(respBody, &raw); err != nil {
			return nil, fmt.Errorf("github: parse issues response: %w", err)
		}
		for i := range raw {
			if raw[i].PullRequest != nil {
				continue
			}
			all = append(all, raw[i].toIssue(repo))
			if len(all) >= limit {
				return all, nil
			}
		}
		if _, ok := hasNextPage(headers); !ok {
			return all, nil
		}
	}
	return nil, fmt.Errorf("github: pagination limit exceeded: stopped after %d pages", MaxPages)
}

// CreateIssue opens an issue and returns its web URL.
func (c *Client) CreateIssue(ctx context.Context, repo RepoRef, title, body string, labels []string) (string, error) {
	reqBody := map[string]any{
		"title": title,
		"body":  body,
	}
	var clean []string
	for _, l := range labels {
		if strings.TrimSpace(l) != "" {
			clean = append(clean, l)
		}
	}
	if len(clean) > 0 {
		reqBody["labels"] = clean
	}

	respBody, _, err := c.doRequest(ctx, http.MethodPost, c.buildURL(repo, "/issues", nil), reqBody)
	if err != nil {
		return "", fmt.Errorf("github: create issue in %s: %w", repo.Display(), err)
	}
	var raw apiIssue
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return "", fmt.Errorf("github: parse create response: %w", err)
	}
	return raw.HTMLURL, nil
}

// UpdateIssue replaces an issue's title and body.
func (c *Client) UpdateIssue(ctx context.Context, ref IssueRef, title, body string) error {
	urlStr := c.buildURL(ref.Repo, "/issues/"+strconv.Itoa(ref.Number), nil)
	_, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, map[string]any{
		"title": title,
		"body":  body,
	})
	if err != nil {
		return fmt.Errorf("github: update issue %s: %w", ref.Key(), err)
	}
	return nil
}

// CreatePullRequest opens a pull request and returns its web URL.
func (c *Client) CreatePullRequest(ctx context.Context, repo RepoRef, pr PullRequest) (string, error) {
	if pr.Head == "" {
		return "", fmt.Errorf("github: pull request needs a head branch: %w", apperr.ErrInvalidReference)
	}
	base := pr.Base
	if base == "" {
		base = "main"
	}
	respBody, _, err := c.doRequest(ctx, http.MethodPost, c.buildURL(repo, "/pulls", nil), map[string]any{
		"title": pr.Title,
		"body":  pr.Body,
		"head":  pr.Head,
		"base":  base,
		"draft": pr.Draft,
	})
	if err != nil {
		return "", fmt.Errorf("github: create pull request in %s: %w", repo.Display(), err)
	}
	var created struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("github: parse pull request response: %w", err)
	}
	return created.HTMLURL, nil
}

// CheckAuth verifies the token can read repo.
func (c *Client) CheckAuth(ctx context.Context, repo RepoRef) AuthStatus {
	if c.Token == "" {
		return AuthStatus{Status: AuthWarn, Reason: "Missing GitHub token. Set WORKBENCH_GITHUB_TOKEN or GITHUB_TOKEN."}
	}
	if repo.IsZero() {
		return AuthStatus{Status: AuthOK}
	}
	_, _, err := c.doRequest(ctx, http.MethodGet, c.buildURL(repo, "", nil), nil)
	if err == nil {
		return AuthStatus{Status: AuthOK}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return AuthStatus{Status: AuthWarn, Reason: "GitHub rejected the token (401)."}
		case http.StatusForbidden, http.StatusNotFound:
			return AuthStatus{Status: AuthWarn, Reason: fmt.Sprintf("Token cannot read %s (%d).", repo.Display(), apiErr.Status)}
		}
	}
	return AuthStatus{Status: AuthWarn, Reason: err.Error()}
}

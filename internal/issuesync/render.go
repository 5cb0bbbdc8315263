package issuesync

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
)

// RenderIssueBody builds the issue (or pull request) body for an item from its
// Summary and Acceptance criteria sections and its related links. Path links
// point at the files on baseBranch.
func RenderIssueBody(doc *models.Document, repo github.RepoRef, baseBranch string) string {
	var lines []string
	for _, heading := range []string{document.SectionSummary, document.SectionAcceptance} {
		text := document.ExtractSection(doc.Body, heading)
		if text == "" {
			continue
		}
		lines = append(lines, "## "+heading, text, "")
	}

	var related []string
	addLinks := func(label string, entries []string, toRepo bool) {
		var rendered []string
		for _, entry := range entries {
			if strings.TrimSpace(entry) == "" {
				continue
			}
			if toRepo {
				entry = repoMarkdownLink(repo, baseBranch, entry)
			}
			rendered = append(rendered, "  - "+entry)
		}
		if len(rendered) == 0 {
			return
		}
		related = append(related, "- "+label+":")
		related = append(related, rendered...)
	}
	addLinks("Specs", doc.Related.Specs, true)
	addLinks("ADRs", doc.Related.ADRs, true)
	addLinks("Files", doc.Related.Files, true)
	addLinks("PRs", doc.Related.PRs, false)
	if len(related) > 0 {
		lines = append(lines, "## Related")
		lines = append(lines, related...)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
}

func repoMarkdownLink(repo github.RepoRef, baseBranch, link string) string {
	s := strings.TrimSpace(link)
	if len(s) > 1 && s[0] == '<' && s[len(s)-1] == '>' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "[") && strings.Contains(s, "](") && strings.HasSuffix(s, ")") {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "[" + linkLabel(s) + "](" + s + ")"
	}
	p := strings.TrimLeft(strings.ReplaceAll(s, `\`, "/"), "/")
	if p == "" {
		return s
	}
	return "[" + linkLabel(p) + "](" + repo.BlobURL(baseBranch, p) + ")"
}

// linkLabel is the file name without extension of a path or URL.
func linkLabel(value string) string {
	p := value
	if u, err := url.Parse(value); err == nil && u.IsAbs() {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return value
	}
	if stem := strings.TrimSuffix(base, path.Ext(base)); stem != "" {
		return stem
	}
	return base
}

// NormalizeIssueBody turns CRLF into LF and expands literal "\n" sequences in
// bodies that contain no real line breaks.
func NormalizeIssueBody(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	if !strings.Contains(s, "\n") && strings.Contains(s, `\n`) {
		s = strings.ReplaceAll(s, `\r\n`, "\n")
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	return s
}

// IssueSummary is the Summary section written for an imported or pulled
// issue.
func IssueSummary(issue *Issue) string {
	var lines []string
	if issue.URL != "" {
		lines = append(lines, "Imported from GitHub issue: "+issue.URL)
	}
	if strings.TrimSpace(issue.Body) != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, NormalizeIssueBody(issue.Body))
	}
	return strings.Join(lines, "\n")
}

// ApplyIssue pulls the issue's content into doc: title, labels as tags, issue
// and pull request links, title heading and Summary section.
func ApplyIssue(doc *models.Document, issue *Issue, syncedAt time.Time) {
	doc.Title = issue.Title
	doc.GithubSynced = document.FormatSynced(syncedAt)
	if len(issue.Labels) > 0 {
		doc.Tags = append([]string{}, issue.Labels...)
	}

	ensure(&doc.Related.Issues)
	linkIssue(&doc.Related.Issues, issue)
	ensure(&doc.Related.PRs)
	for _, pr := range issue.PullRequests {
		links.AddUnique(&doc.Related.PRs, pr)
	}
	ensure(&doc.Related.Branches)

	body := document.ReplaceTitleHeading(doc.Body, doc.ID, issue.Title)
	doc.Body = document.ReplaceSection(body, document.SectionSummary, IssueSummary(issue))
}

// linkIssue rewrites entries naming the same issue as issue to its URL, or
// appends the URL when none does.
func linkIssue(list *[]string, issue *Issue) {
	if strings.TrimSpace(issue.URL) == "" {
		return
	}
	key := issue.Ref().Key()
	out := (*list)[:0]
	found := false
	for _, entry := range *list {
		if ref, err := github.ParseIssueRef(entry, issue.Repo); err == nil && strings.EqualFold(ref.Key(), key) {
			if found {
				continue
			}
			entry, found = issue.URL, true
		}
		out = append(out, entry)
	}
	*list = out
	if !found {
		links.AddUnique(list, issue.URL)
	}
}

func ensure(list *[]string) {
	if *list == nil {
		*list = []string{}
	}
}

// IssueType derives a work item type from labels: anything mentioning "bug"
// is a bug, "spike" a spike, everything else a task.
func IssueType(issue *Issue, override string) string {
	if override != "" {
		return override
	}
	has := func(token string) bool {
		for _, l := range issue.Labels {
			if strings.Contains(strings.ToLower(l), token) {
				return true
			}
		}
		return false
	}
	switch {
	case has(models.TypeBug):
		return models.TypeBug
	case has(models.TypeSpike):
		return models.TypeSpike
	}
	return models.TypeTask
}

// IssueStatus maps the issue state: closed issues are done, open ones ready.
func IssueStatus(issue *Issue, override string) string {
	if override != "" {
		return override
	}
	if strings.EqualFold(issue.State, "closed") {
		return models.StatusDone
	}
	return models.StatusReady
}

// localStale reports whether the item lags behind the issue: titles differ,
// or the Summary does not contain the issue body.
func localStale(doc *models.Document, issue *Issue) bool {
	if doc.Title != issue.Title {
		return true
	}
	body := strings.TrimSpace(NormalizeIssueBody(issue.Body))
	if body == "" {
		return false
	}
	summary := document.ExtractSection(doc.Body, document.SectionSummary)
	return !strings.Contains(summary, body)
}

// remoteStale reports whether the issue lags behind the item.
func remoteStale(doc *models.Document, issue *Issue, desiredBody string) bool {
	return issue.Title != doc.Title || issue.Body != desiredBody
}

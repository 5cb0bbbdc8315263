package github

import (
	"errors"
	"testing"

	"github.com/starford/workbench/internal/apperr"
)

func TestParseIssueRef(t *testing.T) {
	def := RepoRef{Host: DefaultHost, Owner: "acme", Repo: "widgets"}
	tests := []struct {
		in      string
		wantKey string
	}{
		{"https://github.com/acme/widgets/issues/42", "acme/widgets#42"},
		{"https://ghe.corp/team/tool/issues/7#issuecomment-1", "ghe.corp/team/tool#7"},
		{"other/repo#3", "other/repo#3"},
		{"#42", "acme/widgets#42"},
		{" 42 ", "acme/widgets#42"},
	}
	for _, tt := range tests {
		ref, err := ParseIssueRef(tt.in, def)
		if err != nil {
			t.Errorf("ParseIssueRef(%q): %v", tt.in, err)
			continue
		}
		if got := ref.Key(); got != tt.wantKey {
			t.Errorf("ParseIssueRef(%q).Key() = %q, want %q", tt.in, got, tt.wantKey)
		}
	}
}

func TestParseIssueRef_Invalid(t *testing.T) {
	def := RepoRef{Host: DefaultHost, Owner: "acme", Repo: "widgets"}
	for _, in := range []string{"", "abc", "https://github.com/acme/widgets/pull/4", "a/b/c#1", "#0"} {
		if _, err := ParseIssueRef(in, def); !errors.Is(err, apperr.ErrInvalidReference) {
			t.Errorf("ParseIssueRef(%q) err = %v, want ErrInvalidReference", in, err)
		}
	}
	if _, err := ParseIssueRef("#5", RepoRef{}); !errors.Is(err, apperr.ErrInvalidReference) {
		t.Errorf("missing default repo: err = %v", err)
	}
}

func TestIssueRefURL(t *testing.T) {
	ref := IssueRef{Repo: RepoRef{Owner: "acme", Repo: "widgets"}, Number: 42}
	if got := ref.URL(); got != "https://github.com/acme/widgets/issues/42" {
		t.Errorf("URL = %q", got)
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in   string
		want RepoRef
		ok   bool
	}{
		{"git@github.com:acme/widgets.git", RepoRef{Host: "github.com", Owner: "acme", Repo: "widgets"}, true},
		{"https://github.com/acme/widgets", RepoRef{Host: "github.com", Owner: "acme", Repo: "widgets"}, true},
		{"https://user@ghe.corp:8443/team/tool.git/", RepoRef{Host: "ghe.corp", Owner: "team", Repo: "tool"}, true},
		{"git@github.com", RepoRef{}, false},
		{"/local/path", RepoRef{}, false},
		{"https://github.com/acme", RepoRef{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseRepoURL(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRepoURL(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRepoRefDisplay(t *testing.T) {
	if got := (RepoRef{Host: "github.com", Owner: "a", Repo: "b"}).Display(); got != "a/b" {
		t.Errorf("Display = %q", got)
	}
	if got := (RepoRef{Host: "ghe.corp", Owner: "a", Repo: "b"}).Display(); got != "ghe.corp/a/b" {
		t.Errorf("Display = %q", got)
	}
	if got := (RepoRef{Owner: "a", Repo: "b"}).BlobURL("main", "/docs/x.md"); got != "https://github.com/a/b/blob/main/docs/x.md" {
		t.Errorf("BlobURL = %q", got)
	}
}

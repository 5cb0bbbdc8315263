// Package models defines the domain types shared by the workbench engines.
package models

import (
	"strings"
	"time"

	"github.com/starford/workbench/internal/frontmatter"
)

// Work item types.
const (
	TypeTask  = "task"
	TypeBug   = "bug"
	TypeSpike = "spike"
)

// Doc types.
const (
	TypeSpec    = "spec"
	TypeADR     = "adr"
	TypeRunbook = "runbook"
	TypeGuide   = "guide"
	TypeDoc     = "doc"
)

// Work item statuses.
const (
	StatusDraft      = "draft"
	StatusReady      = "ready"
	StatusInProgress = "in-progress"
	StatusBlocked    = "blocked"
	StatusDone       = "done"
	StatusDropped    = "dropped"
	StatusArchived   = "archived"
)

// Doc statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusSuperseded = "superseded"
)

// WorkItemTypes lists the valid work item types.
var WorkItemTypes = []string{TypeTask, TypeBug, TypeSpike}

// DocTypes lists the valid doc types.
var DocTypes = []string{TypeSpec, TypeADR, TypeRunbook, TypeGuide, TypeDoc}

// WorkItemStatuses lists the valid work item statuses.
var WorkItemStatuses = []string{
	StatusDraft, StatusReady, StatusInProgress, StatusBlocked,
	StatusDone, StatusDropped, StatusArchived,
}

// DocStatuses lists the valid doc statuses.
var DocStatuses = []string{StatusDraft, StatusActive, StatusDeprecated, StatusSuperseded, StatusArchived}

// IsTerminal reports whether a work item status is final.
func IsTerminal(status string) bool {
	switch strings.ToLower(status) {
	case StatusDone, StatusDropped, StatusArchived:
		return true
	}
	return false
}

// IsWorkItemType reports whether t names a work item type.
func IsWorkItemType(t string) bool {
	for _, v := range WorkItemTypes {
		if strings.EqualFold(v, t) {
			return true
		}
	}
	return false
}

// Related-list keys as they appear under "related:".
const (
	RelatedSpecs    = "specs"
	RelatedADRs     = "adrs"
	RelatedFiles    = "files"
	RelatedPRs      = "prs"
	RelatedIssues   = "issues"
	RelatedBranches = "branches"
)

// RelatedKeys lists every related-list key in on-disk order.
var RelatedKeys = []string{
	RelatedSpecs, RelatedADRs, RelatedFiles, RelatedPRs, RelatedIssues, RelatedBranches,
}

// IsPathKey reports whether entries of the list are repository paths.
func IsPathKey(key string) bool {
	switch key {
	case RelatedSpecs, RelatedADRs, RelatedFiles:
		return true
	}
	return false
}

// IsRelatedKey reports whether key names a related list.
func IsRelatedKey(key string) bool {
	for _, k := range RelatedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RelatedLinks holds the six related-link lists. A nil slice means the list
// is absent from the header.
type RelatedLinks struct {
	Specs    []string `json:"specs"`
	ADRs     []string `json:"adrs"`
	Files    []string `json:"files"`
	PRs      []string `json:"prs"`
	Issues   []string `json:"issues"`
	Branches []string `json:"branches"`
}

// List returns a pointer to the list stored under key, or nil for an unknown key.
func (r *RelatedLinks) List(key string) *[]string {
	switch key {
	case RelatedSpecs:
		return &r.Specs
	case RelatedADRs:
		return &r.ADRs
	case RelatedFiles:
		return &r.Files
	case RelatedPRs:
		return &r.PRs
	case RelatedIssues:
		return &r.Issues
	case RelatedBranches:
		return &r.Branches
	}
	return nil
}

// Document is the typed view of a work item or doc file.
type Document struct {
	Path         string       `json:"path"`
	ID           string       `json:"id,omitempty"`
	Type         string       `json:"type"`
	Status       string       `json:"status"`
	Title        string       `json:"title"`
	Priority     string       `json:"priority,omitempty"`
	Owner        string       `json:"owner,omitempty"`
	Created      string       `json:"created,omitempty"`
	Updated      string       `json:"updated,omitempty"`
	GithubSynced string       `json:"githubSynced,omitempty"`
	Tags         []string     `json:"tags"`
	Related      RelatedLinks `json:"related"`
	Body         string       `json:"body"`

	// Header is the parsed header the typed fields were read from. It keeps
	// unknown keys and key order for write-back.
	Header *frontmatter.Map `json:"-"`
}

// IsWorkItem reports whether the document is a work item.
func (d *Document) IsWorkItem() bool {
	return IsWorkItemType(d.Type)
}

// IsTerminal reports whether the document's status is final.
func (d *Document) IsTerminal() bool {
	return IsTerminal(d.Status)
}

// FileMeta is the lightweight file listing entry returned by storage.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

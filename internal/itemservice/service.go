// Package itemservice implements repository-level operations on work items
// and docs: listing, lookup, creation, status changes, moves and link
// maintenance.
package itemservice

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-slug"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/frontmatter"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
	"github.com/starford/workbench/internal/storage"
)

// MaxSlugLength caps the slug part of item file names.
const MaxSlugLength = 80

// Config locates items and controls id allocation.
type Config struct {
	ItemsDir     string
	DoneDir      string
	DocsDir      string
	TemplatesDir string
	IDWidth      int
	// Prefixes maps work item types to id prefixes.
	Prefixes map[string]string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service coordinates document parsing with repository storage.
type Service struct {
	store storage.Provider
	cfg   Config
}

// NewService creates a new item service.
func NewService(store storage.Provider, cfg Config) *Service {
	if cfg.IDWidth <= 0 {
		cfg.IDWidth = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.ItemsDir = cleanDir(cfg.ItemsDir)
	cfg.DoneDir = cleanDir(cfg.DoneDir)
	cfg.DocsDir = cleanDir(cfg.DocsDir)
	cfg.TemplatesDir = cleanDir(cfg.TemplatesDir)
	return &Service{store: store, cfg: cfg}
}

func cleanDir(dir string) string {
	dir = strings.Trim(strings.ReplaceAll(dir, `\`, "/"), "/")
	if dir == "" {
		return ""
	}
	return path.Clean(dir)
}

// Store exposes the underlying file store.
func (s *Service) Store() storage.Provider {
	return s.store
}

// Load reads and parses one document. Files without a parseable header
// yield an error wrapping apperr.ErrFormat.
func (s *Service) Load(p string) (*models.Document, error) {
	p = repoPath(p)
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("itemservice: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	return document.Parse(p, data)
}

// Save writes doc back to its path.
func (s *Service) Save(doc *models.Document) error {
	if err := s.store.Write(doc.Path, document.Render(doc)); err != nil {
		return fmt.Errorf("itemservice: save %s: %w", doc.Path, err)
	}
	return nil
}

// ListItems returns the work items in the items directory, and in the done
// directory when includeDone is set, ordered by path. Files with broken
// headers are skipped with a warning.
func (s *Service) ListItems(includeDone bool) ([]*models.Document, error) {
	dirs := []string{s.cfg.ItemsDir}
	if includeDone {
		dirs = append(dirs, s.cfg.DoneDir)
	}
	var out []*models.Document
	for _, dir := range dirs {
		docs, err := s.listDir(dir, false)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// ListDocuments returns every parseable document in the repository.
func (s *Service) ListDocuments() ([]*models.Document, error) {
	return s.listDir("", true)
}

// ListDocs returns the non work item documents under the docs directory.
func (s *Service) ListDocs() ([]*models.Document, error) {
	docs, err := s.listDir(s.cfg.DocsDir, true)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		if d.IsWorkItem() || s.inItemDirs(d.Path) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) inItemDirs(p string) bool {
	dir := path.Dir(p)
	return dir == s.cfg.ItemsDir || dir == s.cfg.DoneDir
}

func (s *Service) listDir(dir string, recursive bool) ([]*models.Document, error) {
	metas, err := s.store.List(dir)
	if err != nil {
		return nil, fmt.Errorf("itemservice: list %s: %w", dir, err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })

	var out []*models.Document
	for _, m := range metas {
		if !document.IsDocumentFile(m.Path) {
			continue
		}
		if !recursive && path.Dir(m.Path) != dir {
			continue
		}
		doc, err := s.Load(m.Path)
		if errors.Is(err, apperr.ErrFormat) {
			s.cfg.Logger.Warn("itemservice: skipping file", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// FindItem locates a work item by id in the items then done directory.
func (s *Service) FindItem(id string) (*models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("itemservice: empty id: %w", apperr.ErrInvalidReference)
	}
	prefix := strings.ToLower(id) + "-"
	for _, dir := range []string{s.cfg.ItemsDir, s.cfg.DoneDir} {
		metas, err := s.store.List(dir)
		if err != nil {
			return nil, fmt.Errorf("itemservice: list %s: %w", dir, err)
		}
		sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
		for _, m := range metas {
			if path.Dir(m.Path) != dir {
				continue
			}
			if strings.HasPrefix(strings.ToLower(path.Base(m.Path)), prefix) {
				return s.Load(m.Path)
			}
		}
	}
	return nil, fmt.Errorf("itemservice: work item %s: %w", id, apperr.ErrNotFound)
}

// Resolve accepts either a repository path or a work item id.
func (s *Service) Resolve(ref string) (*models.Document, error) {
	if p := repoPath(ref); strings.HasSuffix(strings.ToLower(p), ".md") {
		if s.store.Exists(p) {
			return s.Load(p)
		}
		return nil, fmt.Errorf("itemservice: %s: %w", p, apperr.ErrNotFound)
	}
	return s.FindItem(ref)
}

// Prefix returns the id prefix for a work item type.
func (s *Service) Prefix(itemType string) string {
	if p, ok := s.cfg.Prefixes[itemType]; ok && p != "" {
		return p
	}
	return strings.ToUpper(itemType)
}

// AllocateID returns the next free id for itemType: one past the highest
// sequence found in the items and done directories.
func (s *Service) AllocateID(itemType string) (string, error) {
	prefix := s.Prefix(itemType)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)`)
	highest := 0
	for _, dir := range []string{s.cfg.ItemsDir, s.cfg.DoneDir} {
		metas, err := s.store.List(dir)
		if err != nil {
			return "", fmt.Errorf("itemservice: list %s: %w", dir, err)
		}
		for _, m := range metas {
			if path.Dir(m.Path) != dir {
				continue
			}
			match := pattern.FindStringSubmatch(strings.TrimSuffix(path.Base(m.Path), ".md"))
			if match == nil {
				continue
			}
			if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return fmt.Sprintf("%s-%0*d", prefix, s.cfg.IDWidth, highest+1), nil
}

var (
	slugDrop   = regexp.MustCompile(`[^a-z0-9\-\s]`)
	slugSpace  = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slug turns a title into the file name part after the id.
func Slug(title string) string {
	s, err := slug.Normalize(title)
	if err != nil || strings.Trim(s, "-") == "" {
		s = strings.ToLower(title)
		s = slugDrop.ReplaceAllString(s, "")
		s = slugSpace.ReplaceAllString(s, "-")
	}
	s = slugDashes.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.Trim(s[:MaxSlugLength], "-")
	}
	return s
}

// NewItem describes a work item to create.
type NewItem struct {
	Type     string
	Title    string
	Status   string
	Priority string
	Owner    string
}

// CreateItem allocates an id and writes a new work item from the type's
// template, or from the built-in one when the repository has none.
func (s *Service) CreateItem(req NewItem) (*models.Document, error) {
	if !models.IsWorkItemType(req.Type) {
		return nil, fmt.Errorf("itemservice: unknown work item type %q: %w", req.Type, apperr.ErrInvalidReference)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("itemservice: title is required: %w", apperr.ErrInvalidReference)
	}
	tmpl, err := s.template(req.Type)
	if err != nil {
		return nil, err
	}
	id, err := s.AllocateID(req.Type)
	if err != nil {
		return nil, err
	}
	created := s.cfg.Now().UTC().Format(document.DateLayout)

	h := tmpl.Header
	h.Set("id", frontmatter.String(id))
	h.Set("type", frontmatter.String(req.Type))
	h.Set("created", frontmatter.String(created))
	h.Set("title", frontmatter.String(req.Title))
	h.Set("updated", frontmatter.Null())
	if req.Status != "" {
		h.Set("status", frontmatter.String(req.Status))
	}
	if req.Priority != "" {
		h.Set("priority", frontmatter.String(req.Priority))
	}
	if req.Owner != "" {
		h.Set("owner", frontmatter.String(req.Owner))
	}

	body := tmpl.Body
	for _, placeholder := range []string{"TASK-0000", "BUG-0000", "SPIKE-0000"} {
		body = strings.ReplaceAll(body, placeholder, id)
	}
	body = strings.ReplaceAll(body, "<title>", req.Title)
	body = strings.ReplaceAll(body, "0000-00-00", created)

	p := path.Join(s.cfg.ItemsDir, id+"-"+Slug(req.Title)+".md")
	if s.store.Exists(p) {
		return nil, fmt.Errorf("itemservice: %s: %w", p, apperr.ErrAlreadyExists)
	}
	doc := document.FromHeader(p, h, body)
	links.NormalizeAll(doc)
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	s.cfg.Logger.Info("itemservice: item created", slog.String("id", id), slog.String("path", p))
	return doc, nil
}

const defaultTemplate = `---
id: TASK-0000
type: task
status: draft
created: 0000-00-00
title: <title>
tags: []
related:
  specs: []
  adrs: []
  files: []
  prs: []
  issues: []
  branches: []
---

# TASK-0000 - <title>

## Summary

## Acceptance criteria

## Notes
`

func (s *Service) template(itemType string) (*frontmatter.Document, error) {
	text := defaultTemplate
	if s.cfg.TemplatesDir != "" {
		p := path.Join(s.cfg.TemplatesDir, "work-item."+itemType+".md")
		if s.store.Exists(p) {
			data, err := s.store.Read(p)
			if err != nil {
				return nil, err
			}
			text = string(data)
		}
	}
	tmpl, err := frontmatter.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("itemservice: template for %s: %w", itemType, err)
	}
	return tmpl, nil
}

// CreateFromIssue creates a work item carrying the issue's title, labels,
// links and body.
func (s *Service) CreateFromIssue(issue *issuesync.Issue, itemType, status string) (*models.Document, error) {
	doc, err := s.CreateItem(NewItem{Type: itemType, Title: issue.Title, Status: status})
	if err != nil {
		return nil, err
	}
	issuesync.ApplyIssue(doc, issue, s.cfg.Now())
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateStatus sets the status and updated date, appending note to the Notes
// section when given.
func (s *Service) UpdateStatus(ref, status, note string) (*models.Document, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("itemservice: unknown status %q: %w", status, apperr.ErrInvalidReference)
	}
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	doc.Status = status
	doc.Updated = s.cfg.Now().UTC().Format(document.DateLayout)
	if strings.TrimSpace(note) != "" {
		doc.Body = document.AppendNote(doc.Body, strings.TrimSpace(note))
	}
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func validStatus(status string) bool {
	for _, st := range models.WorkItemStatuses {
		if st == status {
			return true
		}
	}
	return false
}

// UpdateLink adds or removes one related link on the document at ref (a path
// or an item id). The file is written only when the list changed.
func (s *Service) UpdateLink(ref, key, link string, remove bool) (*models.Document, bool, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, false, err
	}
	var changed bool
	if remove {
		changed, err = links.RemoveLink(doc, key, link)
	} else {
		changed, err = links.AddLink(doc, key, link)
	}
	if err != nil || !changed {
		return doc, false, err
	}
	return doc, true, s.Save(doc)
}

// NormalizeItems normalizes tags and related lists of every work item.
// Changes carry before and after content; nothing is written on dry runs.
func (s *Service) NormalizeItems(includeDone, dryRun bool) ([]links.FileChange, error) {
	docs, err := s.ListItems(includeDone)
	if err != nil {
		return nil, err
	}
	return s.normalize(docs, true, dryRun)
}

// NormalizeDocs normalizes the related lists of every doc.
func (s *Service) NormalizeDocs(dryRun bool) ([]links.FileChange, error) {
	docs, err := s.ListDocs()
	if err != nil {
		return nil, err
	}
	return s.normalize(docs, false, dryRun)
}

func (s *Service) normalize(docs []*models.Document, tags, dryRun bool) ([]links.FileChange, error) {
	changes := []links.FileChange{}
	for _, doc := range docs {
		before := string(document.Render(doc))
		changed := links.NormalizeAll(doc)
		if tags && document.NormalizeTags(doc) {
			changed = true
		}
		if !changed {
			continue
		}
		after := string(document.Render(doc))
		changes = append(changes, links.FileChange{Path: doc.Path, Before: before, After: after})
		if dryRun {
			continue
		}
		if err := s.Save(doc); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// repoPath turns "/a/b.md", "./a/b.md" or `a\b.md` into "a/b.md".
func repoPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

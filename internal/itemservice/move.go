package itemservice

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
	"github.com/starford/workbench/internal/storage"
)

// MoveResult describes a document move and the files rewritten for it.
type MoveResult struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	Changes []links.FileChange `json:"changes"`
	DryRun  bool               `json:"dryRun"`
}

// overlay buffers writes on top of a store and presents the moved file under
// its new path, so link rewriting can run before anything touches disk.
type overlay struct {
	store    storage.Provider
	from, to string
	pending  map[string][]byte
	original map[string]string
}

func newOverlay(store storage.Provider, from, to string) *overlay {
	return &overlay{store: store, from: from, to: to, pending: map[string][]byte{}, original: map[string]string{}}
}

func (o *overlay) List(dir string) ([]models.FileMeta, error) {
	metas, err := o.store.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileMeta, 0, len(metas)+1)
	for _, m := range metas {
		if m.Path == o.from {
			continue
		}
		out = append(out, m)
	}
	if dir == "" || strings.HasPrefix(o.to, strings.TrimSuffix(dir, "/")+"/") {
		out = append(out, models.FileMeta{Path: o.to})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (o *overlay) Read(p string) ([]byte, error) {
	if data, ok := o.pending[p]; ok {
		return data, nil
	}
	src := p
	if p == o.to {
		src = o.from
	}
	data, err := o.store.Read(src)
	if err != nil {
		return nil, err
	}
	if _, seen := o.original[p]; !seen {
		o.original[p] = string(data)
	}
	return data, nil
}

func (o *overlay) Write(p string, content []byte) error {
	if _, seen := o.original[p]; !seen {
		if _, err := o.Read(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	o.pending[p] = content
	return nil
}

// changes lists every buffered file whose content differs from disk.
func (o *overlay) changes() []links.FileChange {
	out := []links.FileChange{}
	for p, data := range o.pending {
		if o.original[p] == string(data) {
			continue
		}
		out = append(out, links.FileChange{Path: p, Before: o.original[p], After: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// flush moves the file and writes the buffered content.
func (o *overlay) flush() error {
	if err := o.store.Move(o.from, o.to); err != nil {
		return err
	}
	for _, c := range o.changes() {
		if err := o.store.Write(c.Path, []byte(c.After)); err != nil {
			return fmt.Errorf("itemservice: write %s: %w", c.Path, err)
		}
	}
	return nil
}

// MoveDocument moves a file and rewrites every markdown link and related-list
// entry in the repository that pointed at it. With dryRun nothing is written
// and the result lists what would change.
func (s *Service) MoveDocument(from, to string, dryRun bool) (*MoveResult, error) {
	from, to = repoPath(from), repoPath(to)
	if from == "" || to == "" {
		return nil, fmt.Errorf("itemservice: move needs both paths: %w", apperr.ErrInvalidReference)
	}
	res := &MoveResult{From: from, To: to, Changes: []links.FileChange{}, DryRun: dryRun}
	if from == to {
		return res, nil
	}
	if !s.store.Exists(from) {
		return nil, fmt.Errorf("itemservice: %s: %w", from, apperr.ErrNotFound)
	}
	if s.store.Exists(to) {
		return nil, fmt.Errorf("itemservice: %s: %w", to, apperr.ErrAlreadyExists)
	}

	ov := newOverlay(s.store, from, to)
	if _, err := links.PropagateRename(ov, from, to, links.RenameOptions{}); err != nil {
		return nil, err
	}
	if err := s.retargetRelated(ov, from, to); err != nil {
		return nil, err
	}
	res.Changes = ov.changes()
	if dryRun {
		return res, nil
	}
	if err := ov.flush(); err != nil {
		return nil, err
	}
	s.cfg.Logger.Info("itemservice: moved",
		slog.String("from", from), slog.String("to", to), slog.Int("files_changed", len(res.Changes)))
	return res, nil
}

// retargetRelated rewrites specs, adrs and files entries naming the old path.
func (s *Service) retargetRelated(ov *overlay, from, to string) error {
	metas, err := ov.List("")
	if err != nil {
		return err
	}
	replacements := map[string]string{"/" + from: "/" + to}
	for _, m := range metas {
		if !document.IsDocumentFile(m.Path) {
			continue
		}
		data, err := ov.Read(m.Path)
		if err != nil {
			return err
		}
		doc, err := document.Parse(m.Path, data)
		if err != nil {
			continue
		}
		if links.ReplaceLinks(doc, replacements) {
			if err := ov.Write(m.Path, document.Render(doc)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Move relocates a work item. dest is a repository path; a destination
// without a .md suffix is treated as a directory and keeps the file name.
func (s *Service) Move(ref, dest string, dryRun bool) (*MoveResult, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	to := repoPath(dest)
	if !strings.HasSuffix(strings.ToLower(to), ".md") {
		to = path.Join(to, path.Base(doc.Path))
	}
	return s.MoveDocument(doc.Path, to, dryRun)
}

// Close marks a work item done. With move set the file is moved to the done
// directory; a file already there stays put.
func (s *Service) Close(ref string, move bool) (*models.Document, *MoveResult, error) {
	doc, err := s.UpdateStatus(ref, models.StatusDone, "")
	if err != nil {
		return nil, nil, err
	}
	if !move || s.cfg.DoneDir == "" || path.Dir(doc.Path) == s.cfg.DoneDir {
		return doc, nil, nil
	}
	res, err := s.MoveDocument(doc.Path, path.Join(s.cfg.DoneDir, path.Base(doc.Path)), false)
	if err != nil {
		return doc, nil, err
	}
	doc.Path = res.To
	return doc, res, nil
}

// Rename changes a work item's title and renames its file to match.
func (s *Service) Rename(ref, title string, dryRun bool) (*models.Document, *MoveResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, fmt.Errorf("itemservice: title is required: %w", apperr.ErrInvalidReference)
	}
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	if doc.ID == "" {
		return nil, nil, fmt.Errorf("itemservice: %s has no id: %w", doc.Path, apperr.ErrInvalidReference)
	}
	doc.Title = title
	doc.Body = document.ReplaceTitleHeading(doc.Body, doc.ID, title)
	to := path.Join(path.Dir(doc.Path), doc.ID+"-"+Slug(title)+".md")
	if dryRun {
		res, err := s.MoveDocument(doc.Path, to, true)
		return doc, res, err
	}
	if err := s.Save(doc); err != nil {
		return nil, nil, err
	}
	res, err := s.MoveDocument(doc.Path, to, false)
	if err != nil {
		return doc, nil, err
	}
	doc.Path = res.To
	return doc, res, nil
}

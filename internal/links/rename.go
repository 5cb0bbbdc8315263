package links

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/workbench/internal/models"
)

// Store is the file access PropagateRename needs. Paths are relative to the
// repository root.
type Store interface {
	List(dir string) ([]models.FileMeta, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// RenameOptions controls PropagateRename.
type RenameOptions struct {
	DryRun bool
}

// FileChange is one rewritten file.
type FileChange struct {
	Path   string `json:"path"`
	Before string `json:"-"`
	After  string `json:"-"`
}

// RenameResult summarizes a propagation pass.
type RenameResult struct {
	FilesChanged int          `json:"filesChanged"`
	Changes      []FileChange `json:"changes"`
	DryRun       bool         `json:"dryRun"`
}

var markdownLink = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)

// PropagateRename rewrites every markdown link in the repository that points
// at oldPath so it points at newPath. Root-relative, file-relative and
// repo-relative link shapes are each kept in their own shape.
func PropagateRename(store Store, oldPath, newPath string, opts RenameOptions) (*RenameResult, error) {
	oldRel := repoRelative(oldPath)
	newRel := repoRelative(newPath)
	if oldRel == "" || newRel == "" {
		return nil, fmt.Errorf("links: rename needs both paths")
	}

	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("links: list files: %w", err)
	}

	res := &RenameResult{DryRun: opts.DryRun}
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("links: read %s: %w", m.Path, err)
		}
		before := string(data)
		after, changed := RewriteLinks(before, m.Path, oldRel, newRel)
		if !changed {
			continue
		}
		if !opts.DryRun {
			if err := store.Write(m.Path, []byte(after)); err != nil {
				return nil, fmt.Errorf("links: write %s: %w", m.Path, err)
			}
		}
		res.FilesChanged++
		res.Changes = append(res.Changes, FileChange{Path: m.Path, Before: before, After: after})
	}
	return res, nil
}

// RewriteLinks rewrites links in content, a file located at filePath, that
// resolve to oldPath so they resolve to newPath. Anchor and query suffixes are
// kept; fragment-only, http(s) and mailto targets are never touched.
func RewriteLinks(content, filePath, oldPath, newPath string) (string, bool) {
	oldRel, newRel := repoRelative(oldPath), repoRelative(newPath)
	dir := path.Dir(repoRelative(filePath))
	if dir == "." {
		dir = ""
	}

	matches := markdownLink.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, false
	}

	var b strings.Builder
	last := 0
	changed := false
	for _, loc := range matches {
		start, end := loc[2], loc[3]
		target := content[start:end]
		replacement, ok := retarget(target, dir, oldRel, newRel)
		if !ok {
			continue
		}
		b.WriteString(content[last:start])
		b.WriteString(replacement)
		last = end
		changed = true
	}
	if !changed {
		return content, false
	}
	b.WriteString(content[last:])
	return b.String(), true
}

// Targets returns the repository paths, with a leading "/", that the
// markdown links in content resolve to. content is the file at filePath.
// External and fragment-only targets are skipped; each path appears once.
func Targets(content, filePath string) []string {
	dir := path.Dir(repoRelative(filePath))
	if dir == "." {
		dir = ""
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range markdownLink.FindAllStringSubmatch(content, -1) {
		t := strings.TrimSpace(m[1])
		if t == "" || strings.HasPrefix(t, "#") || IsExternal(t) {
			continue
		}
		if i := strings.IndexAny(t, "#?"); i >= 0 {
			t = t[:i]
		}
		if t == "" {
			continue
		}
		p := t
		if !strings.HasPrefix(t, "/") {
			p = path.Join(dir, t)
		}
		p = repoRelative(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, "/"+p)
	}
	return out
}

func retarget(target, dir, oldRel, newRel string) (string, bool) {
	t := strings.TrimSpace(target)
	lower := strings.ToLower(t)
	if t == "" || strings.HasPrefix(t, "#") ||
		strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") {
		return "", false
	}

	p, suffix := t, ""
	if i := strings.IndexAny(t, "#?"); i >= 0 {
		p, suffix = t[:i], t[i:]
	}
	if p == "" {
		return "", false
	}

	if strings.HasPrefix(p, "/") {
		if path.Clean(p) == "/"+oldRel {
			return "/" + newRel + suffix, true
		}
		return "", false
	}
	if path.Join(dir, p) == oldRel {
		return relativePath(dir, newRel) + suffix, true
	}
	if path.Clean(p) == oldRel {
		return newRel + suffix, true
	}
	return "", false
}

// repoRelative turns "/a/b.md", "./a/b.md" or "a\b.md" into "a/b.md".
func repoRelative(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	return p
}

// relativePath returns the slash path from directory dir to target, both
// repo-relative.
func relativePath(dir, target string) string {
	if dir == "" {
		return target
	}
	from := strings.Split(dir, "/")
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(from)-i+len(to)-i)
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

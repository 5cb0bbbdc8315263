// Package links maintains related-link lists and rewrites markdown links when
// files move.
package links

import (
	"fmt"
	"strings"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/models"
)

// Normalize returns the canonical form of a related-list entry. Every entry is
// trimmed and loses angle-bracket wrapping; entries of path lists also get
// forward slashes, no leading "./" and a leading "/".
func Normalize(key, link string) string {
	s := strings.TrimSpace(link)
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" || !models.IsPathKey(key) || IsExternal(s) || isMarkdownLink(s) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, "/")
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	if s == "" || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "#") {
		return s
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

// IsExternal reports whether s is a URL rather than a repository path.
func IsExternal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "://") || strings.HasPrefix(lower, "mailto:")
}

func isMarkdownLink(s string) bool {
	return strings.HasPrefix(s, "[") && strings.Contains(s, "](") && strings.HasSuffix(s, ")")
}

func relatedList(doc *models.Document, key string) (*[]string, error) {
	list := doc.Related.List(key)
	if list == nil {
		return nil, fmt.Errorf("links: unknown related list %q: %w", key, apperr.ErrInvalidReference)
	}
	return list, nil
}

// AddLink adds link to the list under key. An equivalent entry written
// differently is rewritten in place instead of duplicated.
func AddLink(doc *models.Document, key, link string) (bool, error) {
	list, err := relatedList(doc, key)
	if err != nil {
		return false, err
	}
	norm := Normalize(key, link)
	if norm == "" {
		return false, nil
	}
	if *list == nil {
		*list = []string{}
	}
	for i, entry := range *list {
		if !strings.EqualFold(Normalize(key, entry), norm) {
			continue
		}
		if strings.EqualFold(entry, norm) {
			return false, nil
		}
		(*list)[i] = norm
		return true, nil
	}
	*list = append(*list, norm)
	return true, nil
}

// RemoveLink removes every entry equivalent to link.
func RemoveLink(doc *models.Document, key, link string) (bool, error) {
	list, err := relatedList(doc, key)
	if err != nil {
		return false, err
	}
	norm := Normalize(key, link)
	if norm == "" || len(*list) == 0 {
		return false, nil
	}
	out := (*list)[:0:0]
	for _, entry := range *list {
		if strings.EqualFold(Normalize(key, entry), norm) {
			continue
		}
		out = append(out, entry)
	}
	if len(out) == len(*list) {
		return false, nil
	}
	*list = out
	return true, nil
}

// NormalizeAll normalizes all six lists: entries are canonicalized, empties
// dropped and case-insensitive duplicates removed keeping first-seen order.
// Missing lists are created empty.
func NormalizeAll(doc *models.Document) bool {
	changed := false
	for _, key := range models.RelatedKeys {
		list := doc.Related.List(key)
		if *list == nil {
			*list = []string{}
			changed = true
			continue
		}
		normalized := normalizeList(key, *list)
		if !equal(normalized, *list) {
			*list = normalized
			changed = true
		}
	}
	return changed
}

func normalizeList(key string, entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		norm := Normalize(key, entry)
		if norm == "" {
			continue
		}
		fold := strings.ToLower(norm)
		if _, ok := seen[fold]; ok {
			continue
		}
		seen[fold] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// ReplaceLinks retargets specs, adrs and files entries after documents moved.
// replacements maps old canonical paths to new ones. An entry whose
// replacement is already listed is dropped.
func ReplaceLinks(doc *models.Document, replacements map[string]string) bool {
	if len(replacements) == 0 {
		return false
	}
	folded := make(map[string]string, len(replacements))
	for from, to := range replacements {
		folded[strings.ToLower(Normalize(models.RelatedFiles, from))] = to
	}

	changed := false
	for _, key := range []string{models.RelatedSpecs, models.RelatedADRs, models.RelatedFiles} {
		list := doc.Related.List(key)
		for i := len(*list) - 1; i >= 0; i-- {
			entry := (*list)[i]
			to, ok := folded[strings.ToLower(Normalize(key, entry))]
			if !ok {
				continue
			}
			target := Normalize(key, to)
			if contains(key, *list, target) {
				*list = append((*list)[:i], (*list)[i+1:]...)
			} else {
				(*list)[i] = target
			}
			changed = true
		}
	}
	return changed
}

// AddUnique appends link verbatim unless an entry equal to it ignoring case
// exists.
func AddUnique(list *[]string, link string) bool {
	if strings.TrimSpace(link) == "" {
		return false
	}
	for _, entry := range *list {
		if strings.EqualFold(entry, link) {
			return false
		}
	}
	*list = append(*list, link)
	return true
}

func contains(key string, list []string, norm string) bool {
	for _, entry := range list {
		if strings.EqualFold(Normalize(key, entry), norm) {
			return true
		}
	}
	return false
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

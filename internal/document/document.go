// Package document maps parsed header blocks onto models.Document and back.
package document

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/frontmatter"
	"github.com/starford/workbench/internal/models"
)

// SyncedLayout is the timestamp layout of the githubSynced field.
const SyncedLayout = "2006-01-02T15:04:05Z"

// DateLayout is the layout of the created and updated fields.
const DateLayout = "2006-01-02"

// FormatSynced renders t as a githubSynced value (UTC, second precision).
func FormatSynced(t time.Time) string {
	return t.UTC().Format(SyncedLayout)
}

// Load reads and parses the file at p. It returns (nil, nil) when the file has
// no parseable header; callers decide whether that matters.
func Load(p string) (*models.Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", p, err)
	}
	doc, err := Parse(filepath.ToSlash(p), data)
	if errors.Is(err, apperr.ErrFormat) {
		return nil, nil
	}
	return doc, err
}

// Parse builds a document from file content. Header problems are returned as
// *frontmatter.FormatError.
func Parse(p string, data []byte) (*models.Document, error) {
	fm, err := frontmatter.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", p, err)
	}
	return FromHeader(p, fm.Header, fm.Body), nil
}

// FromHeader reads the typed fields out of header.
func FromHeader(p string, header *frontmatter.Map, body string) *models.Document {
	if header == nil {
		header = frontmatter.NewMap()
	}
	doc := &models.Document{
		Path:         p,
		ID:           header.GetString("id"),
		Type:         header.GetString("type"),
		Status:       header.GetString("status"),
		Title:        header.GetString("title"),
		Priority:     header.GetString("priority"),
		Owner:        header.GetString("owner"),
		Created:      header.GetString("created"),
		Updated:      header.GetString("updated"),
		GithubSynced: header.GetString("githubSynced"),
		Body:         body,
		Header:       header,
	}
	if doc.Title == "" {
		doc.Title = TitleFromPath(p, doc.ID)
	}
	if tags, ok := header.Get("tags"); ok {
		doc.Tags = tags.StringList()
	}
	if related, ok := header.GetMap("related"); ok {
		for _, key := range models.RelatedKeys {
			if v, ok := related.Get(key); ok {
				*doc.Related.List(key) = v.StringList()
			}
		}
	}
	return doc
}

// ToHeader writes the typed fields into a copy of the retained header. Unknown
// keys and key order are preserved; new keys are appended.
func ToHeader(doc *models.Document) *frontmatter.Map {
	h := doc.Header.Clone()

	setRequired(h, "id", doc.ID)
	setRequired(h, "type", doc.Type)
	setRequired(h, "status", doc.Status)
	if h.Has("title") || doc.Title != TitleFromPath(doc.Path, doc.ID) {
		setRequired(h, "title", doc.Title)
	}
	setOptional(h, "priority", doc.Priority)
	setOptional(h, "owner", doc.Owner)
	setRequired(h, "created", doc.Created)
	setOptional(h, "updated", doc.Updated)
	setOptional(h, "githubSynced", doc.GithubSynced)

	if doc.Tags != nil || h.Has("tags") {
		h.Set("tags", frontmatter.Strings(doc.Tags))
	}

	related, ok := h.GetMap("related")
	if !ok {
		related = frontmatter.NewMap()
	}
	for _, key := range models.RelatedKeys {
		if list := *doc.Related.List(key); list != nil {
			related.Set(key, frontmatter.Strings(list))
		}
	}
	if related.Len() > 0 || h.Has("related") {
		h.Set("related", frontmatter.MapValue(related))
	}
	return h
}

// Render returns the file content for doc.
func Render(doc *models.Document) []byte {
	return []byte(frontmatter.Serialize(ToHeader(doc), doc.Body))
}

func setRequired(h *frontmatter.Map, key, value string) {
	if value == "" {
		return
	}
	h.Set(key, frontmatter.String(value))
}

func setOptional(h *frontmatter.Map, key, value string) {
	if value != "" {
		h.Set(key, frontmatter.String(value))
		return
	}
	if v, ok := h.Get(key); ok && v.Text() != "" {
		h.Set(key, frontmatter.Null())
	}
}

// TitleFromPath derives a title from a file name: the part after "<id>-" with
// dashes turned into spaces.
func TitleFromPath(p, id string) string {
	name := strings.TrimSuffix(path.Base(filepath.ToSlash(p)), path.Ext(p))
	if id != "" && len(name) > len(id) && strings.EqualFold(name[:len(id)+1], id+"-") {
		name = name[len(id)+1:]
	}
	return strings.ReplaceAll(name, "-", " ")
}

// SlugFromPath returns the file name part after "<id>-".
func SlugFromPath(p, id string) string {
	name := strings.TrimSuffix(path.Base(filepath.ToSlash(p)), path.Ext(p))
	if id != "" && len(name) > len(id) && strings.EqualFold(name[:len(id)+1], id+"-") {
		return name[len(id)+1:]
	}
	return name
}

// IsDocumentFile reports whether name is a markdown file that may hold a
// document. README files never do.
func IsDocumentFile(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	return strings.HasSuffix(strings.ToLower(base), ".md") && !strings.EqualFold(base, "README.md")
}

// NormalizeTags trims tags, drops empties and removes case-insensitive
// duplicates. A missing tag list becomes an empty one.
func NormalizeTags(doc *models.Document) bool {
	if doc.Tags == nil {
		doc.Tags = []string{}
		return true
	}
	seen := make(map[string]struct{}, len(doc.Tags))
	out := make([]string, 0, len(doc.Tags))
	for _, tag := range doc.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		k := strings.ToLower(tag)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, tag)
	}
	if equalStrings(out, doc.Tags) {
		return false
	}
	doc.Tags = out
	return true
}

func equalStrings(a, b []string) bool {
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

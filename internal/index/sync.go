package index

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/workbench/internal/apperr"
	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
	"github.com/starford/workbench/internal/storage"
)

// SyncStats counts what a Sync pass did.
type SyncStats struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Sync walks the repository and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db DocumentIndex, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	metas, err := store.List("")
	if err != nil {
		return stats, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !document.IsDocumentFile(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			stats.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			stats.Indexed++
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				stats.Removed++
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return stats, nil
}

// indexFile parses data and upserts it into the index. Markdown files without
// a header are indexed as plain text so their links and words stay findable.
func indexFile(db DocumentIndex, path string, data []byte, updatedAt time.Time) error {
	doc, err := document.Parse(path, data)
	if errors.Is(err, apperr.ErrFormat) {
		doc = &models.Document{Path: path, Title: document.TitleFromPath(path, ""), Body: string(data)}
	} else if err != nil {
		return err
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	row := DocumentRow{
		Path:      path,
		ID:        doc.ID,
		Type:      doc.Type,
		Status:    doc.Status,
		Title:     doc.Title,
		Checksum:  storage.Checksum(data),
		Tags:      doc.Tags,
		UpdatedAt: updatedAt.UTC(),
	}
	return db.UpsertDocument(row, doc.Body, outgoingLinks(doc))
}

// outgoingLinks collects body links plus repository paths in the specs, adrs
// and files lists.
func outgoingLinks(doc *models.Document) []Link {
	var out []Link
	for _, target := range links.Targets(doc.Body, doc.Path) {
		out = append(out, Link{Source: doc.Path, Target: target, Kind: LinkInline})
	}
	for _, key := range []string{models.RelatedSpecs, models.RelatedADRs, models.RelatedFiles} {
		for _, entry := range *doc.Related.List(key) {
			norm := links.Normalize(key, entry)
			if !strings.HasPrefix(norm, "/") {
				continue
			}
			out = append(out, Link{Source: doc.Path, Target: norm, Kind: key})
		}
	}
	return out
}

// Refresh re-indexes one file after a write, or drops it when the file is
// gone.
func Refresh(db DocumentIndex, store storage.Provider, path string) error {
	if !store.Exists(path) {
		return db.DeleteDocument(path)
	}
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	return indexFile(db, path, data, time.Now())
}

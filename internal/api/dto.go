package api

import (
	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/models"
)

// ItemSummary is a lightweight item in a list response.
type ItemSummary struct {
	Path     string   `json:"path"`
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Status   string   `json:"status"`
	Title    string   `json:"title"`
	Priority string   `json:"priority,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Tags     []string `json:"tags"`
}

func summarize(doc *models.Document) ItemSummary {
	return ItemSummary{
		Path:     doc.Path,
		ID:       doc.ID,
		Type:     doc.Type,
		Status:   doc.Status,
		Title:    doc.Title,
		Priority: doc.Priority,
		Owner:    doc.Owner,
		Tags:     nonNil(doc.Tags),
	}
}

// ItemListResponse wraps item listings.
type ItemListResponse struct {
	Items []ItemSummary `json:"items"`
	Total int           `json:"total"`
}

// DocumentDetail is a full document plus the links pointing at it.
type DocumentDetail struct {
	*models.Document
	Backlinks []index.Link `json:"backlinks"`
}

// DocumentListResponse wraps paginated index listings.
type DocumentListResponse struct {
	Documents []index.DocumentRow `json:"documents"`
	Total     int                 `json:"total"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// BacklinksResponse wraps backlinks of one target.
type BacklinksResponse struct {
	Target    string       `json:"target"`
	Backlinks []index.Link `json:"backlinks"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

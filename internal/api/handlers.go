package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/models"
)

// Handler holds API route handlers. idx may be nil, in which case the
// index-backed routes answer 503.
type Handler struct {
	svc *itemservice.Service
	idx index.DocumentIndex
}

// NewHandler creates a new Handler.
func NewHandler(svc *itemservice.Service, idx index.DocumentIndex) *Handler {
	return &Handler{svc: svc, idx: idx}
}

// wildcardPath extracts the repository path after a "/*" route. Encoded
// slashes (docs%2Fa.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListItems handles GET /items?all=true&status=&type=.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all, _ := strconv.ParseBool(q.Get("all"))
	docs, err := h.svc.ListItems(all)
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	status, typ := q.Get("status"), q.Get("type")
	items := []ItemSummary{}
	for _, d := range docs {
		if (status != "" && d.Status != status) || (typ != "" && d.Type != typ) {
			continue
		}
		items = append(items, summarize(d))
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.FindItem(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.detail(doc))
}

// GetDocument handles GET /documents/*.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Resolve(p)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, h.detail(doc))
}

func (h *Handler) detail(doc *models.Document) DocumentDetail {
	out := DocumentDetail{Document: doc, Backlinks: []index.Link{}}
	if h.idx != nil {
		if bl, err := h.idx.Backlinks(doc.Path); err == nil {
			out.Backlinks = bl
		}
	}
	return out
}

// ListDocuments handles GET /documents?type=&status=&tag=&limit=&offset=.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if !h.requireIndex(w) {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	rows, total, err := h.idx.ListDocuments(index.Filter{
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Tag:    q.Get("tag"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: rows, Total: total})
}

// Search handles GET /search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if !h.requireIndex(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.idx.Search(q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// Backlinks handles GET /backlinks?target=.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'target' is required"))
		return
	}
	if !h.requireIndex(w) {
		return
	}
	bl, err := h.idx.Backlinks(target)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target, Backlinks: nonNil(bl)})
}

func (h *Handler) requireIndex(w http.ResponseWriter) bool {
	if h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index disabled"))
		return false
	}
	return true
}

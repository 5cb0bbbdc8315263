package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/itemservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; idx may be nil.
func NewRouter(svc *itemservice.Service, idx index.DocumentIndex, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc, idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)

	r.Get("/search", h.Search)
	r.Get("/backlinks", h.Backlinks)

	return r
}

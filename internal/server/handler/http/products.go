package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/observer/internal/models"
)

// CatalogService defines the product operations required by ProductHandler.
type CatalogService interface {
	Search(ctx context.Context, query string, page, size int) (models.SearchResult, error)
	Product(ctx context.Context, id int64) (models.Product, error)
}

// ProductHandler serves product search and detail.
type ProductHandler struct {
	CatalogService CatalogService
}

// Search handles GET /api/product/search?query=&page=&size=.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok1 := intParam(q.Get("page"), 0)
	size, ok2 := intParam(q.Get("size"), 0)
	if !ok1 || !ok2 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	res, err := h.CatalogService.Search(r.Context(), q.Get("query"), page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Get handles GET /api/product/search/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	p, err := h.CatalogService.Product(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

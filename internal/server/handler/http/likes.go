package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/observer/internal/middleware"
	"github.com/atinyakov/observer/internal/models"
)

// LikeService defines the operations required by LikeHandler.
type LikeService interface {
	Liked(ctx context.Context, userID string, offset, limit int) ([]models.Product, error)
	SetLike(ctx context.Context, requesterID, ownerID string, productID int64, like bool) error
}

// LikeHandler serves the liked-products list and like toggles.
type LikeHandler struct {
	LikeService LikeService
}

// List handles GET /api/likes/?offset=&limit= for the authenticated user.
func (h *LikeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, ok1 := intParam(q.Get("offset"), 0)
	limit, ok2 := intParam(q.Get("limit"), 0)
	if !ok1 || !ok2 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	products, err := h.LikeService.Liked(r.Context(), middleware.GetUserIDFromContext(r.Context()), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Like handles POST /api/likes/{userId}/product/{id} with {like: bool}.
// A missing body counts as like=true.
func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Like *bool `json:"like"`
	}{}
	if r.ContentLength != 0 && !decode(r, &req) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.set(w, r, req.Like == nil || *req.Like)
}

// Unlike handles DELETE /api/likes/{userId}/product/{id}.
func (h *LikeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, false)
}

func (h *LikeHandler) set(w http.ResponseWriter, r *http.Request, like bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	requester := middleware.GetUserIDFromContext(r.Context())
	if err := h.LikeService.SetLike(r.Context(), requester, chi.URLParam(r, "userId"), productID, like); err != nil {
		writeError(w, err)
		return
	}
	msg := "unliked"
	if like {
		msg = "liked"
	}
	writeJSON(w, http.StatusOK, msg)
}

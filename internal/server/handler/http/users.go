package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/observer/internal/middleware"
)

// UserService defines the account operations required by UserHandler.
type UserService interface {
	DeleteUser(ctx context.Context, requesterID, userID string) error
}

// UserHandler serves account management.
type UserHandler struct {
	UserService UserService
}

// Delete handles DELETE /api/users/{userId}. Only the owner may delete.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetUserIDFromContext(r.Context())
	if err := h.UserService.DeleteUser(r.Context(), requester, chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

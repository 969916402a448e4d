// Package http provides the HTTP handlers and routing of the backend.
package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/observer/internal/middleware"
	"github.com/atinyakov/observer/internal/models"
)

// AuthService defines the authentication operations required by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, username, password, email string) (models.Session, models.User, error)
	Login(ctx context.Context, username, password string) (models.Session, models.User, error)
	IdentitySignIn(ctx context.Context, idToken string) (models.Session, models.User, bool, error)
	Validate(ctx context.Context, token string) (bool, error)
	Refresh(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles HTTP requests for the session lifecycle.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
}

type loginResponse struct {
	Session string      `json:"session"`
	User    models.User `json:"user"`
}

type signInResponse struct {
	Session   string      `json:"session"`
	User      models.User `json:"user"`
	IsNewUser bool        `json:"isNewUser"`
}

type sessionRequest struct {
	Session string `json:"session"`
}

// Register handles POST /api/auth/register with {username, password, email}.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !decode(r, &req) || req.Username == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	sess, u, err := h.AuthService.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Session: sess.Token, User: u})
}

// Login handles POST /api/auth/login with {username, password}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(r, &req) || req.Username == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	sess, u, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Session: sess.Token, User: u})
}

// SignIn handles POST /api/auth/apple/login with {idToken}.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if !decode(r, &req) || req.IDToken == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	sess, u, isNew, err := h.AuthService.IdentitySignIn(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{Session: sess.Token, User: u, IsNewUser: isNew})
}

// Validate handles POST /api/auth/validate with {session} and answers a bare boolean.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(r, &req) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	ok, err := h.AuthService.Validate(r.Context(), req.Session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

// Refresh handles POST /api/auth/refresh with {session}.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(r, &req) || req.Session == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	fresh, err := h.AuthService.Refresh(r.Context(), req.Session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"newSession": fresh})
}

// Logout handles POST /api/auth/logout. It revokes the session that
// authenticated the request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.SessionToken(r)
	if err := h.AuthService.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

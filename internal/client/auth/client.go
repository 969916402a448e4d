// Package auth calls the identity endpoints of the backend.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/atinyakov/observer/internal/client/api"
)

const (
	loginPath      = "/api/auth/login"
	appleLoginPath = "/api/auth/apple/login"
	validatePath   = "/api/auth/validate"
	refreshPath    = "/api/auth/refresh"
	logoutPath     = "/api/auth/logout"
	mePath         = "/api/auth/me"
)

// User is the signed-in account as reported by the backend.
type User struct {
	ID string `json:"id"`
	// Username doubles as the display name.
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// LoginResult is returned by a password login.
type LoginResult struct {
	Session string `json:"session"`
	User    User   `json:"user"`
}

// SignInResult is returned by an identity-provider exchange.
type SignInResult struct {
	Session   string `json:"session"`
	User      User   `json:"user"`
	IsNewUser bool   `json:"isNewUser"`
}

// signInPayload uses pointers so a partial payload surfaces as
// InvalidResponse rather than a decoding failure.
type signInPayload struct {
	Session   *string `json:"session"`
	User      *User   `json:"user"`
	IsNewUser *bool   `json:"isNewUser"`
}

// LogoutResult echoes the server's confirmation.
type LogoutResult struct {
	Message string `json:"message"`
}

// Client is the contract the session controller depends on.
type Client interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	IdentityProviderSignIn(ctx context.Context, idToken string) (SignInResult, error)
	ValidateSession(ctx context.Context, session string) (bool, error)
	RefreshSession(ctx context.Context, session string) (string, error)
	Logout(ctx context.Context) (LogoutResult, error)
	CurrentUser(ctx context.Context) (User, error)
}

// APIClient implements Client on top of api.Client.
type APIClient struct {
	api *api.Client
}

// New returns an auth client sharing c's transport and credential.
func New(c *api.Client) *APIClient {
	return &APIClient{api: c}
}

func (a *APIClient) Login(ctx context.Context, username, password string) (LoginResult, error) {
	res, err := api.Request[LoginResult](ctx, a.api, api.Descriptor{
		Path:   loginPath,
		Method: http.MethodPost,
		Body:   map[string]string{"username": username, "password": password},
	})
	if err != nil {
		return LoginResult{}, err
	}
	if res.Session == "" || res.User.ID == "" {
		return LoginResult{}, invalid("login response lacks session or user")
	}
	return res, nil
}

func (a *APIClient) IdentityProviderSignIn(ctx context.Context, idToken string) (SignInResult, error) {
	raw, err := api.Request[signInPayload](ctx, a.api, api.Descriptor{
		Path:   appleLoginPath,
		Method: http.MethodPost,
		Body:   map[string]string{"idToken": idToken},
	})
	if err != nil {
		return SignInResult{}, err
	}
	if raw.Session == nil || *raw.Session == "" || raw.User == nil {
		return SignInResult{}, invalid("sign-in response lacks session or user")
	}
	res := SignInResult{Session: *raw.Session, User: *raw.User}
	if raw.IsNewUser != nil {
		res.IsNewUser = *raw.IsNewUser
	}
	return res, nil
}

func (a *APIClient) ValidateSession(ctx context.Context, session string) (bool, error) {
	return api.Request[bool](ctx, a.api, api.Descriptor{
		Path:   validatePath,
		Method: http.MethodPost,
		Body:   map[string]string{"session": session},
	})
}

func (a *APIClient) RefreshSession(ctx context.Context, session string) (string, error) {
	res, err := api.Request[struct {
		NewSession string `json:"newSession"`
	}](ctx, a.api, api.Descriptor{
		Path:   refreshPath,
		Method: http.MethodPost,
		Body:   map[string]string{"session": session},
	})
	if err != nil {
		return "", err
	}
	if res.NewSession == "" {
		return "", invalid("refresh response lacks newSession")
	}
	return res.NewSession, nil
}

func (a *APIClient) Logout(ctx context.Context) (LogoutResult, error) {
	return api.Request[LogoutResult](ctx, a.api, api.Descriptor{
		Path:         logoutPath,
		Method:       http.MethodPost,
		RequiresAuth: true,
	})
}

func (a *APIClient) CurrentUser(ctx context.Context) (User, error) {
	u, err := api.Request[User](ctx, a.api, api.Descriptor{
		Path:         mePath,
		RequiresAuth: true,
		NoCache:      true,
	})
	if err != nil {
		return User{}, err
	}
	if u.ID == "" {
		return User{}, invalid("user response lacks id")
	}
	return u, nil
}

func invalid(msg string) error {
	return &api.Error{Kind: api.InvalidResponse, Cause: errors.New(msg)}
}

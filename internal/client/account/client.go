// Package account manages the signed-in user's account on the backend.
package account

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/atinyakov/observer/internal/client/api"
)

const usersPath = "/api/users/"

// ErrNoUser is returned when no user id is supplied.
var ErrNoUser = errors.New("account: user id required")

// Deleter removes an account. The session controller depends on it.
type Deleter interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// Client implements Deleter.
type Client struct {
	api *api.Client
}

// New returns an account client.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// DeleteAccount deletes userID. Any 2xx status counts as success.
func (c *Client) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	_, err := api.Request[api.Empty](ctx, c.api, api.Descriptor{
		Path:         usersPath + url.PathEscape(userID),
		Method:       http.MethodDelete,
		RequiresAuth: true,
	})
	return err
}

// Package likes reads and toggles the signed-in user's liked products.
package likes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/catalog"
)

const (
	likedPath   = "/api/likes/"
	productPath = "/api/likes/%s/product/%d"

	// DefaultLimit is the page size used when the caller passes none.
	DefaultLimit = 20
)

// Service is the likes API consumed by Manager.
type Service interface {
	Liked(ctx context.Context, offset, limit int) ([]catalog.Product, error)
	Like(ctx context.Context, userID string, productID int64) (string, error)
	Unlike(ctx context.Context, userID string, productID int64) (string, error)
}

// Client calls the likes endpoints. Every toggle drops the cached
// liked-products pages.
type Client struct {
	api *api.Client
}

// New returns a likes client backed by c.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// Liked returns one page of liked products.
func (c *Client) Liked(ctx context.Context, offset, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return api.Request[[]catalog.Product](ctx, c.api, api.Descriptor{
		Path: likedPath,
		Query: url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(limit)},
		},
		RequiresAuth: true,
	})
}

// Like marks productID as liked by userID.
func (c *Client) Like(ctx context.Context, userID string, productID int64) (string, error) {
	return c.toggle(ctx, http.MethodPost, userID, productID, map[string]bool{"like": true})
}

// Unlike removes the like.
func (c *Client) Unlike(ctx context.Context, userID string, productID int64) (string, error) {
	return c.toggle(ctx, http.MethodDelete, userID, productID, nil)
}

func (c *Client) toggle(ctx context.Context, method, userID string, productID int64, body any) (string, error) {
	msg, err := api.Request[string](ctx, c.api, api.Descriptor{
		Path:         fmt.Sprintf(productPath, url.PathEscape(userID), productID),
		Method:       method,
		Body:         body,
		RequiresAuth: true,
	})
	// A failed write may still have landed.
	c.api.Invalidate(likedPath)
	return msg, err
}

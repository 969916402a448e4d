package catalog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/atinyakov/observer/internal/client/api"
)

const (
	searchPath  = "/api/product/search"
	productPath = "/api/product/search/"

	// DefaultPageSize is used when a caller passes no page size.
	DefaultPageSize = 20
)

// Searcher is what the result list needs from the backend.
type Searcher interface {
	Search(ctx context.Context, query string, page, size int) (SearchResponse, error)
}

// Client calls the public product endpoints.
type Client struct {
	api *api.Client
}

// New returns a catalog client.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// Search runs a product search. page is zero-based.
func (c *Client) Search(ctx context.Context, query string, page, size int) (SearchResponse, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	return api.Request[SearchResponse](ctx, c.api, api.Descriptor{
		Path: searchPath,
		Query: url.Values{
			"query": {query},
			"page":  {strconv.Itoa(page)},
			"size":  {strconv.Itoa(size)},
		},
	})
}

// Product loads a single product with its price history.
func (c *Client) Product(ctx context.Context, id int64) (Product, error) {
	return api.Request[Product](ctx, c.api, api.Descriptor{
		Path: productPath + strconv.FormatInt(id, 10),
	})
}

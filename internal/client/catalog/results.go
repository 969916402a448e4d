package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/observer/internal/client/api"
)

// ErrNoMorePages is returned by LoadMore after the last page.
var ErrNoMorePages = errors.New("catalog: no more pages")

// ResultsState is a snapshot of a search result list.
type ResultsState struct {
	Query      string
	Products   []Product
	Pagination Pagination
	Loading    bool
	Err        string
}

// Results holds the state of one search screen.
type Results struct {
	searcher Searcher
	pageSize int

	mu    sync.Mutex
	state ResultsState
}

// NewResults returns an empty result list. pageSize <= 0 uses the default.
func NewResults(s Searcher, pageSize int) *Results {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Results{searcher: s, pageSize: pageSize}
}

// State returns a copy of the current state.
func (r *Results) State() ResultsState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state
	st.Products = append([]Product(nil), r.state.Products...)
	return st
}

// Search replaces the list with the first page for query. On failure the
// list stays empty and Err carries the message.
func (r *Results) Search(ctx context.Context, query string) error {
	r.mu.Lock()
	r.state = ResultsState{Query: query, Loading: true}
	r.mu.Unlock()

	resp, err := r.searcher.Search(ctx, query, 0, r.pageSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Query != query {
		// superseded by a newer search
		return err
	}
	r.state.Loading = false
	if err != nil {
		r.state.Err = api.UserMessage(err)
		return err
	}
	r.state.Products = resp.Data
	r.state.Pagination = resp.Pagination
	return nil
}

// LoadMore appends the next page. Existing products are kept on failure.
func (r *Results) LoadMore(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Loading {
		r.mu.Unlock()
		return nil
	}
	if r.state.Query == "" || r.state.Pagination.Last {
		r.mu.Unlock()
		return ErrNoMorePages
	}
	query := r.state.Query
	next := r.state.Pagination.CurrentPage + 1
	r.state.Loading = true
	r.mu.Unlock()

	resp, err := r.searcher.Search(ctx, query, next, r.pageSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Query != query {
		return err
	}
	r.state.Loading = false
	if err != nil {
		r.state.Err = api.UserMessage(err)
		return err
	}
	r.state.Err = ""
	r.state.Products = append(r.state.Products, resp.Data...)
	r.state.Pagination = resp.Pagination
	return nil
}

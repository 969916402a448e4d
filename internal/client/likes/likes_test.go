package likes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/catalog"
	"github.com/atinyakov/observer/internal/client/credential"
	"github.com/atinyakov/observer/internal/client/transport"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	creds := credential.NewMemoryStore()
	require.NoError(t, creds.Save("tok"))
	return New(api.New(srv.URL, creds, transport.NewHTTP(srv.Client(), nil)))
}

func TestClient_LikedAndToggle(t *testing.T) {
	var listCalls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Session-ID tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/likes/":
			listCalls.Add(1)
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`[{"id":7,"productName":"coat"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/likes/u%201/product/7",
			r.Method == http.MethodPost && r.URL.Path == "/api/likes/u 1/product/7":
			var body map[string]bool
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body["like"])
			_, _ = w.Write([]byte(`"liked"`))
		case r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`"unliked"`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	got, err := c.Liked(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "coat", got[0].Name)

	// cached
	_, err = c.Liked(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), listCalls.Load())

	msg, err := c.Like(ctx, "u 1", 7)
	require.NoError(t, err)
	assert.Equal(t, "liked", msg)

	// a toggle drops the cached list
	_, err = c.Liked(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), listCalls.Load())

	// the fresh read is cached again
	_, err = c.Liked(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), listCalls.Load())

	msg, err = c.Unlike(ctx, "u 1", 7)
	require.NoError(t, err)
	assert.Equal(t, "unliked", msg)
}

// likesServer keeps liked product ids in like order and serves them in
// offset/limit pages. failWrites makes toggles answer 500 after applying.
type likesServer struct {
	mu         sync.Mutex
	ids        []int64
	failWrites bool
}

func (s *likesServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method == http.MethodGet {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := []catalog.Product{}
		for i := offset; i < len(s.ids) && i < offset+limit; i++ {
			page = append(page, catalog.Product{ID: s.ids[i]})
		}
		_ = json.NewEncoder(w).Encode(page)
		return
	}

	parts := strings.Split(r.URL.Path, "/")
	id, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	switch r.Method {
	case http.MethodPost:
		s.ids = append(s.ids, id)
	case http.MethodDelete:
		for i, v := range s.ids {
			if v == id {
				s.ids = append(s.ids[:i], s.ids[i+1:]...)
				break
			}
		}
	}
	if s.failWrites {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(`"ok"`))
}

func ids(ps []catalog.Product) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestClient_RepeatedReadsAfterToggle(t *testing.T) {
	srv := &likesServer{}
	c := newClient(t, srv.handle)
	ctx := context.Background()

	before, err := c.Liked(ctx, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = c.Like(ctx, "u1", 7)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := c.Liked(ctx, 0, 20)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, ids(got), "read %d after like", i+1)
	}

	_, err = c.Unlike(ctx, "u1", 7)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := c.Liked(ctx, 0, 20)
		require.NoError(t, err)
		assert.Empty(t, got, "read %d after unlike", i+1)
	}
}

func TestClient_EveryPageFreshAfterToggle(t *testing.T) {
	srv := &likesServer{ids: []int64{1, 2, 3}}
	c := newClient(t, srv.handle)
	ctx := context.Background()

	first, err := c.Liked(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(first))
	second, err := c.Liked(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(second))

	_, err = c.Like(ctx, "u1", 4)
	require.NoError(t, err)

	first, err = c.Liked(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(first))
	second, err = c.Liked(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(second), "second page must not come from the pre-toggle cache")
}

func TestClient_FailedToggleStillDropsCache(t *testing.T) {
	srv := &likesServer{failWrites: true}
	c := newClient(t, srv.handle)
	ctx := context.Background()

	_, err := c.Liked(ctx, 0, 20)
	require.NoError(t, err)

	_, err = c.Like(ctx, "u1", 9)
	require.Error(t, err)

	got, err := c.Liked(ctx, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids(got))
}

type fakeService struct {
	pages     [][]catalog.Product
	likeErr   error
	unlikeErr error
	liked     []int64
	unliked   []int64
}

func (f *fakeService) Liked(_ context.Context, offset, limit int) ([]catalog.Product, error) {
	idx := offset / limit
	if idx >= len(f.pages) {
		return nil, nil
	}
	return f.pages[idx], nil
}

func (f *fakeService) Like(_ context.Context, _ string, id int64) (string, error) {
	f.liked = append(f.liked, id)
	return "ok", f.likeErr
}

func (f *fakeService) Unlike(_ context.Context, _ string, id int64) (string, error) {
	f.unliked = append(f.unliked, id)
	return "ok", f.unlikeErr
}

func products(ids ...int64) []catalog.Product {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Product{ID: id})
	}
	return out
}

func TestManager_Paging(t *testing.T) {
	svc := &fakeService{pages: [][]catalog.Product{products(1, 2), products(3)}}
	m := NewManager(svc, 2)
	ctx := context.Background()

	require.NoError(t, m.Reload(ctx))
	assert.Len(t, m.Products(), 2)

	more, err := m.More(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, m.Products(), 3)
	assert.True(t, m.IsLiked(3))

	more, err = m.More(ctx)
	require.NoError(t, err)
	assert.False(t, more)
}

func TestManager_ToggleOptimistic(t *testing.T) {
	svc := &fakeService{pages: [][]catalog.Product{products(1)}}
	m := NewManager(svc, 10)
	ctx := context.Background()
	require.NoError(t, m.Reload(ctx))

	liked, err := m.Toggle(ctx, "u1", catalog.Product{ID: 2})
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, m.IsLiked(2))
	assert.Equal(t, []int64{2}, svc.liked)

	liked, err = m.Toggle(ctx, "u1", catalog.Product{ID: 1})
	require.NoError(t, err)
	assert.False(t, liked)
	assert.False(t, m.IsLiked(1))
	assert.Equal(t, []int64{1}, svc.unliked)
	assert.Equal(t, products(2), m.Products())
}

func TestManager_ToggleRollback(t *testing.T) {
	svc := &fakeService{
		pages:     [][]catalog.Product{products(1)},
		likeErr:   &api.Error{Kind: api.NetworkError, Cause: errors.New("offline")},
		unlikeErr: &api.Error{Kind: api.ServerError, StatusCode: 500},
	}
	m := NewManager(svc, 10)
	ctx := context.Background()
	require.NoError(t, m.Reload(ctx))

	liked, err := m.Toggle(ctx, "u1", catalog.Product{ID: 2})
	assert.Error(t, err)
	assert.False(t, liked)
	assert.False(t, m.IsLiked(2))
	assert.NotEmpty(t, m.Err())

	liked, err = m.Toggle(ctx, "u1", catalog.Product{ID: 1})
	assert.Error(t, err)
	assert.True(t, liked)
	assert.True(t, m.IsLiked(1))
	assert.Equal(t, products(1), m.Products())
}

func TestManager_ToggleWithoutUser(t *testing.T) {
	m := NewManager(&fakeService{}, 0)
	_, err := m.Toggle(context.Background(), "", catalog.Product{ID: 1})
	assert.ErrorIs(t, err, ErrNoUser)
}

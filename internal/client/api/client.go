// Package api builds, authenticates, sends and decodes requests against the
// Observer backend, and maps every failure onto a closed error taxonomy.
//
// The client never retries and never refreshes credentials on its own; both
// are decisions for the session layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/atinyakov/observer/internal/client/credential"
	"github.com/atinyakov/observer/internal/client/transport"
)

const (
	// AuthorizationHeader carries the session credential.
	AuthorizationHeader = "Authorization"
	// AuthScheme prefixes the credential in AuthorizationHeader.
	AuthScheme = "Session-ID"

	// DefaultCacheSize is the number of GET bodies kept by default.
	DefaultCacheSize = 64
)

// Descriptor describes one call. It is built per call and never stored.
type Descriptor struct {
	Path   string
	Method string // GET when empty
	Query  url.Values
	// Body is encoded as JSON when non-nil.
	Body         any
	RequiresAuth bool
	// NoCache skips the GET cache for both lookup and store.
	NoCache bool
}

// Empty decodes a success response whose body is irrelevant, including an
// empty one.
type Empty struct{}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	creds     credential.Store
	transport transport.Transport
	log       *zap.Logger

	cache    *lru.Cache[string, []byte]
	inflight singleflight.Group

	// cacheMu orders stores against invalidation. A response is stored
	// only if no invalidation happened since its request was built.
	cacheMu sync.Mutex
	epoch   uint64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for warnings.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCacheSize bounds the best-effort GET cache. Zero or less disables it.
func WithCacheSize(size int) Option {
	return func(c *Client) {
		if size <= 0 {
			c.cache = nil
			return
		}
		c.cache, _ = lru.New[string, []byte](size)
	}
}

// New returns a client for baseURL. creds is only read.
func New(baseURL string, creds credential.Store, tr transport.Transport, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		creds:     creds,
		transport: tr,
		log:       zap.NewNop(),
	}
	c.cache, _ = lru.New[string, []byte](DefaultCacheSize)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Purge drops every cached GET body.
func (c *Client) Purge() {
	if c.cache == nil {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.epoch++
	c.cache.Purge()
}

// Invalidate drops cached GET bodies whose path starts with pathPrefix,
// for every query and credential. Reads already in flight are not stored.
func (c *Client) Invalidate(pathPrefix string) {
	if c.cache == nil {
		return
	}
	prefix := http.MethodGet + " " + c.baseURL + pathPrefix
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.epoch++
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

func (c *Client) currentEpoch() uint64 {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.epoch
}

// store caches body unless the cache was invalidated after epoch.
func (c *Client) store(key string, body []byte, epoch uint64) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.epoch == epoch {
		c.cache.Add(key, body)
	}
}

// Request performs d and decodes the success body into T.
func Request[T any](ctx context.Context, c *Client, d Descriptor) (T, error) {
	var out T

	req, err := c.build(d)
	if err != nil {
		return out, err
	}

	cacheable := req.Method == http.MethodGet && !d.NoCache && c.cache != nil
	key := cacheKey(req)

	var epoch uint64
	if cacheable {
		epoch = c.currentEpoch()
		if body, ok := c.cache.Get(key); ok {
			if err := decode(body, &out); err == nil {
				return out, nil
			}
			c.cache.Remove(key)
		}
	}

	var body []byte
	if cacheable {
		// The shared call outlives any single caller; each caller stops
		// waiting when its own ctx ends.
		flight := strconv.FormatUint(epoch, 10) + " " + key
		ch := c.inflight.DoChan(flight, func() (any, error) {
			return c.send(context.WithoutCancel(ctx), req)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return out, res.Err
			}
			body = res.Val.([]byte)
		case <-ctx.Done():
			return out, &Error{Kind: NetworkError, Cause: ctx.Err()}
		}
	} else {
		body, err = c.send(ctx, req)
		if err != nil {
			return out, err
		}
	}

	if err := decode(body, &out); err != nil {
		return out, err
	}
	if cacheable {
		c.store(key, body, epoch)
	}
	return out, nil
}

// build resolves the URL and headers. It performs no I/O besides reading
// the credential.
func (c *Client) build(d Descriptor) (*transport.Request, error) {
	u, err := url.Parse(c.baseURL + d.Path)
	if err != nil {
		return nil, &Error{Kind: InvalidURL, Cause: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Kind: InvalidURL}
	}
	if len(d.Query) > 0 {
		q := u.Query()
		for k, vs := range d.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	var body []byte
	if d.Body != nil {
		header.Set("Content-Type", "application/json")
		encoded, err := json.Marshal(d.Body)
		if err != nil {
			// Sent without a body; the server will reject it.
			c.log.Warn("request body not encodable",
				zap.String("path", d.Path),
				zap.Error(err))
		} else {
			body = encoded
		}
	}

	if d.RequiresAuth {
		token, err := c.creds.Get()
		if err != nil {
			c.log.Warn("credential unreadable, sending unauthenticated", zap.Error(err))
		}
		if token != "" {
			header.Set(AuthorizationHeader, AuthScheme+" "+token)
		}
	}

	return &transport.Request{
		Method: method,
		URL:    u.String(),
		Header: header,
		Body:   body,
	}, nil
}

// send performs the exchange and classifies its status.
func (c *Client) send(ctx context.Context, req *transport.Request) ([]byte, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, &Error{Kind: NetworkError, Cause: err}
	}
	if resp == nil {
		return nil, &Error{Kind: ServerError, StatusCode: 0}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: ServerError, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func decode[T any](body []byte, out *T) error {
	if _, ok := any(out).(*Empty); ok {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: DecodingError, Cause: err}
	}
	return nil
}

func cacheKey(req *transport.Request) string {
	return req.Method + " " + req.URL + "\n" + req.Header.Get(AuthorizationHeader)
}

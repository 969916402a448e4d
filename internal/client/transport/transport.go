// Package transport sends raw HTTP exchanges for the API client. It knows
// nothing about JSON, credentials or status classification.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single exchange when no client is supplied.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 8 << 20

// Request is a fully resolved outgoing exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response carries the status code and raw body of a completed exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs one exchange. Implementations do not retry.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTP is a Transport backed by net/http.
type HTTP struct {
	client *http.Client
	log    *zap.Logger
}

// NewHTTP wraps client. A nil client gets DefaultTimeout; a nil logger
// disables exchange logging.
func NewHTTP(client *http.Client, log *zap.Logger) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{client: client, log: log}
}

// Send executes req and reads the whole response body.
func (t *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.log.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	t.log.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Bool("authenticated", req.Header.Get("Authorization") != ""),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

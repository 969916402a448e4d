// Package identity adapts third-party sign-in SDKs into a single call that
// yields an opaque identity token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoToken is returned when a provider completes without a token.
var ErrNoToken = errors.New("identity provider returned no token")

// Provider obtains an identity token from an external identity provider.
type Provider interface {
	IDToken(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) IDToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always yields the same token.
type Static string

func (s Static) IDToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// File reads the token from a file each time it is asked.
type File string

func (f File) IDToken(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("read identity token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// FromCallback wraps a completion-handler style SDK. start must eventually
// call done exactly once; later calls are ignored. IDToken returns early if
// ctx ends before done is called.
func FromCallback(start func(done func(token string, err error))) Provider {
	return ProviderFunc(func(ctx context.Context) (string, error) {
		type result struct {
			token string
			err   error
		}
		ch := make(chan result, 1)
		var once sync.Once
		start(func(token string, err error) {
			once.Do(func() { ch <- result{token: token, err: err} })
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-ch:
			if r.err != nil {
				return "", r.err
			}
			if r.token == "" {
				return "", ErrNoToken
			}
			return r.token, nil
		}
	})
}

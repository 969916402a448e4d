package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/auth"
	"github.com/atinyakov/observer/internal/client/catalog"
	"github.com/atinyakov/observer/internal/client/credential"
	"github.com/atinyakov/observer/internal/client/prompt"
	"github.com/atinyakov/observer/internal/client/session"
	"github.com/atinyakov/observer/internal/client/transport"
)

// stubAuth rejects the password "bad" and accepts anything else.
type stubAuth struct{}

func (stubAuth) Login(_ context.Context, username, password string) (auth.LoginResult, error) {
	if password == "bad" {
		return auth.LoginResult{}, &api.Error{Kind: api.ServerError, StatusCode: http.StatusBadRequest}
	}
	return auth.LoginResult{Session: "tok", User: auth.User{ID: "1", Username: username}}, nil
}

func (stubAuth) IdentityProviderSignIn(context.Context, string) (auth.SignInResult, error) {
	return auth.SignInResult{}, &api.Error{Kind: api.ServerError, StatusCode: http.StatusBadRequest}
}

func (stubAuth) ValidateSession(context.Context, string) (bool, error) { return true, nil }

func (stubAuth) RefreshSession(context.Context, string) (string, error) { return "tok2", nil }

func (stubAuth) Logout(context.Context) (auth.LogoutResult, error) {
	return auth.LogoutResult{Message: "Logged out successfully"}, nil
}

func (stubAuth) CurrentUser(context.Context) (auth.User, error) {
	return auth.User{ID: "1", Username: "alice"}, nil
}

// syncBuffer is a bytes.Buffer safe for the watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T, input string) (*shell, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	ctrl := session.New(stubAuth{}, credential.NewMemoryStore(), nil)
	sh := &shell{
		session: ctrl,
		prompt:  prompt.New(strings.NewReader(input), out),
		out:     out,
	}
	states, cancel := ctrl.Subscribe()
	t.Cleanup(cancel)
	go sh.watch(states)
	return sh, out
}

func TestShell_CommandErrorReportedOnce(t *testing.T) {
	sh, out := newTestShell(t, "alice\nbad\nalice\npw\n")
	ctx := context.Background()

	sh.exec(ctx, []string{"login"})
	loginMsg := "The server returned an error (status 400)."
	assert.Contains(t, out.String(), "Error: "+loginMsg)

	sh.exec(ctx, []string{"login"})
	require.Equal(t, session.SignedIn, sh.session.State().Status)

	// A sign-out no command caused is reported by watch.
	require.True(t, sh.session.HandleUnauthorized(&api.Error{Kind: api.ServerError, StatusCode: http.StatusUnauthorized}))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Your session has expired. Please sign in again.")
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, strings.Count(out.String(), loginMsg), "failed login reported twice:\n%s", out.String())
}

func TestShell_RejectedSessionReportedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	sh, out := newTestShell(t, "alice\npw\nalice\npw\n")
	sh.catalog = catalog.New(api.New(srv.URL, credential.NewMemoryStore(), transport.NewHTTP(srv.Client(), nil)))
	ctx := context.Background()
	const expired = "Your session has expired. Please sign in again."

	sh.exec(ctx, []string{"login"})
	sh.exec(ctx, []string{"product", "1"})
	require.Equal(t, session.SignedOut, sh.session.State().Status)
	assert.Equal(t, 1, strings.Count(out.String(), expired))

	// A later background sign-out proves watch has seen the earlier state.
	sh.exec(ctx, []string{"login"})
	require.True(t, sh.session.HandleUnauthorized(&api.Error{Kind: api.ServerError, StatusCode: http.StatusForbidden}))
	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), expired) >= 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, strings.Count(out.String(), expired), "output:\n%s", out.String())
}

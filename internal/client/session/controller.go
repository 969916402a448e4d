// Package session owns the authentication state of the client. Controller
// is the only writer of the persisted credential and the only place that
// decides when the app is signed in.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/observer/internal/client/account"
	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/auth"
	"github.com/atinyakov/observer/internal/client/credential"
	"github.com/atinyakov/observer/internal/client/identity"
)

// ErrNotSignedIn is returned by operations that need a known user.
var ErrNotSignedIn = errors.New("session: not signed in")

const msgSessionExpired = "Your session has expired. Please sign in again."

// Status is the stable part of the state.
type Status int

const (
	SignedOut Status = iota
	SignedIn
)

func (s Status) String() string {
	if s == SignedIn {
		return "signed in"
	}
	return "signed out"
}

// State is an immutable snapshot. Err is a transient overlay that is
// cleared by the next successful transition.
type State struct {
	Status Status
	// User may be nil while signed in if the profile could not be loaded.
	User *auth.User
	Err  string
}

// Controller serializes every transition: a transition started while
// another is in flight waits for it, then runs against its result.
type Controller struct {
	auth    auth.Client
	creds   credential.Store
	account account.Deleter
	log     *zap.Logger

	onSignOut func()

	transition sync.Mutex

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the transition logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSignOutHook registers fn to run after every transition to SignedOut,
// e.g. to drop cached responses of the previous user.
func WithSignOutHook(fn func()) Option {
	return func(c *Controller) {
		c.onSignOut = fn
	}
}

// New returns a controller in the SignedOut state. Call Start to restore
// a persisted session.
func New(a auth.Client, creds credential.Store, acct account.Deleter, opts ...Option) *Controller {
	c := &Controller{
		auth:    a,
		creds:   creds,
		account: acct,
		log:     zap.NewNop(),
		subs:    make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the last published snapshot. It never waits on the network.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel that always holds the latest snapshot not yet
// received; intermediate snapshots may be skipped. cancel closes it.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, 1)
	ch <- c.state
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

// Start restores a persisted session. A stored credential is validated
// with the backend before the controller reports SignedIn; an invalid
// credential, or any failure to validate it, is discarded.
func (c *Controller) Start(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	token, err := c.creds.Get()
	if err != nil {
		c.log.Warn("stored credential unreadable", zap.Error(err))
	}
	if token == "" {
		c.publish(State{Status: SignedOut})
		return err
	}

	valid, err := c.auth.ValidateSession(ctx, token)
	if err != nil {
		c.log.Info("session validation failed", zap.Error(err))
		return errors.Join(err, c.signOutLocked(api.UserMessage(err)))
	}
	if !valid {
		c.log.Info("stored session rejected by backend")
		return c.signOutLocked(msgSessionExpired)
	}

	c.publish(State{Status: SignedIn})

	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		c.log.Warn("profile unavailable after restore", zap.Error(err))
		return nil
	}
	c.publish(State{Status: SignedIn, User: &user})
	c.log.Info("session restored", zap.String("user_id", user.ID))
	return nil
}

// Login signs in with a username and password.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	res, err := c.auth.Login(ctx, username, password)
	if err != nil {
		c.log.Info("login failed", zap.String("username", username), zap.Error(err))
		return errors.Join(err, c.signOutLocked(api.UserMessage(err)))
	}
	return c.signInLocked(res.Session, res.User)
}

// IdentityProviderSignIn exchanges an identity token for a session. The
// returned flag tells the caller to run the one-time agreement flow.
func (c *Controller) IdentityProviderSignIn(ctx context.Context, idToken string) (bool, error) {
	c.transition.Lock()
	defer c.transition.Unlock()

	return c.identitySignInLocked(ctx, idToken)
}

// SignInWith obtains a token from p and exchanges it. A provider failure is
// reported like a failed exchange.
func (c *Controller) SignInWith(ctx context.Context, p identity.Provider) (bool, error) {
	c.transition.Lock()
	defer c.transition.Unlock()

	idToken, err := p.IDToken(ctx)
	if err != nil {
		c.log.Info("identity provider failed", zap.Error(err))
		return false, errors.Join(err, c.signOutLocked(api.UserMessage(err)))
	}
	return c.identitySignInLocked(ctx, idToken)
}

func (c *Controller) identitySignInLocked(ctx context.Context, idToken string) (bool, error) {
	res, err := c.auth.IdentityProviderSignIn(ctx, idToken)
	if err != nil {
		c.log.Info("identity sign-in failed", zap.Error(err))
		return false, errors.Join(err, c.signOutLocked(api.UserMessage(err)))
	}
	if err := c.signInLocked(res.Session, res.User); err != nil {
		return false, err
	}
	return res.IsNewUser, nil
}

// Logout ends the session. The backend is told on a best-effort basis; the
// local credential is cleared whatever it answers.
func (c *Controller) Logout(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	return c.logoutLocked(ctx)
}

func (c *Controller) logoutLocked(ctx context.Context) error {
	if res, err := c.auth.Logout(ctx); err != nil {
		c.log.Warn("remote logout failed, clearing local session", zap.Error(err))
	} else {
		c.log.Debug("remote logout", zap.String("message", res.Message))
	}
	return c.signOutLocked("")
}

// Refresh exchanges the stored credential for a new one. Without a
// credential it logs out; on failure the session is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	token, err := c.creds.Get()
	if err != nil {
		c.log.Warn("stored credential unreadable", zap.Error(err))
	}
	if token == "" {
		return errors.Join(err, c.logoutLocked(ctx))
	}

	newToken, err := c.auth.RefreshSession(ctx, token)
	if err != nil {
		c.log.Info("session refresh failed", zap.Error(err))
		return errors.Join(err, c.signOutLocked(api.UserMessage(err)))
	}
	if err := c.creds.Save(newToken); err != nil {
		c.log.Error("persist refreshed credential", zap.Error(err))
		return errors.Join(err, c.signOutLocked("Could not save your session."))
	}

	c.publish(State{Status: SignedIn, User: c.State().User})
	c.log.Debug("session refreshed")
	return nil
}

// DeleteAccount removes the signed-in account and then signs out. A failed
// deletion leaves the session untouched apart from the error overlay.
func (c *Controller) DeleteAccount(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	st := c.State()
	if st.Status != SignedIn || st.User == nil {
		return ErrNotSignedIn
	}

	if err := c.account.DeleteAccount(ctx, st.User.ID); err != nil {
		c.log.Warn("account deletion failed", zap.String("user_id", st.User.ID), zap.Error(err))
		st.Err = api.UserMessage(err)
		c.publish(st)
		return err
	}
	c.log.Info("account deleted", zap.String("user_id", st.User.ID))
	// The backend dropped the session together with the account.
	return c.signOutLocked("")
}

// HandleUnauthorized signs out when err is a 401/403 from the backend and
// reports whether it did. Feature callers pass their errors through here.
func (c *Controller) HandleUnauthorized(err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}

	c.transition.Lock()
	defer c.transition.Unlock()

	if c.State().Status == SignedOut {
		return true
	}
	c.log.Info("backend rejected session", zap.Error(err))
	if clearErr := c.signOutLocked(msgSessionExpired); clearErr != nil {
		c.log.Error("clear rejected session", zap.Error(clearErr))
	}
	return true
}

// StartAutoRefresh refreshes the session every interval while signed in,
// until ctx ends.
func (c *Controller) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.State().Status != SignedIn {
					continue
				}
				if err := c.Refresh(ctx); err != nil {
					c.log.Warn("background refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// signInLocked persists token and publishes SignedIn. If the credential
// cannot be persisted the controller stays signed out.
func (c *Controller) signInLocked(token string, user auth.User) error {
	if err := c.creds.Save(token); err != nil {
		c.log.Error("persist credential", zap.Error(err))
		return errors.Join(err, c.signOutLocked("Could not save your session."))
	}
	u := user
	c.publish(State{Status: SignedIn, User: &u})
	c.log.Info("signed in", zap.String("user_id", user.ID))
	return nil
}

// signOutLocked clears the credential and publishes SignedOut with msg as
// the overlay. The state is published even if clearing fails.
func (c *Controller) signOutLocked(msg string) error {
	err := c.creds.Clear()
	if err != nil {
		c.log.Error("clear credential", zap.Error(err))
	}
	c.publish(State{Status: SignedOut, Err: msg})
	if c.onSignOut != nil {
		c.onSignOut()
	}
	return err
}

func (c *Controller) publish(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = st
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

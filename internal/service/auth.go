// Package service provides the backend business logic, delegating
// persistence to repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned for a missing, unknown or expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a user acts on another user's data.
	ErrForbidden = errors.New("forbidden")
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for empty or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the target entity does not exist.
	ErrNotFound = errors.New("not found")
)

// UserRepository defines the user persistence operations required by AuthService.
type UserRepository interface {
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, u models.User) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserBySubject(ctx context.Context, subject string) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository defines the session persistence operations required by AuthService.
type SessionRepository interface {
	CreateSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// IdentityVerifier turns an identity-provider token into a verified subject.
type IdentityVerifier interface {
	Verify(idToken string) (Identity, error)
}

// Recorder receives auth events for metrics.
type Recorder interface {
	IncrementSessionsIssued()
	IncrementSessionsRevoked()
	IncrementUsersCreated()
}

type nopRecorder struct{}

func (nopRecorder) IncrementSessionsIssued()  {}
func (nopRecorder) IncrementSessionsRevoked() {}
func (nopRecorder) IncrementUsersCreated()    {}

// AuthService implements registration, login and the session lifecycle.
type AuthService struct {
	users    UserRepository
	sessions SessionRepository
	verifier IdentityVerifier
	recorder Recorder
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithRecorder reports issued sessions and created users to r.
func WithRecorder(r Recorder) AuthOption {
	return func(s *AuthService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService constructs an AuthService issuing sessions valid for ttl.
func NewAuthService(users UserRepository, sessions SessionRepository, verifier IdentityVerifier, ttl time.Duration, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		verifier: verifier,
		recorder: nopRecorder{},
		ttl:      ttl,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a password user and signs it in.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (models.Session, models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Session{}, models.User{}, ErrInvalidInput
	}
	exists, err := s.users.UserExists(ctx, username)
	if err != nil {
		return models.Session{}, models.User{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return models.Session{}, models.User{}, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Session{}, models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{ID: s.newID(), Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.Session{}, models.User{}, ErrUserExists
		}
		return models.Session{}, models.User{}, err
	}
	s.recorder.IncrementUsersCreated()

	sess, err := s.issue(ctx, u.ID)
	if err != nil {
		return models.Session{}, models.User{}, err
	}
	return sess, u, nil
}

// Login checks the password and issues a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (models.Session, models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Session{}, models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Session{}, models.User{}, err
	}
	if len(u.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return models.Session{}, models.User{}, ErrInvalidCredentials
	}
	sess, err := s.issue(ctx, u.ID)
	if err != nil {
		return models.Session{}, models.User{}, err
	}
	return sess, u, nil
}

// IdentitySignIn exchanges an identity token for a session. An unknown
// subject creates a user and reports isNewUser.
func (s *AuthService) IdentitySignIn(ctx context.Context, idToken string) (models.Session, models.User, bool, error) {
	if s.verifier == nil {
		return models.Session{}, models.User{}, false, ErrInvalidCredentials
	}
	id, err := s.verifier.Verify(idToken)
	if err != nil {
		return models.Session{}, models.User{}, false, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	isNew := false
	u, err := s.users.GetUserBySubject(ctx, id.Subject)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u = models.User{ID: s.newID(), Username: id.displayName(), Email: id.Email, Subject: id.Subject}
		if err := s.users.CreateUser(ctx, u); err != nil {
			return models.Session{}, models.User{}, false, err
		}
		s.recorder.IncrementUsersCreated()
		isNew = true
	case err != nil:
		return models.Session{}, models.User{}, false, err
	}

	sess, err := s.issue(ctx, u.ID)
	if err != nil {
		return models.Session{}, models.User{}, false, err
	}
	return sess, u, isNew, nil
}

// Validate reports whether token names a live session. Unknown and expired
// tokens are false, not errors.
func (s *AuthService) Validate(ctx context.Context, token string) (bool, error) {
	_, err := s.session(ctx, token)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	return err == nil, err
}

// Refresh revokes token and issues a replacement for the same user.
func (s *AuthService) Refresh(ctx context.Context, token string) (string, error) {
	old, err := s.session(ctx, token)
	if err != nil {
		return "", err
	}
	sess, err := s.issue(ctx, old.UserID)
	if err != nil {
		return "", err
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return "", err
	}
	s.recorder.IncrementSessionsRevoked()
	return sess.Token, nil
}

// Logout revokes token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return err
	}
	s.recorder.IncrementSessionsRevoked()
	return nil
}

// Authenticate resolves token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.users.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUnauthorized
	}
	return u, err
}

// DeleteUser removes userID on behalf of requesterID.
func (s *AuthService) DeleteUser(ctx context.Context, requesterID, userID string) error {
	if requesterID != userID {
		return ErrForbidden
	}
	err := s.users.DeleteUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *AuthService) session(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrUnauthorized
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Session{}, ErrUnauthorized
	}
	if err != nil {
		return models.Session{}, err
	}
	if sess.Expired(s.now()) {
		return models.Session{}, ErrUnauthorized
	}
	return sess, nil
}

func (s *AuthService) issue(ctx context.Context, userID string) (models.Session, error) {
	sess := models.Session{
		Token:     s.newID(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.recorder.IncrementSessionsIssued()
	return sess, nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/observer/internal/idtoken"
	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/repository"
)

// memUsers is an in-memory UserRepository.
type memUsers struct {
	byID      map[string]models.User
	createErr error
	existsErr error
	// creates counts CreateUser calls that reached the store.
	creates int
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{byID: map[string]models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) UserExists(_ context.Context, username string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, err := m.GetUserByUsername(context.Background(), username)
	return err == nil, nil
}

func (m *memUsers) CreateUser(_ context.Context, u models.User) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) GetUserBySubject(_ context.Context, subject string) (models.User, error) {
	for _, u := range m.byID {
		if u.Subject != "" && u.Subject == subject {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) DeleteUser(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// memSessions is an in-memory SessionRepository.
type memSessions struct {
	byToken   map[string]models.Session
	createErr error
}

func (m *memSessions) CreateSession(_ context.Context, s models.Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byToken[s.Token] = s
	return nil
}

func (m *memSessions) GetSession(_ context.Context, token string) (models.Session, error) {
	if s, ok := m.byToken[token]; ok {
		return s, nil
	}
	return models.Session{}, repository.ErrNotFound
}

func (m *memSessions) DeleteSession(_ context.Context, token string) error {
	delete(m.byToken, token)
	return nil
}

type countingRecorder struct {
	issued, revoked, created int
}

func (c *countingRecorder) IncrementSessionsIssued()  { c.issued++ }
func (c *countingRecorder) IncrementSessionsRevoked() { c.revoked++ }
func (c *countingRecorder) IncrementUsersCreated()    { c.created++ }

const testSecret = "test-secret"

type authFixture struct {
	svc      *AuthService
	users    *memUsers
	sessions *memSessions
	rec      *countingRecorder
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	f := &authFixture{
		users:    newMemUsers(models.User{ID: "u1", Username: "alice", PasswordHash: hash}),
		sessions: &memSessions{byToken: map[string]models.Session{}},
		rec:      &countingRecorder{},
		now:      time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.users, f.sessions, NewHMACVerifier(testSecret), time.Hour,
		WithRecorder(f.rec),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func signIdentity(t *testing.T, secret, subject, email string, exp time.Time) string {
	t.Helper()
	s, err := idtoken.Issue(secret, subject, email, exp)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	sess, u, err := f.svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if u.ID != "u1" || sess.UserID != "u1" || sess.Token == "" {
		t.Errorf("unexpected result: %+v %+v", sess, u)
	}
	if !sess.ExpiresAt.Equal(f.now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", sess.ExpiresAt)
	}
	if f.rec.issued != 1 {
		t.Errorf("issued = %d, want 1", f.rec.issued)
	}

	for _, tc := range []struct{ user, pass string }{{"alice", "wrong"}, {"bob", "pw"}} {
		if _, _, err := f.svc.Login(ctx, tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) = %v; want ErrInvalidCredentials", tc.user, tc.pass, err)
		}
	}
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	sess, u, err := f.svc.Register(ctx, " carol ", "secret", "c@example.com")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.Username != "carol" || sess.UserID != u.ID {
		t.Errorf("unexpected result: %+v %+v", sess, u)
	}
	if _, _, err := f.svc.Login(ctx, "carol", "secret"); err != nil {
		t.Errorf("Login after Register: %v", err)
	}
	if _, _, err := f.svc.Register(ctx, "alice", "x", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("Register duplicate = %v; want ErrUserExists", err)
	}
	if _, _, err := f.svc.Register(ctx, "", "x", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Register empty = %v; want ErrInvalidInput", err)
	}
	if f.rec.created != 1 {
		t.Errorf("created = %d, want 1", f.rec.created)
	}
}

func TestRegister_TakenUsernameSkipsCreate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Register(ctx, "alice", "x", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("Register duplicate = %v; want ErrUserExists", err)
	}
	if f.users.creates != 0 {
		t.Errorf("CreateUser called %d times for a taken username", f.users.creates)
	}

	f.users.existsErr = errors.New("db down")
	_, _, err := f.svc.Register(ctx, "erin", "x", "")
	if err == nil || errors.Is(err, ErrUserExists) {
		t.Fatalf("Register with failing lookup = %v; want lookup error", err)
	}
	if f.users.creates != 0 {
		t.Errorf("CreateUser called %d times after a failed lookup", f.users.creates)
	}
}

func TestIdentitySignIn(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	token := signIdentity(t, testSecret, "apple-123", "dave@example.com", time.Now().Add(time.Hour))

	sess, u, isNew, err := f.svc.IdentitySignIn(ctx, token)
	if err != nil {
		t.Fatalf("IdentitySignIn returned error: %v", err)
	}
	if !isNew || u.Username != "dave" || u.Subject != "apple-123" || sess.Token == "" {
		t.Errorf("unexpected first sign-in: %+v %+v %v", sess, u, isNew)
	}

	_, again, isNew, err := f.svc.IdentitySignIn(ctx, token)
	if err != nil {
		t.Fatalf("second IdentitySignIn returned error: %v", err)
	}
	if isNew || again.ID != u.ID {
		t.Errorf("second sign-in should reuse user %q, got %+v new=%v", u.ID, again, isNew)
	}
}

func TestIdentitySignIn_Rejected(t *testing.T) {
	f := newAuthFixture(t)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, idtoken.Claims{}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": signIdentity(t, "other", "s", "", time.Now().Add(time.Hour)),
		"expired":      signIdentity(t, testSecret, "s", "", time.Now().Add(-time.Hour)),
		"no subject":   noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, _, err := f.svc.IdentitySignIn(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v; want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestValidateRefreshLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, _, err := f.svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := f.svc.Validate(ctx, sess.Token); err != nil || !ok {
		t.Fatalf("Validate = %v, %v; want true", ok, err)
	}
	if ok, err := f.svc.Validate(ctx, "unknown"); err != nil || ok {
		t.Errorf("Validate(unknown) = %v, %v; want false, nil", ok, err)
	}

	fresh, err := f.svc.Refresh(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if fresh == sess.Token {
		t.Error("Refresh returned the same token")
	}
	if ok, _ := f.svc.Validate(ctx, sess.Token); ok {
		t.Error("old token still valid after refresh")
	}

	u, err := f.svc.Authenticate(ctx, fresh)
	if err != nil || u.ID != "u1" {
		t.Errorf("Authenticate = %+v, %v", u, err)
	}

	if err := f.svc.Logout(ctx, fresh); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, fresh); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate after logout = %v; want ErrUnauthorized", err)
	}
	if f.rec.revoked != 2 {
		t.Errorf("revoked = %d, want 2", f.rec.revoked)
	}
}

func TestSessionExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, _, err := f.svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if ok, err := f.svc.Validate(ctx, sess.Token); err != nil || ok {
		t.Errorf("Validate expired = %v, %v; want false, nil", ok, err)
	}
	if _, err := f.svc.Refresh(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Refresh expired = %v; want ErrUnauthorized", err)
	}
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.sessions.createErr = errors.New("db down")
	if _, _, err := f.svc.Login(context.Background(), "alice", "pw"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if err := f.svc.DeleteUser(ctx, "u2", "u1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteUser other = %v; want ErrForbidden", err)
	}
	if err := f.svc.DeleteUser(ctx, "u1", "u1"); err != nil {
		t.Errorf("DeleteUser self = %v", err)
	}
	if err := f.svc.DeleteUser(ctx, "u1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteUser twice = %v; want ErrNotFound", err)
	}
}

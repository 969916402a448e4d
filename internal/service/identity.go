package service

import (
	"strings"

	"github.com/atinyakov/observer/internal/idtoken"
)

// Identity is the verified content of an identity-provider token.
type Identity struct {
	Subject string
	Email   string
}

func (i Identity) displayName() string {
	if name, _, ok := strings.Cut(i.Email, "@"); ok && name != "" {
		return name
	}
	return "user-" + i.Subject
}

// HMACVerifier verifies HS256 identity tokens signed with a shared secret.
type HMACVerifier struct {
	secret string
}

// NewHMACVerifier returns a verifier for tokens signed with secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

// Verify parses and validates idToken. Expired tokens and tokens without
// a subject are rejected.
func (v *HMACVerifier) Verify(idToken string) (Identity, error) {
	claims, err := idtoken.Parse(v.secret, idToken)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// Package credential persists the single session credential of an
// installation. Implementations are safe for concurrent use; concurrent
// writers are resolved last-write-wins.
package credential

import "errors"

// SessionKey is the key the credential is stored under.
const SessionKey = "authSession"

// ErrClosed is returned by stores whose backing resource has been closed.
var ErrClosed = errors.New("credential store closed")

// Store is the persistent key-value slot holding the session credential.
type Store interface {
	// Save replaces the stored credential. The token shape is not validated.
	Save(token string) error
	// Get returns the stored credential, or an empty string when none is held.
	Get() (string, error)
	// Clear removes the stored credential.
	Clear() error
}

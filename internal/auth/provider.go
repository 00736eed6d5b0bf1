// Package auth abstracts the identity provider. The engine treats
// credentials as opaque: it only needs a user id, and the absence of one
// means no ledger operation may run.
package auth

import "os"

// Provider yields the current session's user id.
type Provider interface {
	// CurrentUserID returns the opaque user id and whether a session exists.
	CurrentUserID() (string, bool)
}

// EnvProvider reads the user id from the environment, suitable for the
// daemon deployment where the session is provisioned out of band.
type EnvProvider struct {
	Var string
}

// CurrentUserID implements Provider.
func (p EnvProvider) CurrentUserID() (string, bool) {
	name := p.Var
	if name == "" {
		name = "FOLIOSYNC_USER_ID"
	}
	id := os.Getenv(name)
	return id, id != ""
}

// StaticProvider returns a fixed user id, used in demo mode and tests.
type StaticProvider struct {
	UserID string
}

// CurrentUserID implements Provider.
func (p StaticProvider) CurrentUserID() (string, bool) {
	return p.UserID, p.UserID != ""
}

package model

import "errors"

// Credential binds an identity (a mobile number) to its stored secret hash.
// Credentials are loaded once at startup and are read-only for the process
// lifetime; there is no account management.
type Credential struct {
	Identity     string
	PasswordHash string // bcrypt hash, never the plaintext secret
}

var (
	// ErrIdentityNotFound is returned when an identity has no credential entry
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrInvalidCredentials is returned when the identity/secret pair is incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)

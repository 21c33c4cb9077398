// Package credstore holds the read-only identity -> secret mapping the
// process authenticates against. It is loaded exactly once at startup; a
// missing or malformed file is fatal and never retried.
package credstore

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"tneaboard/internal/model"
)

// credentialsFile matches the on-disk schema:
//
//	credentials:
//	  users:
//	    "9000000001":
//	      password: "<bcrypt hash>"
type credentialsFile struct {
	Credentials struct {
		Users map[string]struct {
			Password string `yaml:"password"`
		} `yaml:"users"`
	} `yaml:"credentials"`
}

type Store struct {
	users map[string]string // identity -> bcrypt hash
}

// Load reads the credential file. The server cannot authenticate anyone
// without it, so any failure here aborts startup.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var parsed credentialsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if len(parsed.Credentials.Users) == 0 {
		return nil, fmt.Errorf("credentials file %s defines no users", path)
	}

	users := make(map[string]string, len(parsed.Credentials.Users))
	for identity, entry := range parsed.Credentials.Users {
		if entry.Password == "" {
			return nil, fmt.Errorf("credentials file: empty password hash for %q", identity)
		}
		users[identity] = entry.Password
	}

	return &Store{users: users}, nil
}

// Lookup returns the stored credential for an identity.
func (s *Store) Lookup(identity string) (model.Credential, error) {
	hash, ok := s.users[identity]
	if !ok {
		return model.Credential{}, model.ErrIdentityNotFound
	}
	return model.Credential{Identity: identity, PasswordHash: hash}, nil
}

// Verify compares a submitted secret against the stored hash. Unknown
// identities and wrong secrets are indistinguishable to the caller.
func (s *Store) Verify(identity, secret string) error {
	hash, ok := s.users[identity]
	if !ok {
		return model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return model.ErrInvalidCredentials
	}
	return nil
}

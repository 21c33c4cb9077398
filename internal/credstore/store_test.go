package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"tneaboard/internal/model"
)

func writeCredentials(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write credentials file: %v", err)
	}
	return path
}

func hashFor(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestLoad_Success(t *testing.T) {
	path := writeCredentials(t, `
credentials:
  users:
    "9000000001":
      password: "`+hashFor(t, "abc")+`"
    "9000000002":
      password: "`+hashFor(t, "xyz")+`"
`)

	store, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	cred, err := store.Lookup("9000000001")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if cred.Identity != "9000000001" {
		t.Errorf("expected identity 9000000001, got %q", cred.Identity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_NoUsers(t *testing.T) {
	path := writeCredentials(t, "credentials:\n  users: {}\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an empty user list")
	}
}

func TestVerify(t *testing.T) {
	path := writeCredentials(t, `
credentials:
  users:
    "9000000001":
      password: "`+hashFor(t, "abc")+`"
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := store.Verify("9000000001", "abc"); err != nil {
		t.Errorf("expected correct secret to verify, got: %v", err)
	}

	// Wrong secrets and unknown identities must be indistinguishable.
	if err := store.Verify("9000000001", "wrong"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong secret, got: %v", err)
	}
	if err := store.Verify("9999999999", "abc"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown identity, got: %v", err)
	}
}

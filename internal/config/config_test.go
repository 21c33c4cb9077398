package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.SessionStore != StoreFile {
		t.Errorf("expected default store file, got %q", cfg.SessionStore)
	}
	if cfg.SessionTimeout != 180*time.Second {
		t.Errorf("expected default timeout 180s, got %s", cfg.SessionTimeout)
	}
	if cfg.SessionFilePath != "device_session.yaml" {
		t.Errorf("expected default session file, got %q", cfg.SessionFilePath)
	}
	if cfg.CredentialsPath != "config.yaml" {
		t.Errorf("expected default credentials path, got %q", cfg.CredentialsPath)
	}
}

func TestLoadConfig_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when JWT_SECRET is unset")
	}
}

func TestLoadConfig_InvalidSessionStore(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_STORE", "memcached")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for an unknown session store")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_TIMEOUT", "60")
	t.Setenv("FETCH_TIMEOUT", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.SessionStore != StoreRedis {
		t.Errorf("expected redis store, got %q", cfg.SessionStore)
	}
	if cfg.SessionTimeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.SessionTimeout)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("expected 5s fetch timeout, got %s", cfg.FetchTimeout)
	}
}

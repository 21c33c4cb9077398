package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tneaboard/internal/credstore"
	"tneaboard/internal/model"
)

// =============================================================================
// MOCK REGISTRY
// =============================================================================
//
// SessionService depends on the SessionRegistry interface, so tests swap in a
// mock backed by a plain map. Each test can override individual operations to
// inject failures or races.

type mockRegistry struct {
	records map[string]model.SessionRecord

	getFn  func(ctx context.Context, identity string) (*model.SessionRecord, error)
	swapFn func(ctx context.Context, identity string, prev, next *model.SessionRecord) error

	swapCalls int
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{records: make(map[string]model.SessionRecord)}
}

func (m *mockRegistry) Get(ctx context.Context, identity string) (*model.SessionRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, identity)
	}
	rec, ok := m.records[identity]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return &rec, nil
}

func (m *mockRegistry) Put(ctx context.Context, rec model.SessionRecord) error {
	m.records[rec.Identity] = rec
	return nil
}

func (m *mockRegistry) Remove(ctx context.Context, identity string) error {
	delete(m.records, identity)
	return nil
}

func (m *mockRegistry) Swap(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
	m.swapCalls++
	if m.swapFn != nil {
		return m.swapFn(ctx, identity, prev, next)
	}
	current, ok := m.records[identity]
	if prev == nil {
		if ok {
			return model.ErrRecordChanged
		}
	} else {
		if !ok || current.DeviceID != prev.DeviceID || !current.LastSeen.Equal(prev.LastSeen) {
			return model.ErrRecordChanged
		}
	}
	if next == nil {
		delete(m.records, identity)
	} else {
		m.records[identity] = *next
	}
	return nil
}

func (m *mockRegistry) PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// =============================================================================
// TEST FIXTURES
// =============================================================================

const (
	testIdentity = "9000000001"
	testSecret   = "abc"
)

func testCredstore(t *testing.T) *credstore.Store {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "credentials:\n  users:\n    \"" + testIdentity + "\":\n      password: \"" + string(hash) + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	store, err := credstore.Load(path)
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	return store
}

// newTestService builds a SessionService with a controllable clock starting
// at base. Advance the clock through the returned setter.
func newTestService(t *testing.T, reg *mockRegistry) (*SessionService, func(time.Duration)) {
	t.Helper()
	base := time.Unix(1756400000, 0).UTC()
	current := base
	svc := NewSessionService(testCredstore(t), reg, 180*time.Second, nil)
	svc.now = func() time.Time { return current }
	advance := func(d time.Duration) { current = base.Add(d) }
	return svc, advance
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestLogin_WrongSecretLeavesNoState(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)

	err := svc.Login(context.Background(), testIdentity, "wrong", "dev-1")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got: %v", err)
	}
	if len(reg.records) != 0 {
		t.Errorf("failed login must not create a session record")
	}
	if reg.swapCalls != 0 {
		t.Errorf("failed login must not touch the registry, got %d swaps", reg.swapCalls)
	}
}

func TestLogin_ClaimsEmptySlot(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)

	if err := svc.Login(context.Background(), testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("expected login to succeed, got: %v", err)
	}
	rec, ok := reg.records[testIdentity]
	if !ok || rec.DeviceID != "dev-1" {
		t.Fatalf("expected dev-1 to own the slot, got: %+v", rec)
	}
}

func TestLogin_SameDeviceRefreshes(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	first := reg.records[testIdentity].LastSeen

	advance(30 * time.Second)
	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("second login on same device: %v", err)
	}
	if !reg.records[testIdentity].LastSeen.After(first) {
		t.Errorf("re-login on the owning device should refresh last seen")
	}
}

func TestLogin_SecondDeviceConflicts(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("first login: %v", err)
	}

	advance(10 * time.Second)
	err := svc.Login(ctx, testIdentity, testSecret, "dev-2")
	if !errors.Is(err, model.ErrDeviceConflict) {
		t.Fatalf("expected ErrDeviceConflict, got: %v", err)
	}
	if reg.records[testIdentity].DeviceID != "dev-1" {
		t.Errorf("conflicting login must not steal the slot")
	}
}

func TestLogin_SecondDeviceClaimsLapsedSlot(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("first login: %v", err)
	}

	// Past the 180s inactivity window the slot is free for the taking.
	advance(300 * time.Second)
	if err := svc.Login(ctx, testIdentity, testSecret, "dev-2"); err != nil {
		t.Fatalf("expected lapsed slot to be claimable, got: %v", err)
	}
	if reg.records[testIdentity].DeviceID != "dev-2" {
		t.Errorf("expected dev-2 to own the slot now")
	}
}

func TestLogin_RetriesLostSwapOnce(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)

	// First swap loses to a concurrent writer, second succeeds.
	failures := 1
	real := reg.Swap
	reg.swapFn = func(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
		if failures > 0 {
			failures--
			return model.ErrRecordChanged
		}
		reg.swapFn = nil
		return real(ctx, identity, prev, next)
	}

	if err := svc.Login(context.Background(), testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("expected login to win on retry, got: %v", err)
	}
}

func TestLogin_GivesUpAfterRepeatedSwapLosses(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)
	reg.swapFn = func(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
		return model.ErrRecordChanged
	}

	err := svc.Login(context.Background(), testIdentity, testSecret, "dev-1")
	if !errors.Is(err, model.ErrDeviceConflict) {
		t.Fatalf("expected ErrDeviceConflict after exhausted retries, got: %v", err)
	}
}

// =============================================================================
// HEARTBEAT TESTS
// =============================================================================

func TestHeartbeat_ReportsRemainingBeforeRefresh(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	advance(100 * time.Second)
	remaining, err := svc.Heartbeat(ctx, testIdentity, "dev-1")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if remaining != 80*time.Second {
		t.Errorf("expected 80s remaining, got %s", remaining)
	}

	// The heartbeat refreshed the record, so the full window is back.
	info, err := svc.Describe(ctx, testIdentity, "dev-1")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Remaining != 180 {
		t.Errorf("expected refreshed window of 180s, got %d", info.Remaining)
	}
}

func TestHeartbeat_MissingSessionIsExpired(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)

	_, err := svc.Heartbeat(context.Background(), testIdentity, "dev-1")
	if !errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got: %v", err)
	}
}

func TestHeartbeat_LapsedSessionRemoved(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	advance(180 * time.Second)
	_, err := svc.Heartbeat(ctx, testIdentity, "dev-1")
	if !errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired at exactly the timeout, got: %v", err)
	}
	if _, ok := reg.records[testIdentity]; ok {
		t.Errorf("lapsed record should have been removed")
	}
}

func TestHeartbeat_OtherDeviceMismatch(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := svc.Heartbeat(ctx, testIdentity, "dev-2")
	if !errors.Is(err, model.ErrDeviceMismatch) {
		t.Fatalf("expected ErrDeviceMismatch, got: %v", err)
	}
	if reg.records[testIdentity].DeviceID != "dev-1" {
		t.Errorf("mismatched heartbeat must not touch the record")
	}
}

// =============================================================================
// LOGOUT TESTS
// =============================================================================

func TestLogout_ReleasesOwnSlot(t *testing.T) {
	reg := newMockRegistry()
	svc, _ := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, testIdentity, "dev-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := reg.records[testIdentity]; ok {
		t.Errorf("logout should remove the record")
	}

	// Logging out again is a no-op.
	if err := svc.Logout(ctx, testIdentity, "dev-1"); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
}

func TestLogout_NonOwnerCannotEvict(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login dev-1: %v", err)
	}
	advance(300 * time.Second)
	if err := svc.Login(ctx, testIdentity, testSecret, "dev-2"); err != nil {
		t.Fatalf("login dev-2: %v", err)
	}

	// dev-1's stale logout must not evict dev-2.
	if err := svc.Logout(ctx, testIdentity, "dev-1"); err != nil {
		t.Fatalf("stale logout: %v", err)
	}
	if reg.records[testIdentity].DeviceID != "dev-2" {
		t.Errorf("stale logout evicted the current owner")
	}
}

// =============================================================================
// DESCRIBE TESTS
// =============================================================================

func TestDescribe_DoesNotRefresh(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	advance(100 * time.Second)
	info, err := svc.Describe(ctx, testIdentity, "dev-1")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Remaining != 80 {
		t.Errorf("expected 80s remaining, got %d", info.Remaining)
	}

	// A second describe at the same instant sees the same value.
	info, err = svc.Describe(ctx, testIdentity, "dev-1")
	if err != nil {
		t.Fatalf("second describe: %v", err)
	}
	if info.Remaining != 80 {
		t.Errorf("describe must not refresh, got %d", info.Remaining)
	}
}

func TestDescribe_LapsedSessionStaysUntilHeartbeat(t *testing.T) {
	reg := newMockRegistry()
	svc, advance := newTestService(t, reg)
	ctx := context.Background()

	if err := svc.Login(ctx, testIdentity, testSecret, "dev-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	advance(200 * time.Second)
	_, err := svc.Describe(ctx, testIdentity, "dev-1")
	if !errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got: %v", err)
	}
	// Describe is read-only; the lapsed record is still there.
	if _, ok := reg.records[testIdentity]; !ok {
		t.Errorf("describe must not remove the record")
	}
}

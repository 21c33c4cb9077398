package model

import (
	"errors"
	"time"
)

// SessionRecord binds an identity to the device currently owning its session
// slot. There is at most one record per identity, never one per device; the
// DeviceID field disambiguates which client holds the slot.
type SessionRecord struct {
	Identity string    `db:"identity" json:"identity"`
	DeviceID string    `db:"device_id" json:"device_id"`
	LastSeen time.Time `db:"last_seen" json:"last_seen"`
}

// ExpiredAt reports whether the record is stale at the given instant.
func (r *SessionRecord) ExpiredAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastSeen) >= timeout
}

// Remaining returns the inactivity window left at the given instant.
// Never negative.
func (r *SessionRecord) Remaining(now time.Time, timeout time.Duration) time.Duration {
	left := timeout - now.Sub(r.LastSeen)
	if left < 0 {
		return 0
	}
	return left
}

// Session lifecycle errors
var (
	// ErrSessionNotFound is returned by the registry when an identity has no record
	ErrSessionNotFound = errors.New("session not found")

	// ErrRecordChanged is returned when a compare-and-swap loses to a concurrent writer
	ErrRecordChanged = errors.New("session record changed")

	// ErrDeviceConflict is returned when another device holds a still-live session
	ErrDeviceConflict = errors.New("already logged in on another device")

	// ErrSessionExpired is returned when the caller's session has lapsed
	ErrSessionExpired = errors.New("session expired")

	// ErrDeviceMismatch is returned when another device has taken over the slot
	ErrDeviceMismatch = errors.New("session owned by another device")
)

// Session API error codes (used in HTTP responses)
const (
	CodeDeviceConflict = "DEVICE_CONFLICT"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeDeviceMismatch = "DEVICE_MISMATCH"
	CodeTokenInvalid   = "TOKEN_INVALID"
)

// LoginRequest is the request body for POST /auth/login. DeviceID is the
// opaque per-client token; when a client logs in for the first time and has
// none yet, the server mints one and echoes it back.
type LoginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
	ExpiresIn   int    `json:"expires_in"` // seconds of inactivity before the session lapses
}

// HeartbeatResponse reports how long the session had left before this
// heartbeat refreshed it.
type HeartbeatResponse struct {
	Remaining int `json:"remaining"`
}

// SessionInfo describes the caller's current session.
type SessionInfo struct {
	Identity  string `json:"identity"`
	DeviceID  string `json:"device_id"`
	Remaining int    `json:"remaining"`
}

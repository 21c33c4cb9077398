package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types on the auth audit stream
const (
	EventLoginSucceeded = "login_succeeded"
	EventDeviceConflict = "device_conflict"
	EventDeviceMismatch = "device_mismatch"
	EventSessionExpired = "session_expired"
	EventLogout         = "logout"
)

// StreamAudit is the Redis stream auth events are published to.
const StreamAudit = "stream:auth_audit"

// ConsumerGroupAudit is the consumer group name for audit workers.
const ConsumerGroupAudit = "audit_workers"

// AuditEvent describes one session-lifecycle event. Publishing is
// fire-and-forget: session decisions never depend on the stream.
type AuditEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when the event occurred
	Identity  string `json:"identity"`
	DeviceID  string `json:"device_id,omitempty"`

	// OwnerDeviceID is the device that held the slot when a conflict or
	// mismatch was detected.
	OwnerDeviceID string `json:"owner_device_id,omitempty"`
}

// NewLoginEvent records a successful login claiming the identity's slot.
func NewLoginEvent(identity, deviceID string) AuditEvent {
	return AuditEvent{
		Type:      EventLoginSucceeded,
		Timestamp: time.Now().Unix(),
		Identity:  identity,
		DeviceID:  deviceID,
	}
}

// NewDeviceConflictEvent records a login rejected because another device's
// session was still live.
func NewDeviceConflictEvent(identity, deviceID, ownerDeviceID string) AuditEvent {
	return AuditEvent{
		Type:          EventDeviceConflict,
		Timestamp:     time.Now().Unix(),
		Identity:      identity,
		DeviceID:      deviceID,
		OwnerDeviceID: ownerDeviceID,
	}
}

// NewDeviceMismatchEvent records a heartbeat from a device that no longer
// owns the slot.
func NewDeviceMismatchEvent(identity, deviceID, ownerDeviceID string) AuditEvent {
	return AuditEvent{
		Type:          EventDeviceMismatch,
		Timestamp:     time.Now().Unix(),
		Identity:      identity,
		DeviceID:      deviceID,
		OwnerDeviceID: ownerDeviceID,
	}
}

// NewSessionExpiredEvent records a session observed stale and removed.
func NewSessionExpiredEvent(identity, deviceID string) AuditEvent {
	return AuditEvent{
		Type:      EventSessionExpired,
		Timestamp: time.Now().Unix(),
		Identity:  identity,
		DeviceID:  deviceID,
	}
}

// NewLogoutEvent records an explicit logout by the owning device.
func NewLogoutEvent(identity, deviceID string) AuditEvent {
	return AuditEvent{
		Type:      EventLogout,
		Timestamp: time.Now().Unix(),
		Identity:  identity,
		DeviceID:  deviceID,
	}
}

// ToMap converts the event to field-value pairs for Redis XADD. The full
// event travels JSON-encoded in a "data" field.
func (e AuditEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseAuditEvent parses an AuditEvent from Redis stream message values.
func ParseAuditEvent(values map[string]interface{}) (AuditEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return AuditEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return AuditEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

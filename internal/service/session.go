package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tneaboard/internal/credstore"
	"tneaboard/internal/model"
	"tneaboard/internal/queue"
	"tneaboard/internal/repository"
)

// DefaultSessionTimeout is the inactivity window after which a session lapses.
const DefaultSessionTimeout = 180 * time.Second

// swapAttempts bounds the optimistic-retry loop around the registry CAS.
const swapAttempts = 3

// SessionService enforces the single-active-device rule: at most one live
// session record per identity, owned by the device token stored in it.
// Liveness is purely wall-clock (now - last_seen < timeout) and is checked
// lazily on each call; nothing expires sessions in the background.
type SessionService struct {
	creds    *credstore.Store
	registry repository.SessionRegistry
	timeout  time.Duration
	audit    queue.Publisher // optional, fire-and-forget
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionService(creds *credstore.Store, registry repository.SessionRegistry, timeout time.Duration, logger *zap.Logger) *SessionService {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		creds:    creds,
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// SetAuditPublisher wires the optional audit stream.
func (s *SessionService) SetAuditPublisher(p queue.Publisher) {
	s.audit = p
}

// Timeout returns the configured inactivity window.
func (s *SessionService) Timeout() time.Duration {
	return s.timeout
}

// Login authenticates identity/secret and claims the identity's session slot
// for deviceID. The slot is granted when it is free, already owned by this
// device, or held by a device whose session has lapsed; a still-live session
// on another device is model.ErrDeviceConflict and is never overwritten.
func (s *SessionService) Login(ctx context.Context, identity, secret, deviceID string) error {
	if err := s.creds.Verify(identity, secret); err != nil {
		// No state is mutated on a bad credential.
		return err
	}

	for attempt := 0; attempt < swapAttempts; attempt++ {
		now := s.now()

		prev, err := s.registry.Get(ctx, identity)
		if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
			return fmt.Errorf("read session record: %w", err)
		}

		if prev != nil && prev.DeviceID != deviceID && !prev.ExpiredAt(now, s.timeout) {
			s.publishAudit(ctx, queue.NewDeviceConflictEvent(identity, deviceID, prev.DeviceID))
			return model.ErrDeviceConflict
		}

		next := model.SessionRecord{Identity: identity, DeviceID: deviceID, LastSeen: now}
		err = s.registry.Swap(ctx, identity, prev, &next)
		if err == nil {
			s.logger.Info("login succeeded",
				zap.String("identity", identity),
				zap.String("device_id", deviceID))
			s.publishAudit(ctx, queue.NewLoginEvent(identity, deviceID))
			return nil
		}
		if !errors.Is(err, model.ErrRecordChanged) {
			return fmt.Errorf("write session record: %w", err)
		}
		// Lost the race; re-read and re-evaluate.
	}

	// Repeated CAS losses mean another writer is actively holding the slot.
	return model.ErrDeviceConflict
}

// Heartbeat refreshes the caller's session and returns the time that was
// remaining before the refresh. An absent or lapsed record is
// model.ErrSessionExpired; a record owned by a different device is
// model.ErrDeviceMismatch. Both force the caller to log in again.
func (s *SessionService) Heartbeat(ctx context.Context, identity, deviceID string) (time.Duration, error) {
	for attempt := 0; attempt < swapAttempts; attempt++ {
		now := s.now()

		prev, err := s.registry.Get(ctx, identity)
		if err != nil {
			if errors.Is(err, model.ErrSessionNotFound) {
				return 0, model.ErrSessionExpired
			}
			return 0, fmt.Errorf("read session record: %w", err)
		}

		if prev.DeviceID != deviceID {
			s.publishAudit(ctx, queue.NewDeviceMismatchEvent(identity, deviceID, prev.DeviceID))
			return 0, model.ErrDeviceMismatch
		}

		if prev.ExpiredAt(now, s.timeout) {
			err := s.registry.Swap(ctx, identity, prev, nil)
			if err != nil && !errors.Is(err, model.ErrRecordChanged) {
				return 0, fmt.Errorf("remove expired session: %w", err)
			}
			// Losing this swap means the record was already replaced or
			// removed; either way this device's session is gone.
			s.publishAudit(ctx, queue.NewSessionExpiredEvent(identity, deviceID))
			return 0, model.ErrSessionExpired
		}

		remaining := prev.Remaining(now, s.timeout)
		next := *prev
		next.LastSeen = now
		err = s.registry.Swap(ctx, identity, prev, &next)
		if err == nil {
			return remaining, nil
		}
		if !errors.Is(err, model.ErrRecordChanged) {
			return 0, fmt.Errorf("refresh session record: %w", err)
		}
	}

	return 0, model.ErrSessionExpired
}

// Describe reports the caller's session without refreshing it. Remaining time
// is a pure function of (now, last_seen); no timers are involved.
func (s *SessionService) Describe(ctx context.Context, identity, deviceID string) (*model.SessionInfo, error) {
	now := s.now()

	rec, err := s.registry.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.ErrSessionExpired
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	if rec.DeviceID != deviceID {
		return nil, model.ErrDeviceMismatch
	}
	if rec.ExpiredAt(now, s.timeout) {
		// Removal is left to the next heartbeat; expiry stays lazy.
		return nil, model.ErrSessionExpired
	}

	return &model.SessionInfo{
		Identity:  identity,
		DeviceID:  deviceID,
		Remaining: int(rec.Remaining(now, s.timeout).Seconds()),
	}, nil
}

// Logout releases the identity's slot, but only when the calling device owns
// it: a stale caller cannot evict the device that has since taken over.
// Logging out an already-absent session is a no-op.
func (s *SessionService) Logout(ctx context.Context, identity, deviceID string) error {
	prev, err := s.registry.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("read session record: %w", err)
	}

	if prev.DeviceID != deviceID {
		s.logger.Warn("logout from non-owning device ignored",
			zap.String("identity", identity),
			zap.String("device_id", deviceID))
		return nil
	}

	err = s.registry.Swap(ctx, identity, prev, nil)
	if err != nil && !errors.Is(err, model.ErrRecordChanged) {
		return fmt.Errorf("remove session record: %w", err)
	}

	s.publishAudit(ctx, queue.NewLogoutEvent(identity, deviceID))
	return nil
}

func (s *SessionService) publishAudit(ctx context.Context, event queue.AuditEvent) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Publish(ctx, queue.StreamAudit, event); err != nil {
		s.logger.Debug("audit publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tneaboard/internal/queue"
)

const (
	auditCounterPrefix = "audit:cnt:"
	auditRecentKey     = "audit:recent"
	auditOffendersKey  = "audit:conflicts:identity:24h"

	auditCounterWindow = 24 * time.Hour
	auditRecentCap     = 200
)

// AuditSummary is a rolling 24h view of session security events.
type AuditSummary struct {
	Logins           int64 `json:"logins"`
	DeviceConflicts  int64 `json:"device_conflicts"`
	DeviceMismatches int64 `json:"device_mismatches"`
	SessionExpiries  int64 `json:"session_expiries"`
	Logouts          int64 `json:"logouts"`
}

// RedisAuditSink records processed audit events as rolling counters, a capped
// recent-events list and a per-identity conflict leaderboard.
type RedisAuditSink struct {
	client *goredis.Client
}

func NewRedisAuditSink(client *goredis.Client) *RedisAuditSink {
	return &RedisAuditSink{client: client}
}

func (s *RedisAuditSink) RecordEvent(ctx context.Context, event queue.AuditEvent) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	counter := auditCounterPrefix + event.Type

	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, auditCounterWindow)
	pipe.LPush(ctx, auditRecentKey, raw)
	pipe.LTrim(ctx, auditRecentKey, 0, auditRecentCap-1)
	if event.Type == queue.EventDeviceConflict {
		pipe.ZIncrBy(ctx, auditOffendersKey, 1, event.Identity)
		pipe.Expire(ctx, auditOffendersKey, auditCounterWindow)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Summary returns the rolling counters for every event type.
func (s *RedisAuditSink) Summary(ctx context.Context) (AuditSummary, error) {
	if s.client == nil {
		return AuditSummary{}, fmt.Errorf("redis client is nil")
	}

	var summary AuditSummary
	reads := []struct {
		event string
		dest  *int64
	}{
		{queue.EventLoginSucceeded, &summary.Logins},
		{queue.EventDeviceConflict, &summary.DeviceConflicts},
		{queue.EventDeviceMismatch, &summary.DeviceMismatches},
		{queue.EventSessionExpired, &summary.SessionExpiries},
		{queue.EventLogout, &summary.Logouts},
	}

	for _, read := range reads {
		value, err := s.client.Get(ctx, auditCounterPrefix+read.event).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return AuditSummary{}, fmt.Errorf("read audit counter: %w", err)
		}
		if _, err := fmt.Sscan(value, read.dest); err != nil {
			return AuditSummary{}, fmt.Errorf("parse audit counter: %w", err)
		}
	}

	return summary, nil
}

// RecentEvents returns up to limit most recent audit events, newest first.
func (s *RedisAuditSink) RecentEvents(ctx context.Context, limit int64) ([]queue.AuditEvent, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 || limit > auditRecentCap {
		limit = 50
	}

	raws, err := s.client.LRange(ctx, auditRecentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent audit events: %w", err)
	}

	events := make([]queue.AuditEvent, 0, len(raws))
	for _, raw := range raws {
		var event queue.AuditEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

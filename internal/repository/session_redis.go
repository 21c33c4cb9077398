package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tneaboard/internal/model"
)

const sessionKeyPrefix = "session:"

// RedisSessionRegistry keeps one hash per identity under session:<identity>.
// Swap is optimistic: WATCH the key, compare the stored fields, commit in a
// transaction. A concurrent writer aborts the transaction, which surfaces as
// model.ErrRecordChanged. Timestamps are stored as whole epoch seconds.
type RedisSessionRegistry struct {
	client *goredis.Client
}

func NewRedisSessionRegistry(client *goredis.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client}
}

func sessionKey(identity string) string {
	return sessionKeyPrefix + identity
}

func sessionFields(rec model.SessionRecord) map[string]interface{} {
	return map[string]interface{}{
		"device_id": rec.DeviceID,
		"last_seen": rec.LastSeen.Unix(),
	}
}

func parseSessionHash(identity string, values map[string]string) (*model.SessionRecord, error) {
	lastSeen, err := strconv.ParseInt(values["last_seen"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session last_seen: %w", err)
	}
	return &model.SessionRecord{
		Identity: identity,
		DeviceID: values["device_id"],
		LastSeen: time.Unix(lastSeen, 0).UTC(),
	}, nil
}

func (r *RedisSessionRegistry) Get(ctx context.Context, identity string) (*model.SessionRecord, error) {
	values, err := r.client.HGetAll(ctx, sessionKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return nil, model.ErrSessionNotFound
	}
	return parseSessionHash(identity, values)
}

func (r *RedisSessionRegistry) Put(ctx context.Context, rec model.SessionRecord) error {
	if err := r.client.HSet(ctx, sessionKey(rec.Identity), sessionFields(rec)).Err(); err != nil {
		return fmt.Errorf("put session hash: %w", err)
	}
	return nil
}

func (r *RedisSessionRegistry) Remove(ctx context.Context, identity string) error {
	if err := r.client.Del(ctx, sessionKey(identity)).Err(); err != nil {
		return fmt.Errorf("delete session hash: %w", err)
	}
	return nil
}

func (r *RedisSessionRegistry) Swap(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
	key := sessionKey(identity)

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("get session hash: %w", err)
		}

		if prev == nil {
			if len(values) != 0 {
				return model.ErrRecordChanged
			}
		} else {
			if len(values) == 0 ||
				values["device_id"] != prev.DeviceID ||
				values["last_seen"] != strconv.FormatInt(prev.LastSeen.Unix(), 10) {
				return model.ErrRecordChanged
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.HSet(ctx, key, sessionFields(*next))
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		return model.ErrRecordChanged
	}
	return err
}

func (r *RedisSessionRegistry) PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	var removed int64

	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.HGet(ctx, key, "last_seen").Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("read session last_seen: %w", err)
		}
		lastSeen, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || lastSeen >= cutoff {
			continue
		}
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("delete stale session: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan sessions: %w", err)
	}
	return removed, nil
}

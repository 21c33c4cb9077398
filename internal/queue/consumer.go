package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is one entry read from the audit stream.
type Message struct {
	ID    string // Redis message ID (e.g. "1702000000000-0")
	Event AuditEvent
}

// Consumer reads events from a stream through a consumer group.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist yet.
	// Called once at worker startup.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read reads up to count new messages for this consumer, blocking up to
	// block for fresh ones.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending re-reads messages that were delivered to this consumer but
	// never acknowledged (crash recovery).
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack acknowledges processed messages, removing them from the pending list.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
}

// NewConsumer creates a Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client) *RedisConsumer {
	return &RedisConsumer{client: client}
}

// EnsureGroup creates the group with MKSTREAM so the stream itself is created
// when missing. An already-existing group is fine.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	// ">" selects messages never delivered to any consumer in the group.
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return collectMessages(streams), nil
}

// ReadPending replays this consumer's unacknowledged backlog from ID 0.
func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup pending: %w", err)
	}
	return collectMessages(streams), nil
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func collectMessages(streams []redis.XStream) []Message {
	var messages []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			event, err := ParseAuditEvent(m.Values)
			if err != nil {
				// Malformed entries are skipped; Ack'ing them is the
				// worker's call after it logs the failure.
				event = AuditEvent{Type: "unknown"}
			}
			messages = append(messages, Message{ID: m.ID, Event: event})
		}
	}
	return messages
}

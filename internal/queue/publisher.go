package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen caps the audit stream; old entries are trimmed approximately.
const streamMaxLen = 10000

// Publisher publishes events to a stream.
type Publisher interface {
	// Publish adds an event to the stream and returns the message ID.
	Publish(ctx context.Context, stream string, event AuditEvent) (string, error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Publish adds an event via XADD with an auto-generated message ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event AuditEvent) (string, error) {
	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.logger.Debug("audit event published",
		zap.String("stream", stream),
		zap.String("type", event.Type),
		zap.String("identity", event.Identity),
		zap.String("message_id", messageID))

	return messageID, nil
}

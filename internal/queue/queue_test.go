package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishReadAck(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	publisher := NewPublisher(client, nil)
	consumer := NewConsumer(client)

	if err := consumer.EnsureGroup(ctx, StreamAudit, ConsumerGroupAudit); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	// Creating the group twice must be harmless.
	if err := consumer.EnsureGroup(ctx, StreamAudit, ConsumerGroupAudit); err != nil {
		t.Fatalf("ensure group again: %v", err)
	}

	event := NewDeviceConflictEvent("9000000001", "dev-2", "dev-1")
	if _, err := publisher.Publish(ctx, StreamAudit, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	messages, err := consumer.Read(ctx, StreamAudit, ConsumerGroupAudit, "worker-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	got := messages[0].Event
	if got.Type != EventDeviceConflict || got.Identity != "9000000001" || got.OwnerDeviceID != "dev-1" {
		t.Errorf("event did not survive the round trip: %+v", got)
	}

	// Unacked messages replay as pending until acknowledged.
	pending, err := consumer.ReadPending(ctx, StreamAudit, ConsumerGroupAudit, "worker-1", 10)
	if err != nil {
		t.Fatalf("read pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	if err := consumer.Ack(ctx, StreamAudit, ConsumerGroupAudit, messages[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	pending, err = consumer.ReadPending(ctx, StreamAudit, ConsumerGroupAudit, "worker-1", 10)
	if err != nil {
		t.Fatalf("read pending after ack: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty backlog after ack, got %d", len(pending))
	}
}

package worker

import (
	"context"
	"errors"
	"testing"

	"tneaboard/internal/queue"
)

type mockSink struct {
	recordFn func(ctx context.Context, event queue.AuditEvent) error
	recorded []queue.AuditEvent
}

func (m *mockSink) RecordEvent(ctx context.Context, event queue.AuditEvent) error {
	m.recorded = append(m.recorded, event)
	if m.recordFn != nil {
		return m.recordFn(ctx, event)
	}
	return nil
}

func TestHandleEvent_RecordsKnownTypes(t *testing.T) {
	sink := &mockSink{}
	h := NewHandler(sink, nil)

	events := []queue.AuditEvent{
		queue.NewLoginEvent("9000000001", "dev-1"),
		queue.NewDeviceConflictEvent("9000000001", "dev-2", "dev-1"),
		queue.NewLogoutEvent("9000000001", "dev-1"),
	}
	for _, event := range events {
		if err := h.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle %s: %v", event.Type, err)
		}
	}
	if len(sink.recorded) != len(events) {
		t.Errorf("expected %d recorded events, got %d", len(events), len(sink.recorded))
	}
}

func TestHandleEvent_DropsUnknownType(t *testing.T) {
	sink := &mockSink{}
	h := NewHandler(sink, nil)

	// Unknown types are acked (nil error) but never recorded.
	err := h.HandleEvent(context.Background(), queue.AuditEvent{Type: "unknown"})
	if err != nil {
		t.Fatalf("expected unknown event to be dropped without error, got: %v", err)
	}
	if len(sink.recorded) != 0 {
		t.Errorf("unknown event must not reach the sink")
	}
}

func TestHandleEvent_PropagatesSinkFailure(t *testing.T) {
	cause := errors.New("redis down")
	sink := &mockSink{
		recordFn: func(ctx context.Context, event queue.AuditEvent) error { return cause },
	}
	h := NewHandler(sink, nil)

	err := h.HandleEvent(context.Background(), queue.NewLoginEvent("9000000001", "dev-1"))
	if !errors.Is(err, cause) {
		t.Fatalf("expected sink failure to propagate so the message is retried, got: %v", err)
	}
}

package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tneaboard/internal/queue"
)

// AuditSink records processed audit events. Abstracting it keeps the worker
// off a concrete Redis dependency in tests.
type AuditSink interface {
	RecordEvent(ctx context.Context, event queue.AuditEvent) error
}

// Handler processes audit events read from the stream.
type Handler struct {
	sink   AuditSink
	logger *zap.Logger
}

func NewHandler(sink AuditSink, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sink: sink, logger: logger}
}

// HandleEvent records one event. Unknown event types are acknowledged and
// dropped so a bad entry can't wedge the stream.
func (h *Handler) HandleEvent(ctx context.Context, event queue.AuditEvent) error {
	switch event.Type {
	case queue.EventLoginSucceeded,
		queue.EventDeviceConflict,
		queue.EventDeviceMismatch,
		queue.EventSessionExpired,
		queue.EventLogout:
	default:
		h.logger.Warn("dropping unknown audit event", zap.String("type", event.Type))
		return nil
	}

	if err := h.sink.RecordEvent(ctx, event); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	h.logger.Debug("audit event recorded",
		zap.String("type", event.Type),
		zap.String("identity", event.Identity))
	return nil
}

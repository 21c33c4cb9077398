package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tneaboard/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates the goroutines consuming the audit stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	logger      *zap.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
}

// NewManager creates a new worker manager. Zero config fields fall back to
// the defaults.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		logger:      logger,
	}
}

// Start begins the worker goroutines. Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamAudit, queue.ConsumerGroupAudit); err != nil {
		return err
	}

	m.logger.Info("starting audit workers",
		zap.Int("count", m.workerCount),
		zap.String("stream", queue.StreamAudit))

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}
	return nil
}

// Stop gracefully shuts down all workers, blocking until they finish.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("audit workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	// Replay anything delivered to this consumer but never acknowledged
	// before a previous shutdown.
	m.processPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			m.processBatch(workerID, consumerName)
		}
	}
}

func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamAudit, queue.ConsumerGroupAudit, consumerName, m.batchSize)
		if err != nil {
			m.logger.Warn("read pending audit messages failed",
				zap.Int("worker", workerID), zap.Error(err))
			return
		}
		if len(messages) == 0 {
			return
		}
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processBatch(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamAudit, queue.ConsumerGroupAudit, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warn("read audit messages failed",
			zap.Int("worker", workerID), zap.Error(err))
		// Back off briefly so a down Redis doesn't spin the loop.
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	m.handleMessages(workerID, messages)
}

func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			m.logger.Warn("audit event handling failed",
				zap.Int("worker", workerID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			// Left unacknowledged; it will be retried as pending.
			continue
		}
		if err := m.consumer.Ack(m.ctx, queue.StreamAudit, queue.ConsumerGroupAudit, msg.ID); err != nil {
			m.logger.Warn("audit ack failed",
				zap.Int("worker", workerID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("audit-worker-%d", workerID)
}

package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tneaboard/internal/repository"
)

// Job garbage-collects session records left idle far beyond the session
// timeout. Expiry itself stays lazy. Every caller already treats these
// records as expired; the job only keeps the store from growing forever.
type Job struct {
	registry  repository.SessionRegistry
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

func New(registry repository.SessionRegistry, retention, interval time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		registry:  registry,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run performs a single prune pass.
func (j *Job) Run(ctx context.Context) error {
	removed, err := j.registry.PruneExpired(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("prune stale sessions: %w", err)
	}
	if removed > 0 {
		j.logger.Info("pruned stale session records", zap.Int64("removed", removed))
	}
	return nil
}

// Start runs the job on its interval until ctx is cancelled.
func (j *Job) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := j.Run(ctx); err != nil {
					j.logger.Warn("session cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

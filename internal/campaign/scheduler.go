// internal/campaign/scheduler.go

package campaign

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepJob periodically completes active campaigns whose end date has
// passed, so the lifecycle doesn't depend on anyone polling.
type SweepJob struct {
	service  Service
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewSweepJob creates a new campaign sweep job
func NewSweepJob(service Service, interval time.Duration, logger *zap.Logger) *SweepJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}

	return &SweepJob{
		service:  service,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until stopped or the context ends
func (j *SweepJob) Start(ctx context.Context) {
	j.logger.Info("starting campaign sweep job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-j.stopCh:
			j.logger.Info("stopping campaign sweep job")
			return
		case <-ctx.Done():
			j.logger.Info("context cancelled, stopping campaign sweep job")
			return
		}
	}
}

// Stop stops the sweep job
func (j *SweepJob) Stop() {
	close(j.stopCh)
}

func (j *SweepJob) sweep(ctx context.Context) {
	if completed := j.service.CompleteExpired(ctx); completed > 0 {
		j.logger.Info("completed expired campaigns", zap.Int("count", completed))
	}
}

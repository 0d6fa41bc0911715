// internal/analytics/scheduler.go

package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecomputeJob keeps the cached analytics snapshot fresh without anyone
// having to ask for it.
type RecomputeJob struct {
	service  Service
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewRecomputeJob creates a new analytics recompute job
func NewRecomputeJob(service Service, interval time.Duration, logger *zap.Logger) *RecomputeJob {
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &RecomputeJob{
		service:  service,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the recompute loop until stopped or the context ends
func (j *RecomputeJob) Start(ctx context.Context) {
	j.logger.Info("starting analytics recompute job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.recompute(ctx)

	for {
		select {
		case <-ticker.C:
			j.recompute(ctx)
		case <-j.stopCh:
			j.logger.Info("stopping analytics recompute job")
			return
		case <-ctx.Done():
			j.logger.Info("context cancelled, stopping analytics recompute job")
			return
		}
	}
}

// Stop stops the recompute job
func (j *RecomputeJob) Stop() {
	close(j.stopCh)
}

func (j *RecomputeJob) recompute(ctx context.Context) {
	report := j.service.Recompute(ctx)
	j.logger.Debug("analytics recomputed",
		zap.Int("totalSent", report.Summary.TotalSent),
		zap.Int("insights", len(report.Insights)))
}

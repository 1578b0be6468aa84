package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/metrics"
)

type licenseStatsSource interface {
	Stats(ctx context.Context, now time.Time) (*entities.LicenseStats, error)
}

// LicenseStatsJob publishes license counts by state as gauges
type LicenseStatsJob struct {
	repo     licenseStatsSource
	metrics  *metrics.Registry
	interval time.Duration
	now      func() time.Time
	stop     chan struct{}
}

func NewLicenseStatsJob(repo licenseStatsSource, m *metrics.Registry, interval time.Duration) *LicenseStatsJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LicenseStatsJob{
		repo:     repo,
		metrics:  m,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start refreshes the gauges once, then on every tick until ctx is done or
// Stop is called.
func (j *LicenseStatsJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting license stats job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "license stats job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "license stats job stopped")
			return
		case <-ticker.C:
			j.refresh(ctx)
		}
	}
}

func (j *LicenseStatsJob) Stop() {
	close(j.stop)
}

func (j *LicenseStatsJob) refresh(ctx context.Context) {
	stats, err := j.repo.Stats(ctx, j.now().UTC())
	if err != nil {
		logger.Error(ctx, "failed to count licenses", zap.Error(err))
		return
	}

	gauges := j.metrics.LicensesByState
	gauges.WithLabelValues("total").Set(float64(stats.Total))
	gauges.WithLabelValues("unlimited").Set(float64(stats.Unlimited))
	gauges.WithLabelValues("not_activated").Set(float64(stats.NotActivated))
	gauges.WithLabelValues("activated").Set(float64(stats.Activated))
	gauges.WithLabelValues("expired").Set(float64(stats.Expired))
	gauges.WithLabelValues("banned").Set(float64(stats.Banned))
	gauges.WithLabelValues("paused").Set(float64(stats.Paused))
	gauges.WithLabelValues("inactive").Set(float64(stats.Inactive))

	logger.Debug(ctx, "license stats refreshed", zap.Int64("total", stats.Total))
}

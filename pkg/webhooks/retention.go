package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/observability"
)

// RetentionConfig schedules delivery log purges. An empty Schedule disables them.
type RetentionConfig struct {
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Retention periodically deletes delivery logs older than MaxAge
type Retention struct {
	cfg     RetentionConfig
	cron    *cron.Cron
	logs    *LogStore
	caches  *cache.Group
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewRetention validates the schedule and registers the purge job. The
// scheduler does not run until Start.
func NewRetention(cfg RetentionConfig, logs *LogStore, caches *cache.Group, metrics *observability.Metrics, logger logrus.FieldLogger) (*Retention, error) {
	r := &Retention{
		cfg:     cfg,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logs:    logs,
		caches:  caches,
		metrics: metrics,
		logger:  logger.WithField("component", "retention"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if cfg.Schedule == "" {
		return r, nil
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", cfg.MaxAge)
	}

	_, err := r.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.WithError(err).Error("delivery log purge failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}
	return r, nil
}

// Enabled reports whether a purge schedule is configured
func (r *Retention) Enabled() bool {
	return r.cfg.Schedule != ""
}

// Start runs the scheduler in the background
func (r *Retention) Start() {
	if !r.Enabled() {
		r.logger.Info("delivery log retention disabled")
		return
	}
	r.cron.Start()
	r.logger.WithFields(logrus.Fields{"schedule": r.cfg.Schedule, "max_age": r.cfg.MaxAge.String()}).Info("delivery log retention started")
}

// Stop halts the scheduler and waits for a running purge to finish or ctx to end
func (r *Retention) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce purges logs received more than MaxAge ago
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.cfg.MaxAge)
	n, err := r.logs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if r.caches != nil {
			r.caches.InvalidateLogs(ctx)
		}
		if r.metrics != nil {
			r.metrics.LogsPurgedTotal.Add(float64(n))
		}
	}
	r.logger.WithFields(logrus.Fields{"purged": n, "cutoff": cutoff.Format(time.RFC3339)}).Info("delivery logs purged")
	return n, nil
}

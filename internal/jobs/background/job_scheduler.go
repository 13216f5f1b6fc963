package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coachhub/internal/caching"
	"coachhub/internal/metrics"
	"coachhub/internal/repositories"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	JobTenantCacheSweep     = "tenant-cache-sweep"
	JobPendingReportsDigest = "pending-reports-digest"
)

type Intervals struct {
	TenantCacheSweep     time.Duration
	PendingReportsDigest time.Duration
}

// DefaultIntervals are used for any zero field of Intervals.
var DefaultIntervals = Intervals{
	TenantCacheSweep:     time.Hour,
	PendingReportsDigest: 15 * time.Minute,
}

// JobScheduler runs the periodic maintenance jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	cacheSvc  caching.CacheService
	reports   repositories.ReportRepository
	metrics   *metrics.Metrics
	log       *zap.Logger

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

func NewJobScheduler(cacheSvc caching.CacheService, reports repositories.ReportRepository, intervals Intervals,
	m *metrics.Metrics, log *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if intervals.TenantCacheSweep <= 0 {
		intervals.TenantCacheSweep = DefaultIntervals.TenantCacheSweep
	}
	if intervals.PendingReportsDigest <= 0 {
		intervals.PendingReportsDigest = DefaultIntervals.PendingReportsDigest
	}

	js := &JobScheduler{
		scheduler: scheduler,
		cacheSvc:  cacheSvc,
		reports:   reports,
		metrics:   m,
		log:       log.With(zap.String("component", "scheduler")),
		jobs:      make(map[string]gocron.Job),
	}
	if err := js.registerJobs(intervals); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", zap.Int("jobs", len(js.JobNames())))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

func (js *JobScheduler) registerJobs(intervals Intervals) error {
	defs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{JobTenantCacheSweep, intervals.TenantCacheSweep, js.SweepTenantCache},
		{JobPendingReportsDigest, intervals.PendingReportsDigest, js.DigestPendingReports},
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	for _, def := range defs {
		run, name := def.run, def.name
		job, err := js.scheduler.NewJob(
			gocron.DurationJob(def.interval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), def.interval)
				defer cancel()
				if err := run(ctx); err != nil {
					js.log.Warn("background job failed", zap.String("job", name), zap.Error(err))
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("register job %s: %w", name, err)
		}
		js.jobs[name] = job
	}
	return nil
}

// SweepTenantCache drops every cached tenant lookup so branding edits made outside the
// API (e.g. directly in the database) propagate within one interval.
func (js *JobScheduler) SweepTenantCache(ctx context.Context) error {
	start := time.Now()
	if err := js.cacheSvc.InvalidateAllTenants(ctx); err != nil {
		return fmt.Errorf("invalidate tenant cache: %w", err)
	}
	js.log.Debug("tenant cache swept", zap.Duration("took", time.Since(start)))
	return nil
}

// DigestPendingReports publishes the per-tenant count of reports awaiting review.
func (js *JobScheduler) DigestPendingReports(ctx context.Context) error {
	counts, err := js.reports.CountPendingByTenant(ctx)
	if err != nil {
		return fmt.Errorf("count pending reports: %w", err)
	}

	js.metrics.PendingReports.Reset()
	total := 0
	for _, c := range counts {
		js.metrics.PendingReports.WithLabelValues(c.TenantID.String()).Set(float64(c.Count))
		total += c.Count
	}
	if total > 0 {
		js.log.Info("reports awaiting moderator review",
			zap.Int("total", total),
			zap.Int("tenants", len(counts)),
		)
	}
	return nil
}

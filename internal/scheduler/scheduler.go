package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/domain/models"
)

const (
	refreshTimeout = 30 * time.Second
	reportTimeout  = 2 * time.Minute
	// At 20:00 on Friday.
	weeklyReportSpec = "0 20 * * 5"
)

// Refresher is a view that can reload itself from the backend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Reporter produces the weekly invoice report.
type Reporter interface {
	WeeklyReport(ctx context.Context, now time.Time) (string, error)
}

// Notifier delivers the weekly report.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ActivityLogger stores the generated report in the activity trail.
type ActivityLogger interface {
	Log(ctx context.Context, kind, entityID string, success bool, message string)
}

// Job names a view refreshed on every tick.
type Job struct {
	Name   string
	Target Refresher
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	jobs     []Job
	reporter Reporter
	notifier Notifier
	activity ActivityLogger
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. reporter, notifier and activity may be nil.
func NewScheduler(spec string, jobs []Job, reporter Reporter, notifier Notifier, activity ActivityLogger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standard 5-field parser plus descriptors such as "@every 1m". Overlapping
	// ticks are skipped while a slow refresh is still running.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Scheduler{
		cron:     c,
		spec:     spec,
		jobs:     jobs,
		reporter: reporter,
		notifier: notifier,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("refresh_schedule", s.spec), zap.Int("jobs", len(s.jobs)))

	if len(s.jobs) > 0 {
		if _, err := s.cron.AddFunc(s.spec, s.refreshAll); err != nil {
			return fmt.Errorf("schedule refresh %q: %w", s.spec, err)
		}
	}

	if s.reporter != nil {
		if _, err := s.cron.AddFunc(weeklyReportSpec, s.sendWeeklyReport); err != nil {
			return fmt.Errorf("schedule weekly report: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshAll() {
	for _, job := range s.jobs {
		s.refresh(job)
	}
}

func (s *Scheduler) refresh(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := s.now()
	if err := job.Target.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled refresh done", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) sendWeeklyReport() {
	s.logger.Info("generating weekly report")
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	now := s.now()
	report, err := s.reporter.WeeklyReport(ctx, now)
	if err != nil {
		s.logger.Error("failed to generate weekly report", zap.Error(err))
		if s.activity != nil {
			s.activity.Log(ctx, models.ActivityWeeklyReport, now.Format("2006-01-02"), false, err.Error())
		}
		return
	}

	s.logger.Info("weekly report", zap.String("report", report))
	if s.activity != nil {
		s.activity.Log(ctx, models.ActivityWeeklyReport, now.Format("2006-01-02"), true, report)
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, report); err != nil {
		s.logger.Error("failed to send weekly report", zap.Error(err))
	} else {
		s.logger.Info("weekly report sent successfully")
	}
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chronoplan/calsync-api/internal/dto"
	"github.com/chronoplan/calsync-api/pkg/config"
	"github.com/chronoplan/calsync-api/pkg/jobs"
)

type staleUserLister interface {
	ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type syncRunner interface {
	SyncUserCalendar(ctx context.Context, userID string, req dto.SyncRequest) dto.SyncResult
}

// Scheduler periodically resyncs users whose compressed calendar went stale.
// It is the external timer the sync entry point deliberately does not own:
// each tick just enqueues per-user jobs that call the same public operation.
type Scheduler struct {
	cron     *cron.Cron
	queue    *jobs.Queue
	stale    staleUserLister
	runner   syncRunner
	cfg      config.SchedulerConfig
	cutoff   time.Duration
	logger   *zap.Logger
	cancelFn context.CancelFunc
}

// New constructs the scheduler.
func New(stale staleUserLister, runner syncRunner, cfg config.SchedulerConfig, staleness time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CronSpec == "" {
		cfg.CronSpec = "0 */6 * * *"
	}
	if staleness <= 0 {
		staleness = 7 * 24 * time.Hour
	}

	s := &Scheduler{
		cron:   cron.New(),
		stale:  stale,
		runner: runner,
		cfg:    cfg,
		cutoff: staleness,
		logger: logger,
	}
	s.queue = jobs.NewQueue("calendar-resync", s.handleJob, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start begins the cron loop and its worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel

	s.queue.Start(ctx)
	if _, err := s.cron.AddFunc(s.cfg.CronSpec, func() { s.enqueueStale(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("register resync schedule %q: %w", s.cfg.CronSpec, err)
	}
	s.cron.Start()
	s.logger.Sugar().Infow("resync scheduler started", "cron", s.cfg.CronSpec, "workers", s.cfg.Workers)
	return nil
}

// Stop halts the cron loop and drains workers.
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.queue.Stop()
	if s.cancelFn != nil {
		s.cancelFn()
	}
}

func (s *Scheduler) enqueueStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cutoff)
	users, err := s.stale.ListStaleUsers(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("stale user scan failed", zap.Error(err))
		return
	}

	for _, userID := range users {
		job := jobs.Job{ID: fmt.Sprintf("resync-%s-%d", userID, time.Now().UnixNano()), Type: "resync", Payload: userID}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("could not enqueue resync", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if len(users) > 0 {
		s.logger.Info("stale calendars queued for resync", zap.Int("count", len(users)))
	}
}

func (s *Scheduler) handleJob(ctx context.Context, job jobs.Job) error {
	userID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("resync job %s has no user id", job.ID)
	}

	result := s.runner.SyncUserCalendar(ctx, userID, dto.SyncRequest{})
	if !result.Success {
		return fmt.Errorf("resync for user %s: %s", userID, result.Error)
	}
	return nil
}

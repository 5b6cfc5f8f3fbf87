package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chronoplan/calsync-api/internal/dto"
	"github.com/chronoplan/calsync-api/internal/models"
	"github.com/chronoplan/calsync-api/pkg/config"
	appErrors "github.com/chronoplan/calsync-api/pkg/errors"
)

type syncRunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
}

type windowFetcher interface {
	FetchWindow(ctx context.Context, userID string, timeMin, timeMax time.Time) (*FetchResult, error)
}

type eventReconciler interface {
	Reconcile(ctx context.Context, userID string, events []*models.CalendarEvent) (ReconcileStats, error)
}

type calendarCompressor interface {
	Compress(ctx context.Context, userID string, events []models.CalendarEvent, periodStart, periodEnd time.Time) (*models.CompressedCalendarSummary, error)
}

type mirrorReader interface {
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error)
}

type summaryReader interface {
	GetActive(ctx context.Context, userID string) (*models.CompressedCalendarSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// userLocks serializes sync runs per user. Concurrent tombstone sweeps for the
// same user would race, so only one run may be in flight at a time.
type userLocks struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{inFlight: make(map[string]struct{})}
}

func (l *userLocks) tryAcquire(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[userID]; busy {
		return false
	}
	l.inFlight[userID] = struct{}{}
	return true
}

func (l *userLocks) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, userID)
}

// SyncService drives the sync state machine:
// initiated -> fetching -> compressing -> completed, with failed reachable
// from any non-terminal state. The public entry point never returns an error;
// every outcome is reported through the result.
type SyncService struct {
	runs       syncRunRepository
	fetcher    windowFetcher
	calendarID string
	reconciler eventReconciler
	compressor calendarCompressor
	mirror     mirrorReader
	summaries  summaryReader
	cache      summaryCache
	cfg        config.SyncConfig
	metrics    *MetricsService
	locks      *userLocks
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSyncService constructs the orchestrator.
func NewSyncService(
	runs syncRunRepository,
	fetcher windowFetcher,
	reconciler eventReconciler,
	compressor calendarCompressor,
	mirror mirrorReader,
	summaries summaryReader,
	cache summaryCache,
	calendarID string,
	cfg config.SyncConfig,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SyncService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowMonths <= 0 {
		cfg.WindowMonths = 12
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 7 * 24 * time.Hour
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &SyncService{
		runs:       runs,
		fetcher:    fetcher,
		calendarID: calendarID,
		reconciler: reconciler,
		compressor: compressor,
		mirror:     mirror,
		summaries:  summaries,
		cache:      cache,
		cfg:        cfg,
		metrics:    metrics,
		locks:      newUserLocks(),
		validator:  validate,
		logger:     logger,
	}
}

// SyncUserCalendar runs one full sync for the user. It reports rather than
// throws: any internal failure comes back as a structured unsuccessful result.
func (s *SyncService) SyncUserCalendar(ctx context.Context, userID string, req dto.SyncRequest) dto.SyncResult {
	if err := s.validator.Struct(req); err != nil {
		return dto.SyncResult{Error: fmt.Sprintf("invalid sync request: %v", err)}
	}

	if !s.locks.tryAcquire(userID) {
		return dto.SyncResult{Error: appErrors.ErrSyncInProgress.Message}
	}
	defer s.locks.release(userID)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	started := time.Now().UTC()
	windowMonths := req.WindowMonths
	if windowMonths <= 0 {
		windowMonths = s.cfg.WindowMonths
	}
	timeMin := started.AddDate(0, -windowMonths, 0)
	timeMax := started.AddDate(0, windowMonths, 0)

	run := &models.SyncRun{
		UserID:    userID,
		Kind:      models.SyncKindFull,
		Status:    models.SyncStatusInitiated,
		StartedAt: started,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("could not record sync run", zap.String("user_id", userID), zap.Error(err))
		return dto.SyncResult{Error: fmt.Sprintf("record sync run: %v", err)}
	}

	result := dto.SyncResult{SyncID: run.ID}

	// Stage: fetching.
	run.Status = models.SyncStatusFetching
	s.persistRun(ctx, run)

	fetched, err := s.fetcher.FetchWindow(ctx, userID, timeMin, timeMax)
	if err != nil {
		return s.failRun(ctx, run, &result, started, "fetch", err)
	}
	run.APICallCount = fetched.APICalls
	result.APICallCount = fetched.APICalls

	normalized := NormalizeAll(userID, s.calendarID, fetched.Events, started)
	run.EventsFetched = len(normalized)
	result.EventsFetched = len(normalized)

	stats, err := s.reconciler.Reconcile(ctx, userID, normalized)
	if err != nil {
		return s.failRun(ctx, run, &result, started, "reconcile", err)
	}
	run.EventsAdded = stats.Added
	run.EventsUpdated = stats.Updated
	run.EventsDeleted = stats.Deleted
	result.EventsAdded = stats.Added
	result.EventsUpdated = stats.Updated
	result.EventsDeleted = stats.Deleted
	s.persistRun(ctx, run)

	// Stage: compressing. Best-effort: a failure here is recorded on the run
	// and never fails the sync.
	if !req.SkipCompression && len(normalized) > 0 {
		run.Status = models.SyncStatusCompressing
		run.CompressionAttempted = true
		s.persistRun(ctx, run)

		summary, compErr := s.compressSafely(ctx, userID, timeMin, timeMax, run)
		if compErr != nil {
			msg := compErr.Error()
			run.CompressionError = &msg
			s.logger.Warn("compression failed, sync still completes",
				zap.String("user_id", userID), zap.String("sync_id", run.ID), zap.Error(compErr))
		} else if summary != nil {
			result.CompressionCompleted = true
			ratio := summary.CompressionRatio
			result.CompressionRatio = &ratio
		}
	}

	// Stage: completed.
	now := time.Now().UTC()
	duration := now.Sub(started).Milliseconds()
	run.Status = models.SyncStatusCompleted
	run.CompletedAt = &now
	run.TotalDurationMs = &duration
	s.persistRun(ctx, run)

	result.Success = true
	result.TotalDurationMs = duration
	if s.metrics != nil {
		s.metrics.ObserveSyncRun(string(models.SyncStatusCompleted), now.Sub(started), fetched.APICalls)
	}

	s.logger.Info("sync completed",
		zap.String("user_id", userID),
		zap.String("sync_id", run.ID),
		zap.Int("fetched", result.EventsFetched),
		zap.Int("added", result.EventsAdded),
		zap.Int("updated", result.EventsUpdated),
		zap.Int("deleted", result.EventsDeleted),
		zap.Bool("compressed", result.CompressionCompleted))

	return result
}

// compressSafely loads the reconciled mirror and runs the extractor, timing it
// onto the run. Errors are returned for containment, never propagated.
func (s *SyncService) compressSafely(ctx context.Context, userID string, timeMin, timeMax time.Time, run *models.SyncRun) (summary *models.CompressedCalendarSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = fmt.Errorf("compression panic: %v", r)
		}
	}()

	compressStart := time.Now()
	events, err := s.mirror.ListByUser(ctx, userID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("load mirror: %w", err)
	}

	summary, err = s.compressor.Compress(ctx, userID, events, timeMin, timeMax)
	elapsed := time.Since(compressStart).Milliseconds()
	run.CompressionDuration = &elapsed
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *SyncService) failRun(ctx context.Context, run *models.SyncRun, result *dto.SyncResult, started time.Time, stage string, cause error) dto.SyncResult {
	msg := fmt.Sprintf("%s: %v", stage, cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: %s", stage, appErrors.ErrSyncTimeout.Message)
	}
	trace := fmt.Sprintf("%+v", cause)

	now := time.Now().UTC()
	duration := now.Sub(started).Milliseconds()
	run.Status = models.SyncStatusFailed
	run.ErrorMessage = &msg
	run.ErrorTrace = &trace
	run.CompletedAt = &now
	run.TotalDurationMs = &duration
	// Partial counters stay on the run for forensics.
	s.persistRun(ctx, run)

	if s.metrics != nil {
		s.metrics.ObserveSyncRun(string(models.SyncStatusFailed), now.Sub(started), run.APICallCount)
	}

	s.logger.Error("sync failed",
		zap.String("user_id", run.UserID),
		zap.String("sync_id", run.ID),
		zap.String("stage", stage),
		zap.Error(cause))

	result.Success = false
	result.Error = msg
	result.TotalDurationMs = duration
	return *result
}

// persistRun saves run progress. Persistence of intermediate stages is
// best-effort: losing a heartbeat update must not kill a healthy run.
func (s *SyncService) persistRun(ctx context.Context, run *models.SyncRun) {
	// Use a detached context for terminal writes so a run that failed on
	// timeout can still record its failure.
	writeCtx := ctx
	if run.Status.Terminal() && ctx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.runs.Update(writeCtx, run); err != nil {
		s.logger.Warn("could not persist sync run state",
			zap.String("sync_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Error(err))
	}
}

// NeedsSync implements the staleness policy: true when no active summary
// exists or the active one is older than the configured threshold. Read-only;
// it never triggers a sync itself.
func (s *SyncService) NeedsSync(ctx context.Context, userID string) (bool, error) {
	summary, err := s.GetActiveSummary(ctx, userID)
	if err != nil {
		return false, err
	}
	if summary == nil {
		return true, nil
	}
	return time.Since(summary.CreatedAt) > s.cfg.StalenessThreshold, nil
}

// GetActiveSummary returns the user's active summary, or nil when none exists.
// Reads go through the cache with a short TTL.
func (s *SyncService) GetActiveSummary(ctx context.Context, userID string) (*models.CompressedCalendarSummary, error) {
	key := SummaryCacheKey(userID)
	if s.cache != nil {
		var cached models.CompressedCalendarSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	summary, err := s.summaries.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cfg.SummaryCacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return summary, nil
}

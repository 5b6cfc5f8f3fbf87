package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/chronoplan/calsync-api/internal/dto"
	"github.com/chronoplan/calsync-api/internal/provider"
	"github.com/chronoplan/calsync-api/pkg/config"
	appErrors "github.com/chronoplan/calsync-api/pkg/errors"
)

type writeBackCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// WriteBackService creates events at the provider and verifies they persisted.
// The meeting id acts as an idempotency key: every outcome is cached under it,
// so a repeat call short-circuits instead of duplicating the provider event.
type WriteBackService struct {
	provider   provider.Calendar
	cache      writeBackCache
	calendarID string
	cfg        config.WriteBackConfig
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewWriteBackService constructs the verifier.
func NewWriteBackService(p provider.Calendar, cache writeBackCache, calendarID string, cfg config.WriteBackConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *WriteBackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &WriteBackService{
		provider:   p,
		cache:      cache,
		calendarID: calendarID,
		cfg:        cfg,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// WriteBackCacheKey is where a meeting's verified outcome lives.
func WriteBackCacheKey(meetingID string) string {
	return fmt.Sprintf("writeback:%s", meetingID)
}

// CreateCalendarEvent pushes the event to the provider with bounded retries
// and exponential backoff. It returns a result, never an error: terminal
// failures carry the attempt count and last error for observability.
func (s *WriteBackService) CreateCalendarEvent(ctx context.Context, organizerUserID string, req dto.CreateEventRequest) dto.CreateEventResult {
	if err := s.validator.Struct(req); err != nil {
		return dto.CreateEventResult{Error: fmt.Sprintf("invalid event payload: %v", err)}
	}

	key := WriteBackCacheKey(req.MeetingID)
	if s.cache != nil {
		var cached dto.CreateEventResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if cached.Success {
				cached.AlreadyExists = true
			}
			return cached
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("write-back cache read failed", zap.String("meeting_id", req.MeetingID), zap.Error(err))
		}
	}

	calendarID := req.CalendarID
	if calendarID == "" {
		calendarID = s.calendarID
	}
	body := buildProviderEvent(req)

	result := dto.CreateEventResult{}
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		created, err := s.provider.InsertEvent(ctx, organizerUserID, calendarID, body)
		if err == nil {
			result.Success = true
			result.EventID = created.Id
			result.EventLink = created.HtmlLink
			s.storeOutcome(ctx, key, result)
			if s.metrics != nil {
				s.metrics.ObserveWriteBack(true, attempt)
			}
			s.logger.Info("write-back verified",
				zap.String("meeting_id", req.MeetingID),
				zap.String("event_id", created.Id),
				zap.Int("attempts", attempt))
			return result
		}

		lastErr = err
		if provider.IsAuthError(err) {
			// Revoked or rejected credentials will not heal on retry.
			s.logger.Error("write-back rejected by provider auth",
				zap.String("meeting_id", req.MeetingID), zap.Error(err))
			break
		}

		s.logger.Warn("write-back attempt failed",
			zap.String("meeting_id", req.MeetingID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < s.cfg.MaxAttempts {
			if err := s.backoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}
	}

	result.Success = false
	result.Error = lastErr.Error()
	s.storeOutcome(ctx, key, result)
	if s.metrics != nil {
		s.metrics.ObserveWriteBack(false, result.Attempts)
	}
	return result
}

func (s *WriteBackService) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.InitialDelay << uint(attempt-1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *WriteBackService) storeOutcome(ctx context.Context, key string, result dto.CreateEventResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, result, s.cfg.ResultTTL); err != nil {
		s.logger.Warn("write-back cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func buildProviderEvent(req dto.CreateEventRequest) *calendar.Event {
	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for _, email := range req.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	return &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.StartTime.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.EndTime.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		Attendees: attendees,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{MeetingIDProperty: req.MeetingID},
		},
	}
}

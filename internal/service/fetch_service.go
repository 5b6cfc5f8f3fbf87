package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/chronoplan/calsync-api/internal/provider"
	"github.com/chronoplan/calsync-api/pkg/config"
)

// FetchResult carries one window's worth of provider-native events plus the
// number of API calls spent retrieving them.
type FetchResult struct {
	Events   []*calendar.Event
	APICalls int
	Capped   bool
}

// FetchService pages through the provider's event listing for a bounded window.
type FetchService struct {
	provider   provider.Calendar
	calendarID string
	pageSize   int64
	maxPages   int
	logger     *zap.Logger
}

// NewFetchService constructs the fetcher.
func NewFetchService(p provider.Calendar, cfg config.SyncConfig, googleCfg config.GoogleConfig, logger *zap.Logger) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := int64(cfg.PageSize)
	if pageSize <= 0 {
		pageSize = 250
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}
	calendarID := googleCfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &FetchService{
		provider:   p,
		calendarID: calendarID,
		pageSize:   pageSize,
		maxPages:   maxPages,
		logger:     logger,
	}
}

// FetchWindow retrieves every event in [timeMin, timeMax], following
// continuation tokens until the provider stops returning one. Pagination is
// capped: a provider handing out tokens forever yields a warning and the
// partial set, not an error.
func (s *FetchService) FetchWindow(ctx context.Context, userID string, timeMin, timeMax time.Time) (*FetchResult, error) {
	result := &FetchResult{}
	pageToken := ""

	for page := 0; ; page++ {
		if page >= s.maxPages {
			s.logger.Warn("pagination cap reached, using partial event set",
				zap.String("user_id", userID),
				zap.Int("max_pages", s.maxPages),
				zap.Int("events_so_far", len(result.Events)))
			result.Capped = true
			break
		}

		eventPage, err := s.provider.ListEvents(ctx, userID, s.calendarID, timeMin, timeMax, pageToken, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page+1, err)
		}
		result.APICalls++
		result.Events = append(result.Events, eventPage.Events...)

		if eventPage.NextPageToken == "" {
			break
		}
		pageToken = eventPage.NextPageToken
	}

	s.logger.Debug("fetch window complete",
		zap.String("user_id", userID),
		zap.Int("events", len(result.Events)),
		zap.Int("api_calls", result.APICalls))

	return result, nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chronoplan/calsync-api/internal/models"
)

const (
	// Busy-probability thresholds for emitting a weekly template slot.
	busySlotThreshold = 0.5
	freeSlotThreshold = 0.2

	// Reported when there are no source events to compress.
	defaultCompressionRatio = 0.80

	maxPreferredTimes = 5
)

type compressedCalendarRepository interface {
	GetActive(ctx context.Context, userID string) (*models.CompressedCalendarSummary, error)
	ReplaceActive(ctx context.Context, summary *models.CompressedCalendarSummary) error
}

type summaryCacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// CompressService derives the behavioral summary from a reconciled event set.
type CompressService struct {
	repo         compressedCalendarRepository
	cache        summaryCacheInvalidator
	modelVersion string
	logger       *zap.Logger
}

// NewCompressService constructs the extractor.
func NewCompressService(repo compressedCalendarRepository, cache summaryCacheInvalidator, modelVersion string, logger *zap.Logger) *CompressService {
	if modelVersion == "" {
		modelVersion = "v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompressService{repo: repo, cache: cache, modelVersion: modelVersion, logger: logger}
}

// SummaryCacheKey is where the active summary is cached per user.
func SummaryCacheKey(userID string) string {
	return fmt.Sprintf("summary:%s", userID)
}

// Compress computes a new summary and atomically supersedes the prior active
// row. The previous summary stays active if anything here fails.
func (s *CompressService) Compress(ctx context.Context, userID string, events []models.CalendarEvent, periodStart, periodEnd time.Time) (*models.CompressedCalendarSummary, error) {
	summary := s.derive(userID, events, periodStart, periodEnd)

	if err := s.repo.ReplaceActive(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, SummaryCacheKey(userID)); err != nil {
			s.logger.Warn("summary cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Info("calendar compressed",
		zap.String("user_id", userID),
		zap.Int("source_events", summary.SourceEventCount),
		zap.Float64("ratio", summary.CompressionRatio),
		zap.Int("patterns", len(summary.AvailabilityPatterns)))

	return summary, nil
}

// derive runs the deterministic sub-steps. Pure, no storage access.
func (s *CompressService) derive(userID string, events []models.CalendarEvent, periodStart, periodEnd time.Time) *models.CompressedCalendarSummary {
	var busyCounts [7][24]int
	var totalMinutes float64
	counted := 0

	for i := range events {
		event := &events[i]
		if event.IsAllDay || event.Status == "cancelled" {
			continue
		}
		duration := event.Duration()
		if duration <= 0 {
			continue
		}

		totalMinutes += duration.Minutes()
		counted++

		weekday := int(event.StartTime.Weekday())
		startHour := event.StartTime.Hour()
		endHour := event.EndTime.Hour()
		if event.EndTime.Minute() > 0 || event.EndTime.Second() > 0 {
			endHour++
		}
		if endHour <= startHour {
			endHour = startHour + 1
		}
		for h := startHour; h < endHour && h < 24; h++ {
			busyCounts[weekday][h]++
		}
	}

	weeks := int(periodEnd.Sub(periodStart).Hours() / (24 * 7))
	if weeks < 1 {
		weeks = 1
	}

	var busyProb models.BusyProbabilityMap
	maxCount := 0
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			p := float64(busyCounts[d][h]) / float64(weeks)
			if p > 1 {
				p = 1
			}
			busyProb[d][h] = p
			if busyCounts[d][h] > maxCount {
				maxCount = busyCounts[d][h]
			}
		}
	}

	density := deriveDensity(busyCounts, maxCount)
	workHours := deriveWorkHours(busyProb)
	patterns := derivePatterns(busyProb, workHours)
	preferred := derivePreferredTimes(busyProb, density, workHours)

	avgMinutes := 0.0
	if counted > 0 {
		avgMinutes = totalMinutes / float64(counted)
	}

	ratio := defaultCompressionRatio
	if counted > 0 {
		// Exact ratio from the emitted pattern count, not an assumed one.
		ratio = 1 - float64(len(patterns))/float64(counted)
		if ratio < 0 {
			ratio = 0
		}
		if ratio >= 1 {
			ratio = 0.99
		}
	}

	return &models.CompressedCalendarSummary{
		UserID:                userID,
		SourceEventCount:      counted,
		CompressionRatio:      ratio,
		PeriodStart:           periodStart,
		PeriodEnd:             periodEnd,
		AvailabilityPatterns:  patterns,
		BusyProbabilityMap:    busyProb,
		MeetingDensityScores:  density,
		PreferredMeetingTimes: preferred,
		TypicalWorkHours:      workHours,
		AverageMeetingMinutes: avgMinutes,
		ModelVersion:          s.modelVersion,
	}
}

func deriveDensity(counts [7][24]int, maxCount int) models.MeetingDensityScores {
	scores := models.MeetingDensityScores{}
	if maxCount == 0 {
		return scores
	}
	var dayTotals [7]int
	var hourTotals [24]int
	maxDay, maxHour := 0, 0
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			scores.ByDayHour[d][h] = float64(counts[d][h]) / float64(maxCount)
			dayTotals[d] += counts[d][h]
			hourTotals[h] += counts[d][h]
		}
		if dayTotals[d] > maxDay {
			maxDay = dayTotals[d]
		}
	}
	for h := 0; h < 24; h++ {
		if hourTotals[h] > maxHour {
			maxHour = hourTotals[h]
		}
	}
	for d := 0; d < 7; d++ {
		if maxDay > 0 {
			scores.ByDay[d] = float64(dayTotals[d]) / float64(maxDay)
		}
	}
	for h := 0; h < 24; h++ {
		if maxHour > 0 {
			scores.ByHour[h] = float64(hourTotals[h]) / float64(maxHour)
		}
	}
	return scores
}

// deriveWorkHours starts from a 09:00-17:00 weekday baseline and widens it to
// cover observed busy hours.
func deriveWorkHours(busyProb models.BusyProbabilityMap) models.TypicalWorkHours {
	var hours models.TypicalWorkHours
	for d := time.Monday; d <= time.Friday; d++ {
		start, end := 9, 17
		for h := 0; h < 24; h++ {
			if busyProb[d][h] >= busySlotThreshold {
				if h < start {
					start = h
				}
				if h+1 > end {
					end = h + 1
				}
			}
		}
		hours[d] = &models.WorkHours{StartHour: start, EndHour: end}
	}
	return hours
}

// derivePatterns emits merged busy slots anywhere in the week and free slots
// within typical work hours.
func derivePatterns(busyProb models.BusyProbabilityMap, workHours models.TypicalWorkHours) models.AvailabilityPatterns {
	patterns := models.AvailabilityPatterns{}

	appendRun := func(weekday, start, end int, state models.SlotState, confidence float64) {
		patterns = append(patterns, models.AvailabilitySlot{
			Weekday:    weekday,
			StartHour:  start,
			EndHour:    end,
			State:      state,
			Confidence: confidence,
		})
	}

	for d := 0; d < 7; d++ {
		runStart := -1
		runSum := 0.0
		for h := 0; h <= 24; h++ {
			busy := h < 24 && busyProb[d][h] >= busySlotThreshold
			if busy {
				if runStart < 0 {
					runStart = h
					runSum = 0
				}
				runSum += busyProb[d][h]
				continue
			}
			if runStart >= 0 {
				appendRun(d, runStart, h, models.SlotBusy, runSum/float64(h-runStart))
				runStart = -1
			}
		}

		wh := workHours[d]
		if wh == nil {
			continue
		}
		runStart = -1
		runSum = 0
		for h := wh.StartHour; h <= wh.EndHour; h++ {
			free := h < wh.EndHour && busyProb[d][h] <= freeSlotThreshold
			if free {
				if runStart < 0 {
					runStart = h
					runSum = 0
				}
				runSum += busyProb[d][h]
				continue
			}
			if runStart >= 0 {
				appendRun(d, runStart, h, models.SlotFree, 1-runSum/float64(h-runStart))
				runStart = -1
			}
		}
	}

	return patterns
}

func derivePreferredTimes(busyProb models.BusyProbabilityMap, density models.MeetingDensityScores, workHours models.TypicalWorkHours) models.PreferredMeetingTimes {
	candidates := models.PreferredMeetingTimes{}

	for d := 0; d < 7; d++ {
		wh := workHours[d]
		if wh == nil {
			continue
		}
		for h := wh.StartHour; h < wh.EndHour; h++ {
			p := busyProb[d][h]
			if p > freeSlotThreshold {
				continue
			}
			// Favor free slots on days that already carry some meetings:
			// those are days the user demonstrably takes meetings on.
			score := (1 - p) * (0.5 + 0.5*density.ByDay[d])
			candidates = append(candidates, models.PreferredMeetingTime{
				Weekday:   d,
				StartHour: h,
				EndHour:   h + 1,
				Score:     score,
				Rationale: fmt.Sprintf("usually free %ss at %02d:00", time.Weekday(d), h),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxPreferredTimes {
		candidates = candidates[:maxPreferredTimes]
	}
	return candidates
}

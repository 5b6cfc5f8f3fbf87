package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chronoplan/calsync-api/internal/models"
)

type calendarEventRepository interface {
	GetByProviderID(ctx context.Context, userID, providerEventID string) (*models.CalendarEvent, error)
	Insert(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	DeleteAbsent(ctx context.Context, userID string, keep models.EventIDSet) (int, error)
}

// ReconcileStats is the add/update/delete diff a reconciliation produced.
type ReconcileStats struct {
	Added   int
	Updated int
	Deleted int
}

// ReconcileService makes the local mirror exactly match a freshly fetched
// event set within the fetched window.
type ReconcileService struct {
	repo      calendarEventRepository
	batchSize int
	logger    *zap.Logger
}

// NewReconcileService constructs the engine.
func NewReconcileService(repo calendarEventRepository, batchSize int, logger *zap.Logger) *ReconcileService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{repo: repo, batchSize: batchSize, logger: logger}
}

// Reconcile upserts the fetched events in bounded batches, then sweeps away
// every locally stored event absent from the fetch. An empty event set
// deliberately clears the user's whole mirror; callers own that decision.
//
// Row-level failures are logged and skipped (the event simply is not counted);
// batch-level failures such as a lost connection abort the reconciliation.
func (s *ReconcileService) Reconcile(ctx context.Context, userID string, events []*models.CalendarEvent) (ReconcileStats, error) {
	stats := ReconcileStats{}
	fetchedIDs := make(models.EventIDSet, 0, len(events))

	for start := 0; start < len(events); start += s.batchSize {
		end := start + s.batchSize
		if end > len(events) {
			end = len(events)
		}

		for _, event := range events[start:end] {
			fetchedIDs = append(fetchedIDs, event.ProviderEventID)

			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("reconciliation aborted: %w", err)
			}

			existing, err := s.repo.GetByProviderID(ctx, userID, event.ProviderEventID)
			if err != nil {
				if ctx.Err() != nil {
					return stats, fmt.Errorf("reconciliation aborted: %w", ctx.Err())
				}
				s.logger.Warn("skipping event, lookup failed",
					zap.String("user_id", userID),
					zap.String("provider_event_id", event.ProviderEventID),
					zap.Error(err))
				continue
			}

			if existing == nil {
				if err := s.repo.Insert(ctx, event); err != nil {
					s.logger.Warn("skipping event, insert failed",
						zap.String("user_id", userID),
						zap.String("provider_event_id", event.ProviderEventID),
						zap.Error(err))
					continue
				}
				stats.Added++
				continue
			}

			if !eventChanged(existing, event) {
				// Unchanged rows are left alone so back-to-back syncs against
				// an unchanged provider converge to a zero diff.
				continue
			}

			// Keep the local surrogate key so foreign references stay valid.
			event.ID = existing.ID
			event.CreatedAt = existing.CreatedAt
			if err := s.repo.Update(ctx, event); err != nil {
				s.logger.Warn("skipping event, update failed",
					zap.String("user_id", userID),
					zap.String("provider_event_id", event.ProviderEventID),
					zap.Error(err))
				continue
			}
			stats.Updated++
		}
	}

	// Deletions are only detectable by absence-in-full-refetch, so the sweep
	// runs on every reconciliation.
	deleted, err := s.repo.DeleteAbsent(ctx, userID, fetchedIDs)
	if err != nil {
		return stats, fmt.Errorf("tombstone sweep: %w", err)
	}
	stats.Deleted = deleted

	s.logger.Info("reconciliation complete",
		zap.String("user_id", userID),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted))

	return stats, nil
}

// eventChanged reports whether any user-visible field differs between the
// stored row and the freshly fetched one. RawPayload and SyncedAt are
// deliberately ignored; both churn on every fetch even when nothing the
// application cares about moved.
func eventChanged(existing, fresh *models.CalendarEvent) bool {
	if existing.Title != fresh.Title ||
		existing.Description != fresh.Description ||
		existing.Location != fresh.Location ||
		!existing.StartTime.Equal(fresh.StartTime) ||
		!existing.EndTime.Equal(fresh.EndTime) ||
		existing.Timezone != fresh.Timezone ||
		existing.IsAllDay != fresh.IsAllDay ||
		existing.Status != fresh.Status ||
		existing.Visibility != fresh.Visibility ||
		existing.AttendeeCount != fresh.AttendeeCount ||
		existing.IsOrganizer != fresh.IsOrganizer ||
		existing.ResponseStatus != fresh.ResponseStatus ||
		existing.IsRecurring != fresh.IsRecurring ||
		existing.SourcePlatform != fresh.SourcePlatform {
		return true
	}
	return !stringPtrEqual(existing.RecurringSeriesID, fresh.RecurringSeriesID)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

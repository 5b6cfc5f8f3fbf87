package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chronoplan/calsync-api/internal/models"
)

const calendarEventColumns = `id, user_id, provider_event_id, provider_calendar_id, title, description, location,
start_time, end_time, timezone, is_all_day, status, visibility, attendee_count, is_organizer, response_status,
is_recurring, recurring_series_id, source_platform, raw_payload, synced_at, created_at, updated_at`

// CalendarEventRepository persists the local mirror of provider events.
type CalendarEventRepository struct {
	db *sqlx.DB
}

// NewCalendarEventRepository constructs the repository.
func NewCalendarEventRepository(db *sqlx.DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

// GetByProviderID looks up one mirrored event by its provider identity.
// Returns nil when no row exists.
func (r *CalendarEventRepository) GetByProviderID(ctx context.Context, userID, providerEventID string) (*models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE user_id = $1 AND provider_event_id = $2`, calendarEventColumns)
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, userID, providerEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get calendar event %s/%s: %w", userID, providerEventID, err)
	}
	return &event, nil
}

// Insert stores a newly observed event.
func (r *CalendarEventRepository) Insert(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	query := `INSERT INTO calendar_events (id, user_id, provider_event_id, provider_calendar_id, title, description, location,
start_time, end_time, timezone, is_all_day, status, visibility, attendee_count, is_organizer, response_status,
is_recurring, recurring_series_id, source_platform, raw_payload, synced_at, created_at, updated_at)
VALUES (:id, :user_id, :provider_event_id, :provider_calendar_id, :title, :description, :location,
:start_time, :end_time, :timezone, :is_all_day, :status, :visibility, :attendee_count, :is_organizer, :response_status,
:is_recurring, :recurring_series_id, :source_platform, :raw_payload, :synced_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert calendar event %s: %w", event.ProviderEventID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing row. The surrogate id is
// never touched so foreign references survive resyncs.
func (r *CalendarEventRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	query := `UPDATE calendar_events SET provider_calendar_id = :provider_calendar_id, title = :title,
description = :description, location = :location, start_time = :start_time, end_time = :end_time,
timezone = :timezone, is_all_day = :is_all_day, status = :status, visibility = :visibility,
attendee_count = :attendee_count, is_organizer = :is_organizer, response_status = :response_status,
is_recurring = :is_recurring, recurring_series_id = :recurring_series_id, source_platform = :source_platform,
raw_payload = :raw_payload, synced_at = :synced_at, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event %s: %w", event.ProviderEventID, err)
	}
	return nil
}

// DeleteAbsent removes every event for the user whose provider id is not in
// keep. With an empty keep set this deletes the user's entire mirror, which is
// the intended semantics for an empty fetch window.
func (r *CalendarEventRepository) DeleteAbsent(ctx context.Context, userID string, keep models.EventIDSet) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE user_id = $1 AND provider_event_id <> ALL($2)`,
		userID, pq.Array([]string(keep)))
	if err != nil {
		return 0, fmt.Errorf("tombstone sweep for user %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("tombstone sweep rows affected: %w", err)
	}
	return int(affected), nil
}

// ListByUser returns the user's mirrored events within [from, to], ordered by
// start time.
func (r *CalendarEventRepository) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events
WHERE user_id = $1 AND start_time >= $2 AND start_time <= $3 ORDER BY start_time ASC`, calendarEventColumns)
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list calendar events for user %s: %w", userID, err)
	}
	return events, nil
}

// CountByUser returns the size of the user's mirror.
func (r *CalendarEventRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM calendar_events WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("count calendar events for user %s: %w", userID, err)
	}
	return count, nil
}

package models

import (
	"time"

	"github.com/lib/pq"
)

// Source platforms distinguishing who authored a provider-side event.
const (
	SourcePlatformCalSync  = "calsync"
	SourcePlatformExternal = "external"
)

// CalendarEvent is the locally mirrored copy of one provider event.
// Rows are keyed (user_id, provider_event_id); the surrogate id survives
// updates so foreign references stay valid across resyncs.
type CalendarEvent struct {
	ID                 string    `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	ProviderEventID    string    `db:"provider_event_id" json:"provider_event_id"`
	ProviderCalendarID string    `db:"provider_calendar_id" json:"provider_calendar_id"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	Location           string    `db:"location" json:"location"`
	StartTime          time.Time `db:"start_time" json:"start_time"`
	EndTime            time.Time `db:"end_time" json:"end_time"`
	Timezone           string    `db:"timezone" json:"timezone"`
	IsAllDay           bool      `db:"is_all_day" json:"is_all_day"`
	Status             string    `db:"status" json:"status"`
	Visibility         string    `db:"visibility" json:"visibility"`
	AttendeeCount      int       `db:"attendee_count" json:"attendee_count"`
	IsOrganizer        bool      `db:"is_organizer" json:"is_organizer"`
	ResponseStatus     string    `db:"response_status" json:"response_status"`
	IsRecurring        bool      `db:"is_recurring" json:"is_recurring"`
	RecurringSeriesID  *string   `db:"recurring_series_id" json:"recurring_series_id,omitempty"`
	SourcePlatform     string    `db:"source_platform" json:"source_platform"`
	RawPayload         []byte    `db:"raw_payload" json:"-"`
	SyncedAt           time.Time `db:"synced_at" json:"synced_at"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the event length.
func (e *CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// EventIDSet is a convenience wrapper for tombstone sweeps.
type EventIDSet []string

// Array adapts the set for ANY($1) queries.
func (s EventIDSet) Array() interface{} {
	return pq.Array([]string(s))
}

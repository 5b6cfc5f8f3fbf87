package dto

import "time"

// CreateEventRequest describes a provider-side event to be created, keyed by
// the meeting id for idempotency.
type CreateEventRequest struct {
	MeetingID   string    `json:"meeting_id" validate:"required"`
	Summary     string    `json:"summary" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Timezone    string    `json:"timezone" validate:"required"`
	Attendees   []string  `json:"attendees" validate:"dive,email"`
	CalendarID  string    `json:"calendar_id"`
}

// CreateEventResult is the verified outcome of a write-back, cached per meeting.
type CreateEventResult struct {
	Success       bool   `json:"success"`
	EventID       string `json:"event_id,omitempty"`
	EventLink     string `json:"event_link,omitempty"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
	Attempts      int    `json:"attempts"`
	Error         string `json:"error,omitempty"`
}

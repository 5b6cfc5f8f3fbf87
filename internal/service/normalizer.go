package service

import (
	"encoding/json"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/chronoplan/calsync-api/internal/models"
)

// MeetingIDProperty is the private extended property stamped on events this
// system creates, used to tell them apart from externally-authored ones.
const MeetingIDProperty = "calsync_meeting_id"

// NormalizeEvent maps a provider-native record to the internal shape. Records
// missing identity or usable start/end times return nil and are silently
// filtered; that is not an error condition.
func NormalizeEvent(userID, calendarID string, raw *calendar.Event, syncedAt time.Time) *models.CalendarEvent {
	if raw == nil || raw.Id == "" || raw.Start == nil || raw.End == nil {
		return nil
	}

	start, end, allDay, ok := eventTimes(raw)
	if !ok {
		return nil
	}

	event := &models.CalendarEvent{
		UserID:             userID,
		ProviderEventID:    raw.Id,
		ProviderCalendarID: calendarID,
		Title:              raw.Summary,
		Description:        raw.Description,
		Location:           raw.Location,
		StartTime:          start,
		EndTime:            end,
		Timezone:           eventTimezone(raw),
		IsAllDay:           allDay,
		Status:             raw.Status,
		Visibility:         raw.Visibility,
		AttendeeCount:      len(raw.Attendees),
		SourcePlatform:     models.SourcePlatformExternal,
		SyncedAt:           syncedAt,
	}
	if event.Visibility == "" {
		event.Visibility = "default"
	}

	if raw.RecurringEventId != "" {
		event.IsRecurring = true
		seriesID := raw.RecurringEventId
		event.RecurringSeriesID = &seriesID
	}

	if raw.Organizer != nil && raw.Organizer.Self {
		event.IsOrganizer = true
	}
	for _, attendee := range raw.Attendees {
		if attendee == nil || !attendee.Self {
			continue
		}
		event.ResponseStatus = attendee.ResponseStatus
		if attendee.Organizer {
			event.IsOrganizer = true
		}
		break
	}

	if raw.ExtendedProperties != nil && raw.ExtendedProperties.Private != nil {
		if _, ours := raw.ExtendedProperties.Private[MeetingIDProperty]; ours {
			event.SourcePlatform = models.SourcePlatformCalSync
		}
	}

	// The verbatim provider record rides along for downstream features this
	// core does not interpret.
	if payload, err := json.Marshal(raw); err == nil {
		event.RawPayload = payload
	}

	return event
}

// NormalizeAll maps a fetched batch, dropping unusable records.
func NormalizeAll(userID, calendarID string, rawEvents []*calendar.Event, syncedAt time.Time) []*models.CalendarEvent {
	normalized := make([]*models.CalendarEvent, 0, len(rawEvents))
	for _, raw := range rawEvents {
		if event := NormalizeEvent(userID, calendarID, raw, syncedAt); event != nil {
			normalized = append(normalized, event)
		}
	}
	return normalized
}

func eventTimes(raw *calendar.Event) (start, end time.Time, allDay, ok bool) {
	if raw.Start.DateTime != "" && raw.End.DateTime != "" {
		s, errS := time.Parse(time.RFC3339, raw.Start.DateTime)
		e, errE := time.Parse(time.RFC3339, raw.End.DateTime)
		if errS != nil || errE != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return s, e, false, true
	}

	if raw.Start.Date != "" && raw.End.Date != "" {
		s, errS := time.Parse("2006-01-02", raw.Start.Date)
		e, errE := time.Parse("2006-01-02", raw.End.Date)
		if errS != nil || errE != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return s, e, true, true
	}

	return time.Time{}, time.Time{}, false, false
}

func eventTimezone(raw *calendar.Event) string {
	if raw.Start != nil && raw.Start.TimeZone != "" {
		return raw.Start.TimeZone
	}
	if raw.End != nil && raw.End.TimeZone != "" {
		return raw.End.TimeZone
	}
	return "UTC"
}

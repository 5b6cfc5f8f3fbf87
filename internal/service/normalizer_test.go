package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/chronoplan/calsync-api/internal/models"
)

func timedEvent(id string, start, end time.Time) *calendar.Event {
	return &calendar.Event{
		Id:      id,
		Summary: "weekly sync",
		Status:  "confirmed",
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "Europe/Berlin"},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: "Europe/Berlin"},
	}
}

func TestNormalizeEventMapsTimedEvent(t *testing.T) {
	syncedAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := timedEvent("g1", start, start.Add(30*time.Minute))

	event := NormalizeEvent("u1", "primary", raw, syncedAt)
	require.NotNil(t, event)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "g1", event.ProviderEventID)
	assert.Equal(t, "primary", event.ProviderCalendarID)
	assert.Equal(t, "weekly sync", event.Title)
	assert.True(t, event.StartTime.Equal(start))
	assert.Equal(t, "Europe/Berlin", event.Timezone)
	assert.False(t, event.IsAllDay)
	assert.Equal(t, "default", event.Visibility)
	assert.Equal(t, models.SourcePlatformExternal, event.SourcePlatform)
	assert.Equal(t, syncedAt, event.SyncedAt)
	assert.NotEmpty(t, event.RawPayload)
}

func TestNormalizeEventDropsUnusableRecords(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	syncedAt := time.Now().UTC()

	cases := map[string]*calendar.Event{
		"nil record":    nil,
		"missing id":    {Start: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}, End: &calendar.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339)}},
		"missing start": {Id: "g1", End: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}},
		"missing end":   {Id: "g1", Start: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}},
		"garbled time":  {Id: "g1", Start: &calendar.EventDateTime{DateTime: "not-a-time"}, End: &calendar.EventDateTime{DateTime: "also-not"}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, NormalizeEvent("u1", "primary", raw, syncedAt))
		})
	}
}

func TestNormalizeEventAllDay(t *testing.T) {
	raw := &calendar.Event{
		Id:    "g1",
		Start: &calendar.EventDateTime{Date: "2026-03-02"},
		End:   &calendar.EventDateTime{Date: "2026-03-03"},
	}
	event := NormalizeEvent("u1", "primary", raw, time.Now().UTC())
	require.NotNil(t, event)
	assert.True(t, event.IsAllDay)
	assert.Equal(t, "UTC", event.Timezone)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), event.StartTime)
}

func TestNormalizeEventTimezoneFallsBackToEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := &calendar.Event{
		Id:    "g1",
		Start: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:   &calendar.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339), TimeZone: "America/New_York"},
	}
	event := NormalizeEvent("u1", "primary", raw, time.Now().UTC())
	require.NotNil(t, event)
	assert.Equal(t, "America/New_York", event.Timezone)
}

func TestNormalizeEventSelfAttendee(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := timedEvent("g1", start, start.Add(time.Hour))
	raw.Attendees = []*calendar.EventAttendee{
		{Email: "other@example.com", ResponseStatus: "declined"},
		{Email: "me@example.com", Self: true, ResponseStatus: "accepted", Organizer: true},
	}

	event := NormalizeEvent("u1", "primary", raw, time.Now().UTC())
	require.NotNil(t, event)
	assert.Equal(t, 2, event.AttendeeCount)
	assert.Equal(t, "accepted", event.ResponseStatus)
	assert.True(t, event.IsOrganizer)
}

func TestNormalizeEventRecurringSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := timedEvent("g1_20260302", start, start.Add(time.Hour))
	raw.RecurringEventId = "g1"

	event := NormalizeEvent("u1", "primary", raw, time.Now().UTC())
	require.NotNil(t, event)
	assert.True(t, event.IsRecurring)
	require.NotNil(t, event.RecurringSeriesID)
	assert.Equal(t, "g1", *event.RecurringSeriesID)
}

func TestNormalizeEventRecognizesOwnWriteBacks(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := timedEvent("g1", start, start.Add(time.Hour))
	raw.ExtendedProperties = &calendar.EventExtendedProperties{
		Private: map[string]string{MeetingIDProperty: "meeting-42"},
	}

	event := NormalizeEvent("u1", "primary", raw, time.Now().UTC())
	require.NotNil(t, event)
	assert.Equal(t, models.SourcePlatformCalSync, event.SourcePlatform)
}

func TestNormalizeAllFiltersAndKeepsOrder(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	batch := []*calendar.Event{
		timedEvent("g1", start, start.Add(time.Hour)),
		nil,
		{Id: "broken"},
		timedEvent("g2", start.Add(2*time.Hour), start.Add(3*time.Hour)),
	}

	events := NormalizeAll("u1", "primary", batch, time.Now().UTC())
	require.Len(t, events, 2)
	assert.Equal(t, "g1", events[0].ProviderEventID)
	assert.Equal(t, "g2", events[1].ProviderEventID)
}

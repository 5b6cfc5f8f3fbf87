package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoplan/calsync-api/internal/models"
)

func newCalendarEventMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func calendarEventRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "provider_event_id", "provider_calendar_id", "title", "description", "location",
		"start_time", "end_time", "timezone", "is_all_day", "status", "visibility", "attendee_count",
		"is_organizer", "response_status", "is_recurring", "recurring_series_id", "source_platform",
		"raw_payload", "synced_at", "created_at", "updated_at",
	}).AddRow(
		"evt-1", "u1", "g1", "primary", "standup", "", "room 4",
		now, now.Add(time.Hour), "UTC", false, "confirmed", "default", 3,
		true, "accepted", false, nil, models.SourcePlatformExternal,
		[]byte("{}"), now, now, now,
	)
}

func TestCalendarEventRepositoryGetByProviderID(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM calendar_events WHERE user_id = \$1 AND provider_event_id = \$2`).
		WithArgs("u1", "g1").
		WillReturnRows(calendarEventRows())

	event, err := repo.GetByProviderID(context.Background(), "u1", "g1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, "g1", event.ProviderEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryGetByProviderIDMissing(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM calendar_events WHERE user_id = \$1 AND provider_event_id = \$2`).
		WithArgs("u1", "nope").
		WillReturnError(sql.ErrNoRows)

	event, err := repo.GetByProviderID(context.Background(), "u1", "nope")
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectExec("INSERT INTO calendar_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.CalendarEvent{
		UserID:          "u1",
		ProviderEventID: "g1",
		Title:           "standup",
		StartTime:       time.Now().UTC(),
		EndTime:         time.Now().UTC().Add(time.Hour),
		Timezone:        "UTC",
		SourcePlatform:  models.SourcePlatformExternal,
		SyncedAt:        time.Now().UTC(),
	}
	err := repo.Insert(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectExec("UPDATE calendar_events SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &models.CalendarEvent{ID: "evt-1", UserID: "u1", ProviderEventID: "g1"}
	err := repo.Update(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, event.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryDeleteAbsent(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectExec("DELETE FROM calendar_events WHERE user_id").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteAbsent(context.Background(), "u1", models.EventIDSet{"g1", "g2"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM calendar_events\s+WHERE user_id = \$1 AND start_time >= \$2 AND start_time <= \$3`).
		WillReturnRows(calendarEventRows())

	from := time.Now().UTC().AddDate(-1, 0, 0)
	to := time.Now().UTC().AddDate(1, 0, 0)
	events, err := repo.ListByUser(context.Background(), "u1", from, to)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarEventRepositoryCountByUser(t *testing.T) {
	db, mock, cleanup := newCalendarEventMock(t)
	defer cleanup()
	repo := NewCalendarEventRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM calendar_events WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

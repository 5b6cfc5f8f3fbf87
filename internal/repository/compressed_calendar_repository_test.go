package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoplan/calsync-api/internal/models"
)

func newSummaryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func summaryRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "source_event_count", "compression_ratio", "period_start", "period_end",
		"availability_patterns", "busy_probability_map", "meeting_density_scores", "preferred_meeting_times",
		"typical_work_hours", "average_meeting_minutes", "model_version", "is_active", "created_at",
	}).AddRow(
		"sum-1", "u1", 120, 0.85, now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0),
		[]byte(`[{"weekday":1,"start_hour":9,"end_hour":10,"state":"busy","confidence":0.9}]`),
		[]byte(`[[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]]`),
		[]byte(`{"by_day":[0,1,0,0,0,0,0],"by_hour":[0,0,0,0,0,0,0,0,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0],"by_day_hour":[[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]]}`),
		[]byte(`[{"weekday":2,"start_hour":10,"end_hour":11,"score":0.9,"rationale":"usually free Tuesdays at 10:00"}]`),
		[]byte(`[null,{"start_hour":9,"end_hour":17},{"start_hour":9,"end_hour":17},{"start_hour":9,"end_hour":17},{"start_hour":9,"end_hour":17},{"start_hour":9,"end_hour":17},null]`),
		42.5, "v1", true, now,
	)
}

func TestCompressedCalendarRepositoryGetActive(t *testing.T) {
	db, mock, cleanup := newSummaryMock(t)
	defer cleanup()
	repo := NewCompressedCalendarRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM compressed_calendar_summaries WHERE user_id = \$1 AND is_active = TRUE`).
		WithArgs("u1").
		WillReturnRows(summaryRows())

	summary, err := repo.GetActive(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "sum-1", summary.ID)
	assert.Equal(t, 120, summary.SourceEventCount)
	assert.InDelta(t, 0.85, summary.CompressionRatio, 1e-9)
	require.Len(t, summary.AvailabilityPatterns, 1)
	assert.Equal(t, models.SlotBusy, summary.AvailabilityPatterns[0].State)
	assert.InDelta(t, 1.0, summary.BusyProbabilityMap[1][9], 1e-9)
	require.NotNil(t, summary.TypicalWorkHours[1])
	assert.Nil(t, summary.TypicalWorkHours[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressedCalendarRepositoryGetActiveMissing(t *testing.T) {
	db, mock, cleanup := newSummaryMock(t)
	defer cleanup()
	repo := NewCompressedCalendarRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM compressed_calendar_summaries WHERE user_id = \$1 AND is_active = TRUE`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	summary, err := repo.GetActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressedCalendarRepositoryReplaceActive(t *testing.T) {
	db, mock, cleanup := newSummaryMock(t)
	defer cleanup()
	repo := NewCompressedCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE compressed_calendar_summaries SET is_active = FALSE").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO compressed_calendar_summaries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	summary := &models.CompressedCalendarSummary{
		UserID:           "u1",
		SourceEventCount: 10,
		CompressionRatio: 0.8,
		PeriodStart:      time.Now().UTC().AddDate(-1, 0, 0),
		PeriodEnd:        time.Now().UTC().AddDate(1, 0, 0),
		ModelVersion:     "v1",
	}
	err := repo.ReplaceActive(context.Background(), summary)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.ID)
	assert.True(t, summary.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressedCalendarRepositoryReplaceActiveRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newSummaryMock(t)
	defer cleanup()
	repo := NewCompressedCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE compressed_calendar_summaries SET is_active = FALSE").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO compressed_calendar_summaries").
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := repo.ReplaceActive(context.Background(), &models.CompressedCalendarSummary{UserID: "u1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressedCalendarRepositoryListStaleUsers(t *testing.T) {
	db, mock, cleanup := newSummaryMock(t)
	defer cleanup()
	repo := NewCompressedCalendarRepository(db)

	mock.ExpectQuery(`SELECT DISTINCT ce.user_id FROM calendar_events ce`).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	users, err := repo.ListStaleUsers(context.Background(), time.Now().UTC().Add(-7*24*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

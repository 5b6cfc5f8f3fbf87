package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoplan/calsync-api/internal/models"
)

type stubRunLister struct {
	runs   []models.SyncRun
	total  int
	err    error
	filter models.SyncRunFilter
}

func (s *stubRunLister) List(ctx context.Context, filter models.SyncRunFilter) ([]models.SyncRun, int, error) {
	s.filter = filter
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.runs, s.total, nil
}

func auditRun(status models.SyncRunStatus) models.SyncRun {
	duration := int64(1200)
	return models.SyncRun{
		ID:              "run-1",
		UserID:          "u1",
		Kind:            models.SyncKindFull,
		Status:          status,
		EventsFetched:   10,
		EventsAdded:     4,
		EventsUpdated:   1,
		EventsDeleted:   2,
		APICallCount:    3,
		StartedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		TotalDurationMs: &duration,
	}
}

func TestAuditServiceListRuns(t *testing.T) {
	lister := &stubRunLister{runs: []models.SyncRun{auditRun(models.SyncStatusCompleted)}, total: 41}
	svc := NewAuditService(lister)

	runs, pagination, err := svc.ListRuns(context.Background(), models.SyncRunFilter{UserID: "u1", Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 41, pagination.Total)
	assert.Equal(t, 2, pagination.Page)
}

func TestAuditServiceExportCSV(t *testing.T) {
	failed := auditRun(models.SyncStatusFailed)
	msg := "fetch: provider unavailable"
	failed.ErrorMessage = &msg
	lister := &stubRunLister{runs: []models.SyncRun{auditRun(models.SyncStatusCompleted), failed}}
	svc := NewAuditService(lister)

	payload, contentType, err := svc.Export(context.Background(), "u1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "started_at,status,kind,fetched,added,updated,deleted,api_calls,duration_ms,error", lines[0])
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[2], "provider unavailable")
	assert.Equal(t, "u1", lister.filter.UserID)
}

func TestAuditServiceExportPDF(t *testing.T) {
	lister := &stubRunLister{runs: []models.SyncRun{auditRun(models.SyncStatusCompleted)}}
	svc := NewAuditService(lister)

	payload, contentType, err := svc.Export(context.Background(), "u1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestAuditServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := NewAuditService(&stubRunLister{})

	_, _, err := svc.Export(context.Background(), "u1", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv or pdf")
}

func TestAuditServiceExportPropagatesListFailure(t *testing.T) {
	svc := NewAuditService(&stubRunLister{err: errors.New("relation does not exist")})

	_, _, err := svc.Export(context.Background(), "u1", "csv")
	require.Error(t, err)
}

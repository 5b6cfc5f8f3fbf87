package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chronoplan/calsync-api/internal/models"
	appErrors "github.com/chronoplan/calsync-api/pkg/errors"
	"github.com/chronoplan/calsync-api/pkg/export"
)

type syncRunLister interface {
	List(ctx context.Context, filter models.SyncRunFilter) ([]models.SyncRun, int, error)
}

// AuditService surfaces the sync run audit trail, including tabular exports.
type AuditService struct {
	runs syncRunLister
	csv  *export.CSVExporter
	pdf  *export.PDFExporter
}

// NewAuditService constructs the service.
func NewAuditService(runs syncRunLister) *AuditService {
	return &AuditService{
		runs: runs,
		csv:  export.NewCSVExporter(),
		pdf:  export.NewPDFExporter(),
	}
}

// ListRuns returns a user's sync history, newest first.
func (s *AuditService) ListRuns(ctx context.Context, filter models.SyncRunFilter) ([]models.SyncRun, *models.Pagination, error) {
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return runs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

var auditExportHeaders = []string{"started_at", "status", "kind", "fetched", "added", "updated", "deleted", "api_calls", "duration_ms", "error"}

// Export renders the user's full audit trail as CSV or PDF bytes.
func (s *AuditService) Export(ctx context.Context, userID, format string) ([]byte, string, error) {
	runs, _, err := s.runs.List(ctx, models.SyncRunFilter{UserID: userID, PageSize: 200})
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{Headers: auditExportHeaders, Rows: make([]map[string]string, 0, len(runs))}
	for _, run := range runs {
		row := map[string]string{
			"started_at": run.StartedAt.UTC().Format(time.RFC3339),
			"status":     string(run.Status),
			"kind":       string(run.Kind),
			"fetched":    strconv.Itoa(run.EventsFetched),
			"added":      strconv.Itoa(run.EventsAdded),
			"updated":    strconv.Itoa(run.EventsUpdated),
			"deleted":    strconv.Itoa(run.EventsDeleted),
			"api_calls":  strconv.Itoa(run.APICallCount),
		}
		if run.TotalDurationMs != nil {
			row["duration_ms"] = strconv.FormatInt(*run.TotalDurationMs, 10)
		}
		if run.ErrorMessage != nil {
			row["error"] = *run.ErrorMessage
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "calendar sync history")
		if err != nil {
			return nil, "", fmt.Errorf("render pdf: %w", err)
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chronoplan/calsync-api/internal/models"
)

const syncRunColumns = `id, user_id, kind, status, events_fetched, events_added, events_updated, events_deleted,
api_call_count, compression_attempted, compression_duration_ms, compression_error, error_message, error_trace,
started_at, completed_at, total_duration_ms`

// SyncRunRepository persists the audit trail of sync attempts. Rows are only
// ever inserted and mutated in place, never deleted.
type SyncRunRepository struct {
	db *sqlx.DB
}

// NewSyncRunRepository constructs the repository.
func NewSyncRunRepository(db *sqlx.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a run in its initial state.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.SyncStatusInitiated
	}
	query := `INSERT INTO sync_runs (id, user_id, kind, status, events_fetched, events_added, events_updated, events_deleted,
api_call_count, compression_attempted, compression_duration_ms, compression_error, error_message, error_trace,
started_at, completed_at, total_duration_ms)
VALUES (:id, :user_id, :kind, :status, :events_fetched, :events_added, :events_updated, :events_deleted,
:api_call_count, :compression_attempted, :compression_duration_ms, :compression_error, :error_message, :error_trace,
:started_at, :completed_at, :total_duration_ms)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// Update persists the mutable progress fields of a run.
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	query := `UPDATE sync_runs SET status = :status, events_fetched = :events_fetched, events_added = :events_added,
events_updated = :events_updated, events_deleted = :events_deleted, api_call_count = :api_call_count,
compression_attempted = :compression_attempted, compression_duration_ms = :compression_duration_ms,
compression_error = :compression_error, error_message = :error_message, error_trace = :error_trace,
completed_at = :completed_at, total_duration_ms = :total_duration_ms
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("update sync run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID fetches one run.
func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_runs WHERE id = $1`, syncRunColumns)
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, fmt.Errorf("get sync run %s: %w", id, err)
	}
	return &run, nil
}

// List returns a user's runs, newest first.
func (r *SyncRunRepository) List(ctx context.Context, filter models.SyncRunFilter) ([]models.SyncRun, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM sync_runs WHERE %s ORDER BY started_at DESC LIMIT %d OFFSET %d`,
		syncRunColumns, whereClause, size, offset)
	var runs []models.SyncRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sync runs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sync_runs WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sync runs: %w", err)
	}
	return runs, total, nil
}

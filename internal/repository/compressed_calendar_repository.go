package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chronoplan/calsync-api/internal/models"
)

const summaryColumns = `id, user_id, source_event_count, compression_ratio, period_start, period_end,
availability_patterns, busy_probability_map, meeting_density_scores, preferred_meeting_times,
typical_work_hours, average_meeting_minutes, model_version, is_active, created_at`

// CompressedCalendarRepository persists derived calendar summaries.
type CompressedCalendarRepository struct {
	db *sqlx.DB
}

// NewCompressedCalendarRepository constructs the repository.
func NewCompressedCalendarRepository(db *sqlx.DB) *CompressedCalendarRepository {
	return &CompressedCalendarRepository{db: db}
}

// GetActive returns the user's active summary, or nil when none exists.
func (r *CompressedCalendarRepository) GetActive(ctx context.Context, userID string) (*models.CompressedCalendarSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM compressed_calendar_summaries WHERE user_id = $1 AND is_active = TRUE`, summaryColumns)
	var summary models.CompressedCalendarSummary
	if err := r.db.GetContext(ctx, &summary, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active summary for user %s: %w", userID, err)
	}
	return &summary, nil
}

// ReplaceActive deactivates the user's current summary and inserts the new one
// as active, in a single transaction. Readers never observe zero or two active
// rows.
func (r *CompressedCalendarRepository) ReplaceActive(ctx context.Context, summary *models.CompressedCalendarSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	summary.IsActive = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary swap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE compressed_calendar_summaries SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`,
		summary.UserID); err != nil {
		return fmt.Errorf("deactivate prior summary for user %s: %w", summary.UserID, err)
	}

	query := `INSERT INTO compressed_calendar_summaries (id, user_id, source_event_count, compression_ratio, period_start, period_end,
availability_patterns, busy_probability_map, meeting_density_scores, preferred_meeting_times,
typical_work_hours, average_meeting_minutes, model_version, is_active, created_at)
VALUES (:id, :user_id, :source_event_count, :compression_ratio, :period_start, :period_end,
:availability_patterns, :busy_probability_map, :meeting_density_scores, :preferred_meeting_times,
:typical_work_hours, :average_meeting_minutes, :model_version, :is_active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("insert summary for user %s: %w", summary.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary swap: %w", err)
	}
	return nil
}

// ListStaleUsers returns users whose active summary predates the cutoff,
// plus users with mirrored events but no active summary at all.
func (r *CompressedCalendarRepository) ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT DISTINCT ce.user_id FROM calendar_events ce
LEFT JOIN compressed_calendar_summaries s ON s.user_id = ce.user_id AND s.is_active = TRUE
WHERE s.id IS NULL OR s.created_at < $1
LIMIT $2`
	var users []string
	if err := r.db.SelectContext(ctx, &users, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list stale users: %w", err)
	}
	return users, nil
}

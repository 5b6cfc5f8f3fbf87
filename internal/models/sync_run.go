package models

import "time"

// SyncRunStatus enumerates the orchestrator state machine.
type SyncRunStatus string

const (
	SyncStatusInitiated   SyncRunStatus = "initiated"
	SyncStatusFetching    SyncRunStatus = "fetching"
	SyncStatusCompressing SyncRunStatus = "compressing"
	SyncStatusCompleted   SyncRunStatus = "completed"
	SyncStatusFailed      SyncRunStatus = "failed"
)

// Terminal reports whether the status ends the run.
func (s SyncRunStatus) Terminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// SyncRunKind distinguishes full refetches from incremental ones.
type SyncRunKind string

const (
	SyncKindFull        SyncRunKind = "full"
	SyncKindIncremental SyncRunKind = "incremental"
)

// SyncRun is the audit record of one sync attempt. Rows are never deleted.
type SyncRun struct {
	ID                   string        `db:"id" json:"id"`
	UserID               string        `db:"user_id" json:"user_id"`
	Kind                 SyncRunKind   `db:"kind" json:"kind"`
	Status               SyncRunStatus `db:"status" json:"status"`
	EventsFetched        int           `db:"events_fetched" json:"events_fetched"`
	EventsAdded          int           `db:"events_added" json:"events_added"`
	EventsUpdated        int           `db:"events_updated" json:"events_updated"`
	EventsDeleted        int           `db:"events_deleted" json:"events_deleted"`
	APICallCount         int           `db:"api_call_count" json:"api_call_count"`
	CompressionAttempted bool          `db:"compression_attempted" json:"compression_attempted"`
	CompressionDuration  *int64        `db:"compression_duration_ms" json:"compression_duration_ms,omitempty"`
	CompressionError     *string       `db:"compression_error" json:"compression_error,omitempty"`
	ErrorMessage         *string       `db:"error_message" json:"error_message,omitempty"`
	ErrorTrace           *string       `db:"error_trace" json:"-"`
	StartedAt            time.Time     `db:"started_at" json:"started_at"`
	CompletedAt          *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	TotalDurationMs      *int64        `db:"total_duration_ms" json:"total_duration_ms,omitempty"`
}

// SyncRunFilter narrows audit listings.
type SyncRunFilter struct {
	UserID   string
	Status   *SyncRunStatus
	Page     int
	PageSize int
}

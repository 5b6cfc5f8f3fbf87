package dto

// SyncRequest tunes a single sync invocation.
type SyncRequest struct {
	WindowMonths    int  `json:"window_months" validate:"omitempty,min=1,max=24"`
	ForceRefresh    bool `json:"force_refresh"`
	SkipCompression bool `json:"skip_compression"`
}

// SyncResult is the structured, never-throwing outcome of a sync run.
type SyncResult struct {
	Success              bool     `json:"success"`
	SyncID               string   `json:"sync_id"`
	EventsFetched        int      `json:"events_fetched"`
	EventsAdded          int      `json:"events_added"`
	EventsUpdated        int      `json:"events_updated"`
	EventsDeleted        int      `json:"events_deleted"`
	APICallCount         int      `json:"api_call_count"`
	CompressionCompleted bool     `json:"compression_completed"`
	CompressionRatio     *float64 `json:"compression_ratio,omitempty"`
	TotalDurationMs      int64    `json:"total_duration_ms"`
	Error                string   `json:"error,omitempty"`
}

// NeedsSyncResult reports the staleness decision.
type NeedsSyncResult struct {
	NeedsSync bool `json:"needs_sync"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SlotState marks a weekly template slot busy or free.
type SlotState string

const (
	SlotBusy SlotState = "busy"
	SlotFree SlotState = "free"
)

// AvailabilitySlot is one recurring weekly free/busy template entry.
type AvailabilitySlot struct {
	Weekday    int       `json:"weekday"`
	StartHour  int       `json:"start_hour"`
	EndHour    int       `json:"end_hour"`
	State      SlotState `json:"state"`
	Confidence float64   `json:"confidence"`
}

// AvailabilityPatterns is the set of recurring weekly slot templates.
type AvailabilityPatterns []AvailabilitySlot

// BusyProbabilityMap holds P(busy) per weekday and hour of day.
type BusyProbabilityMap [7][24]float64

// MeetingDensityScores aggregates normalized meeting counts.
type MeetingDensityScores struct {
	ByDay     [7]float64     `json:"by_day"`
	ByHour    [24]float64    `json:"by_hour"`
	ByDayHour [7][24]float64 `json:"by_day_hour"`
}

// PreferredMeetingTime is a ranked candidate slot with a short rationale.
type PreferredMeetingTime struct {
	Weekday   int     `json:"weekday"`
	StartHour int     `json:"start_hour"`
	EndHour   int     `json:"end_hour"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// PreferredMeetingTimes is the ranked candidate list.
type PreferredMeetingTimes []PreferredMeetingTime

// WorkHours bounds a weekday's typical working window.
type WorkHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// TypicalWorkHours maps weekday (0 = Sunday) to working window; nil means no
// typical hours observed for that day.
type TypicalWorkHours [7]*WorkHours

// CompressedCalendarSummary is the derived behavioral summary of a user's
// calendar. At most one row per user is active at a time.
type CompressedCalendarSummary struct {
	ID                    string                `db:"id" json:"id"`
	UserID                string                `db:"user_id" json:"user_id"`
	SourceEventCount      int                   `db:"source_event_count" json:"source_event_count"`
	CompressionRatio      float64               `db:"compression_ratio" json:"compression_ratio"`
	PeriodStart           time.Time             `db:"period_start" json:"period_start"`
	PeriodEnd             time.Time             `db:"period_end" json:"period_end"`
	AvailabilityPatterns  AvailabilityPatterns  `db:"availability_patterns" json:"availability_patterns"`
	BusyProbabilityMap    BusyProbabilityMap    `db:"busy_probability_map" json:"busy_probability_map"`
	MeetingDensityScores  MeetingDensityScores  `db:"meeting_density_scores" json:"meeting_density_scores"`
	PreferredMeetingTimes PreferredMeetingTimes `db:"preferred_meeting_times" json:"preferred_meeting_times"`
	TypicalWorkHours      TypicalWorkHours      `db:"typical_work_hours" json:"typical_work_hours"`
	AverageMeetingMinutes float64               `db:"average_meeting_minutes" json:"average_meeting_minutes"`
	ModelVersion          string                `db:"model_version" json:"model_version"`
	IsActive              bool                  `db:"is_active" json:"is_active"`
	CreatedAt             time.Time             `db:"created_at" json:"created_at"`
}

func jsonbValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}

func jsonbScan(src, dest interface{}) error {
	switch raw := src.(type) {
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (p AvailabilityPatterns) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *AvailabilityPatterns) Scan(src interface{}) error  { return jsonbScan(src, p) }

func (m BusyProbabilityMap) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *BusyProbabilityMap) Scan(src interface{}) error  { return jsonbScan(src, m) }

func (s MeetingDensityScores) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *MeetingDensityScores) Scan(src interface{}) error  { return jsonbScan(src, s) }

func (p PreferredMeetingTimes) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *PreferredMeetingTimes) Scan(src interface{}) error  { return jsonbScan(src, p) }

func (w TypicalWorkHours) Value() (driver.Value, error) { return jsonbValue(w) }
func (w *TypicalWorkHours) Scan(src interface{}) error  { return jsonbScan(src, w) }

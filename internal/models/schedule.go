package models

import "time"

// Period is the recurrence unit of a zone schedule.
type Period string

const (
	PeriodDaily     Period = "Daily"
	PeriodWeekly    Period = "Weekly"
	PeriodMonthly   Period = "Monthly"
	PeriodSpecific  Period = "Specific"  // reserved
	PeriodIntervals Period = "Intervals" // reserved
)

// ScheduleMode enables or disables a zone schedule.
type ScheduleMode string

const (
	ModeDisabled ScheduleMode = "disabled"
	ModeActive   ScheduleMode = "active"
)

// TimeSlot is one start time of a zone. StartTimeCode is HH:MM, legacy HHMMSS,
// or a symbolic code that must be resolved against date and location.
type TimeSlot struct {
	StartTimeCode string `json:"start_time"`
	Duration      string `json:"duration"`
}

// ScheduleSpec is the recurring schedule of one zone.
type ScheduleSpec struct {
	Zone   ZoneID       `json:"zone_id"`
	Period Period       `json:"period"`
	Cycles int          `json:"cycles"`
	Times  []TimeSlot   `json:"times"`
	Mode   ScheduleMode `json:"mode"`
}

// Unresolved marks a time code the resolver could not turn into a clock time.
const Unresolved = "N/A"

// ResolvedTimes maps a time code to "HH:MM" or Unresolved.
type ResolvedTimes map[string]string

// ResolvedTimeCache holds resolved codes per zone for a single calendar day.
type ResolvedTimeCache struct {
	Day         string                   `json:"day"` // YYYY-MM-DD
	Fingerprint string                   `json:"fingerprint"`
	Zones       map[ZoneID]ResolvedTimes `json:"zones"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ZoneNextRun is the display-ready next run of a zone.
type ZoneNextRun struct {
	Zone        ZoneID       `json:"zone"`
	Period      Period       `json:"period"`
	Mode        ScheduleMode `json:"mode"`
	NextRunDate *time.Time   `json:"next_run_date,omitempty"`
	Display     string       `json:"display"`
	NextTime    string       `json:"next_time"`
}

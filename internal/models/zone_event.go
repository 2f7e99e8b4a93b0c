package models

import "time"

// Journal event types.
const (
	EventCommandStart       = "COMMAND_START"
	EventCommandStop        = "COMMAND_STOP"
	EventCommandRollback    = "COMMAND_ROLLBACK"
	EventTransitionResolved = "TRANSITION_RESOLVED"
	EventTransitionTimeout  = "TRANSITION_TIMEOUT"
	EventDrift              = "DRIFT"
	EventScheduleRefresh    = "SCHEDULE_REFRESH"
)

// Journal severities. CRITICAL is reserved for reconciliation timeouts.
const (
	LevelInfo     = "INFO"
	LevelWarn     = "WARN"
	LevelCritical = "CRITICAL"
)

// ZoneEvent is a single journal entry.
type ZoneEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Zone        ZoneID    `json:"zone,omitempty"` // 0 for events not tied to a zone
	Type        string    `json:"type"`
	Level       string    `json:"level"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

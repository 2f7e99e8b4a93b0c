package models

import "time"

// CommandPhase tracks an optimistic desired-state write through its backend request.
type CommandPhase string

const (
	PhasePending    CommandPhase = "pending"
	PhaseCommitted  CommandPhase = "committed"
	PhaseRolledBack CommandPhase = "rolled_back"
)

// Command is one start/stop request issued for a zone.
type Command struct {
	ID          string       `json:"id"`
	Zone        ZoneID       `json:"zone"`
	Target      bool         `json:"target_active"`
	Seconds     int          `json:"seconds,omitempty"`
	Phase       CommandPhase `json:"phase"`
	IssuedAt    time.Time    `json:"issued_at"`
	Previous    DesiredState `json:"-"`
	HadPrevious bool         `json:"-"`
}

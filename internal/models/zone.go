package models

import "time"

// ZoneID is the 1-based relay channel number of an irrigation zone.
type ZoneID int

// Valid reports whether the id can address a physical relay.
func (z ZoneID) Valid() bool { return z >= 1 }

// ValidationState is the derived agreement between commanded and observed zone state.
type ValidationState string

const (
	StateGreen  ValidationState = "green"  // commanded on, observed on
	StateGray   ValidationState = "gray"   // commanded off, observed off
	StateOrange ValidationState = "orange" // transition in flight
	StateRed    ValidationState = "red"    // mismatch past timeout, or drift
)

// Settled returns green for an active zone and gray for an idle one.
func Settled(active bool) ValidationState {
	if active {
		return StateGreen
	}
	return StateGray
}

// DesiredState is the state the dashboard last commanded for a zone.
// A zero CommandedAt means no transition is in flight.
type DesiredState struct {
	ExpectedActive bool      `json:"expected_active"`
	CommandedAt    time.Time `json:"commanded_at"`
}

// InFlight reports whether a commanded transition has not yet been confirmed.
func (d DesiredState) InFlight() bool { return !d.CommandedAt.IsZero() }

// ObservedState is the state reported by the controller on the latest poll.
type ObservedState struct {
	Active           bool `json:"active"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// ZoneStatus is the published view of one zone after reconciliation.
type ZoneStatus struct {
	Zone             ZoneID          `json:"zone"`
	State            ValidationState `json:"state"`
	ExpectedActive   bool            `json:"expected_active"`
	ObservedActive   bool            `json:"observed_active"`
	RemainingSeconds int             `json:"remaining_seconds,omitempty"`
	InFlight         bool            `json:"in_flight"`
	CommandedAt      *time.Time      `json:"commanded_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

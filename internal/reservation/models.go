package reservation

import (
	"time"

	id "parqueo/pkg/domain"
)

// State is the lifecycle position of a reservation.
type State string

const (
	// StateReserved means booked, vehicle not yet on the lot.
	StateReserved State = "RESERVED"
	// StateActive means the entry checkpoint accepted the vehicle.
	StateActive State = "ACTIVE"
	// StateFinished means the exit checkpoint released the space.
	StateFinished State = "FINISHED"
	// StateCancelled means the holder or an administrator withdrew the
	// reservation before it ran its course.
	StateCancelled State = "CANCELLED"
	// StateExpired means a deadline passed: either the holder never
	// showed up, or they overstayed past the booked end.
	StateExpired State = "EXPIRED"
)

func (s State) Valid() bool {
	switch s {
	case StateReserved, StateActive, StateFinished, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave the state.
// EXPIRED is deliberately not terminal: an overstayed vehicle still exits.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// legalEdges is the full transition graph. Everything else is refused
// with an invalid-state error.
var legalEdges = map[State][]State{
	StateReserved: {StateActive, StateCancelled, StateExpired},
	StateActive:   {StateFinished, StateCancelled, StateExpired},
	StateExpired:  {StateFinished},
}

// CanTransition reports whether from→to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reservation holds one user's claim on one space for a time window.
type Reservation struct {
	ID          id.ReservationID `json:"id"`
	UserID      id.UserID        `json:"user_id"`
	VehicleID   id.VehicleID     `json:"vehicle_id"`
	SpaceID     id.SpaceID       `json:"space_id"`
	StartAt     time.Time        `json:"start_at"`
	EndAt       time.Time        `json:"end_at"`
	State       State            `json:"state"`
	StateReason string           `json:"state_reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Outcome distinguishes a transition this call applied from one a
// concurrent caller already completed.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeAlreadyInTarget Outcome = "already_in_target"
)

// TransitionResult reports the post-transition reservation and whether
// this call was the one that moved it. From is the state the CAS
// actually moved from, which can differ from whatever the caller last
// read; it is only meaningful when Outcome is OutcomeApplied.
type TransitionResult struct {
	Reservation *Reservation
	From        State
	Outcome     Outcome
}

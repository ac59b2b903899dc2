package reservation

import (
	"context"
	"time"

	id "parqueo/pkg/domain"
)

// Store persists reservations. UpdateStateCAS is the linearization
// point for every transition: it succeeds only when the row is still in
// one of the expected source states.
type Store interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, resID id.ReservationID) (*Reservation, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Reservation, error)
	ListBySpace(ctx context.Context, spaceID id.SpaceID) ([]*Reservation, error)
	ListByState(ctx context.Context, states ...State) ([]*Reservation, error)

	// FindOverlapping returns non-terminal reservations on the space whose
	// [StartAt, EndAt) window intersects [start, end).
	FindOverlapping(ctx context.Context, spaceID id.SpaceID, start, end time.Time) ([]*Reservation, error)

	// UpdateStateCAS moves the reservation to target iff its current state
	// is one of from. Returns sentinel.ErrNotFound for an unknown id and
	// sentinel.ErrInvalidState when the row moved on; callers re-read to
	// tell "already in target" apart from a genuinely illegal edge.
	UpdateStateCAS(ctx context.Context, resID id.ReservationID, from []State, target State, reason string, at time.Time) (*Reservation, error)

	// HasPending reports whether the user holds a reservation in any of the
	// given states. The access gate uses it as its pending-business check.
	HasPending(ctx context.Context, userID id.UserID, states ...State) (bool, error)
}

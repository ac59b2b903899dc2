package history

import (
	"context"

	id "parqueo/pkg/domain"
)

// Store is the append-only audit trail.
type Store interface {
	Append(ctx context.Context, e *Event) error
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*Event, error)
	ListByReservation(ctx context.Context, resID id.ReservationID) ([]*Event, error)
}

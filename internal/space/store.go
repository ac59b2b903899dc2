package space

import (
	"context"

	id "parqueo/pkg/domain"
)

// Store persists parking spaces.
//
// Error contract: Get returns ErrNotFound (wrapped) for unknown ids; Save
// returns ErrConflict for duplicate codes; SetStatusIf reports false without
// error when the precondition no longer holds.
type Store interface {
	Save(ctx context.Context, s *ParkingSpace) error
	Get(ctx context.Context, spaceID id.SpaceID) (*ParkingSpace, error)
	List(ctx context.Context) ([]*ParkingSpace, error)
	// SetStatusIf updates the status only while the current status is one of
	// from. The conditional write is what keeps a manually held
	// (OUT_OF_SERVICE / MAINTENANCE) space from being freed by a reservation
	// transition.
	SetStatusIf(ctx context.Context, spaceID id.SpaceID, from []Status, to Status) (bool, error)
}

package user

import (
	"context"

	id "parqueo/pkg/domain"
)

// Store persists users and their vehicles. Get and FindByUsername return
// ErrNotFound (wrapped) for unknown entities.
type Store interface {
	SaveUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// SetEnabled flips the account flag and cascades to every vehicle the
	// user owns; the two writes are atomic in the postgres implementation.
	SetEnabled(ctx context.Context, userID id.UserID, enabled bool) error

	SaveVehicle(ctx context.Context, v *Vehicle) error
	GetVehicle(ctx context.Context, vehicleID id.VehicleID) (*Vehicle, error)
	ListVehicles(ctx context.Context, userID id.UserID) ([]*Vehicle, error)
}

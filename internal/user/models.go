package user

import (
	id "parqueo/pkg/domain"
)

// User is the slice of the account entity this service consumes. Enabled is
// recomputed by the sanction engine whenever a suspension window opens or
// closes; nothing else writes it.
type User struct {
	ID           id.UserID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Enabled      bool      `json:"enabled"`
}

// Vehicle is enabled in lock-step with its owner.
type Vehicle struct {
	ID      id.VehicleID `json:"id"`
	UserID  id.UserID    `json:"user_id"`
	Plate   string       `json:"plate"`
	Enabled bool         `json:"enabled"`
}

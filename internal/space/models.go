package space

import (
	id "parqueo/pkg/domain"
)

// Status is the occupancy state of a physical parking space.
type Status string

const (
	StatusAvailable    Status = "AVAILABLE"
	StatusOccupied     Status = "OCCUPIED"
	StatusReserved     Status = "RESERVED"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusMaintenance  Status = "MAINTENANCE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusReserved, StatusOutOfService, StatusMaintenance:
		return true
	}
	return false
}

// Operational reports whether the space participates in reservations at all.
// OUT_OF_SERVICE and MAINTENANCE spaces are manually held and never freed or
// claimed by the reservation engine.
func (s Status) Operational() bool {
	return s == StatusAvailable || s == StatusOccupied || s == StatusReserved
}

// ParkingSpace is a physical space on the campus lot. Its status mirrors the
// state of the reservation currently holding it; only the reservation engine
// writes it.
type ParkingSpace struct {
	ID     id.SpaceID `json:"id"`
	Code   string     `json:"code"`
	Status Status     `json:"status"`
}

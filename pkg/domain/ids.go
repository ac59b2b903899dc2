// Package domain defines the typed identifiers shared across services.
// Distinct types keep a VehicleID from ever being passed where a UserID is
// expected; the compiler enforces what code review would otherwise have to.
package domain

import (
	"github.com/google/uuid"

	dErrors "parqueo/pkg/domain-errors"
)

type (
	// UserID identifies an account holder.
	UserID uuid.UUID
	// VehicleID identifies a registered vehicle.
	VehicleID uuid.UUID
	// SpaceID identifies a physical parking space.
	SpaceID uuid.UUID
	// ReservationID identifies a reservation.
	ReservationID uuid.UUID
	// TokenID identifies a checkpoint token record (not its secret).
	TokenID uuid.UUID
	// SanctionID identifies a sanction.
	SanctionID uuid.UUID
	// RuleID identifies an infraction rule.
	RuleID uuid.UUID
)

// parseUUID enforces the shared invariant: ids must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be empty", label)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid uuid", label)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil uuid", label)
	}
	return id, nil
}

func NewUserID() UserID        { return UserID(uuid.New()) }
func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user id")
	return UserID(id), err
}

func NewVehicleID() VehicleID     { return VehicleID(uuid.New()) }
func (id VehicleID) String() string { return uuid.UUID(id).String() }
func (id VehicleID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id VehicleID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *VehicleID) UnmarshalText(b []byte) error {
	parsed, err := ParseVehicleID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseVehicleID(s string) (VehicleID, error) {
	id, err := parseUUID(s, "vehicle id")
	return VehicleID(id), err
}

func NewSpaceID() SpaceID       { return SpaceID(uuid.New()) }
func (id SpaceID) String() string { return uuid.UUID(id).String() }
func (id SpaceID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SpaceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *SpaceID) UnmarshalText(b []byte) error {
	parsed, err := ParseSpaceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseSpaceID(s string) (SpaceID, error) {
	id, err := parseUUID(s, "space id")
	return SpaceID(id), err
}

func NewReservationID() ReservationID { return ReservationID(uuid.New()) }
func (id ReservationID) String() string { return uuid.UUID(id).String() }
func (id ReservationID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReservationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ReservationID) UnmarshalText(b []byte) error {
	parsed, err := ParseReservationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseReservationID(s string) (ReservationID, error) {
	id, err := parseUUID(s, "reservation id")
	return ReservationID(id), err
}

func NewTokenID() TokenID       { return TokenID(uuid.New()) }
func (id TokenID) String() string { return uuid.UUID(id).String() }
func (id TokenID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *TokenID) UnmarshalText(b []byte) error {
	parsed, err := ParseTokenID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseTokenID(s string) (TokenID, error) {
	id, err := parseUUID(s, "token id")
	return TokenID(id), err
}

func NewSanctionID() SanctionID   { return SanctionID(uuid.New()) }
func (id SanctionID) String() string { return uuid.UUID(id).String() }
func (id SanctionID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SanctionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *SanctionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSanctionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseSanctionID(s string) (SanctionID, error) {
	id, err := parseUUID(s, "sanction id")
	return SanctionID(id), err
}

func NewRuleID() RuleID         { return RuleID(uuid.New()) }
func (id RuleID) String() string { return uuid.UUID(id).String() }
func (id RuleID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *RuleID) UnmarshalText(b []byte) error {
	parsed, err := ParseRuleID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseRuleID(s string) (RuleID, error) {
	id, err := parseUUID(s, "rule id")
	return RuleID(id), err
}

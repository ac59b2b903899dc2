package sanction

import (
	"time"

	"parqueo/internal/rule"
	id "parqueo/pkg/domain"
)

// State is the administrative position of a sanction.
type State string

const (
	StateActive   State = "ACTIVE"
	StateResolved State = "RESOLVED"
	// StateVoid marks a sanction recorded in error. Void sanctions never
	// count toward recidivism.
	StateVoid State = "VOID"
)

func (s State) Valid() bool {
	return s == StateActive || s == StateResolved || s == StateVoid
}

// PunishmentKind tags what the escalation table decided.
type PunishmentKind string

const (
	PunishmentWarning             PunishmentKind = "warning"
	PunishmentTemporarySuspension PunishmentKind = "temporary-suspension"
	PunishmentTotalSuspension     PunishmentKind = "total-suspension"
)

// Sanction is one punitive record against a user. A nil SuspensionEnd
// on a suspension means indefinite.
type Sanction struct {
	ID              id.SanctionID     `json:"id"`
	UserID          id.UserID         `json:"user_id"`
	VehicleID       id.VehicleID      `json:"vehicle_id"`
	ReservationID   *id.ReservationID `json:"reservation_id,omitempty"`
	RuleID          *id.RuleID        `json:"rule_id,omitempty"`
	Reason          string            `json:"reason"`
	State           State             `json:"state"`
	RegisteredAt    time.Time         `json:"registered_at"`
	PunishmentKind  PunishmentKind    `json:"punishment_kind"`
	SuspensionStart *time.Time        `json:"suspension_start,omitempty"`
	SuspensionEnd   *time.Time        `json:"suspension_end,omitempty"`
	FaultKind       rule.FaultKind    `json:"fault_kind"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}

// EffectiveAt reports whether the sanction's suspension window covers
// now. Warnings carry no window and are never effective; an open-ended
// total suspension covers every instant after its start.
func (s *Sanction) EffectiveAt(now time.Time) bool {
	if s.State != StateActive || s.SuspensionStart == nil {
		return false
	}
	if now.Before(*s.SuspensionStart) {
		return false
	}
	return s.SuspensionEnd == nil || now.Before(*s.SuspensionEnd)
}

// Punishment is what the escalation table hands back.
type Punishment struct {
	Kind            PunishmentKind
	SuspensionStart *time.Time
	SuspensionEnd   *time.Time
}

// Escalate computes the punishment for a fault given how many prior
// sanctions of the same fault kind the user already carries (ACTIVE or
// RESOLVED; VOID records do not count).
//
//	MINOR: warning, then 7 days, then total
//	MAJOR: 7 days, then 30 days, then total
func Escalate(kind rule.FaultKind, priorCount int, now time.Time) Punishment {
	suspension := func(d time.Duration) Punishment {
		start := now
		end := now.Add(d)
		return Punishment{
			Kind:            PunishmentTemporarySuspension,
			SuspensionStart: &start,
			SuspensionEnd:   &end,
		}
	}
	total := func() Punishment {
		start := now
		return Punishment{Kind: PunishmentTotalSuspension, SuspensionStart: &start}
	}

	if kind == rule.FaultMajor {
		switch priorCount {
		case 0:
			return suspension(7 * 24 * time.Hour)
		case 1:
			return suspension(30 * 24 * time.Hour)
		default:
			return total()
		}
	}
	switch priorCount {
	case 0:
		return Punishment{Kind: PunishmentWarning}
	case 1:
		return suspension(7 * 24 * time.Hour)
	default:
		return total()
	}
}

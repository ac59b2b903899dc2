package sanction

import (
	"context"
	"time"

	"parqueo/internal/rule"
	id "parqueo/pkg/domain"
)

// Store persists sanctions.
type Store interface {
	Save(ctx context.Context, s *Sanction) error
	Get(ctx context.Context, sanctionID id.SanctionID) (*Sanction, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Sanction, error)

	// CountPrior counts the user's ACTIVE and RESOLVED sanctions of the
	// given fault kind — the recidivism input to the escalation table.
	CountPrior(ctx context.Context, userID id.UserID, kind rule.FaultKind) (int, error)

	// ExistsForReservation reports whether the reservation already produced
	// a sanction, which keeps an overstay from being punished twice.
	ExistsForReservation(ctx context.Context, resID id.ReservationID) (bool, error)

	// EffectiveSuspension returns the sanction whose suspension window
	// covers now, or nil when the user is not currently suspended.
	EffectiveSuspension(ctx context.Context, userID id.UserID, now time.Time) (*Sanction, error)
}

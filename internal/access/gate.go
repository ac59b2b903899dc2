// Package access decides whether a user may obtain a session. It is a
// pure predicate over sanction and reservation data and never mutates
// anything.
package access

import (
	"context"
	"log/slog"
	"time"

	"parqueo/internal/reservation"
	"parqueo/internal/sanction"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

// SuspensionSource is the slice of the sanction store the gate reads.
type SuspensionSource interface {
	EffectiveSuspension(ctx context.Context, userID id.UserID, now time.Time) (*sanction.Sanction, error)
}

// PendingSource reports whether the user has unfinished parking
// business that requires a login to resolve.
type PendingSource interface {
	HasPending(ctx context.Context, userID id.UserID, states ...reservation.State) (bool, error)
}

// Decision is the gate's verdict. Restricted means the user is
// suspended but logged in anyway to resolve a pending reservation; the
// caller must reflect that reduced authority in the session it issues.
type Decision struct {
	Allowed       bool       `json:"allowed"`
	Restricted    bool       `json:"restricted"`
	SuspensionEnd *time.Time `json:"suspension_end,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// Gate is consulted during authentication, before credentials are
// issued.
type Gate struct {
	suspensions  SuspensionSource
	reservations PendingSource
	logger       *slog.Logger
}

func NewGate(suspensions SuspensionSource, reservations PendingSource, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{suspensions: suspensions, reservations: reservations, logger: logger}
}

// Check evaluates the gate for a user. A suspended user with no ACTIVE
// or EXPIRED reservation is refused with an account_locked error
// carrying the suspension end (absent means indefinite). A suspended
// user who still has a vehicle on the lot gets in with restricted
// authority — they need access to register their exit.
func (g *Gate) Check(ctx context.Context, userID id.UserID) (*Decision, error) {
	now := requestcontext.Now(ctx)

	effective, err := g.suspensions.EffectiveSuspension(ctx, userID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check suspension")
	}
	if effective == nil {
		return &Decision{Allowed: true}, nil
	}

	pending, err := g.reservations.HasPending(ctx, userID,
		reservation.StateActive, reservation.StateExpired)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check pending reservations")
	}
	if pending {
		g.logger.Info("suspended user admitted with restricted authority",
			"user_id", userID, "sanction_id", effective.ID)
		return &Decision{
			Allowed:       true,
			Restricted:    true,
			SuspensionEnd: effective.SuspensionEnd,
			Reason:        "suspended with a pending reservation",
		}, nil
	}

	lockErr := dErrors.New(dErrors.CodeLocked, "account suspended")
	if effective.SuspensionEnd != nil {
		lockErr = lockErr.WithDetail("suspension_end", effective.SuspensionEnd.Format(time.RFC3339))
	} else {
		lockErr = lockErr.WithDetail("suspension_end", "indefinite")
	}
	return nil, lockErr
}

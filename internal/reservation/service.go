package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parqueo/internal/history"
	"parqueo/internal/notification"
	"parqueo/internal/platform/metrics"
	"parqueo/internal/space"
	"parqueo/internal/user"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/requestcontext"
)

// TokenMinter issues the ENTRY token for a new reservation and returns
// its secret. Implemented by the checkpoint service.
type TokenMinter interface {
	MintEntry(ctx context.Context, resID id.ReservationID, validFrom, validUntil time.Time) (string, error)
}

// Engine owns the reservation state machine. It is the only writer of
// parking-space status, and only ever as a consequence of a transition.
type Engine struct {
	store       Store
	spaces      space.Store
	users       user.Store
	events      history.Store
	notifier    notification.Notifier
	minter      TokenMinter
	entryWindow time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type EngineOption func(*Engine)

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEntryWindow overrides the half-width of the entry validity
// window around the reservation start.
func WithEntryWindow(d time.Duration) EngineOption {
	return func(e *Engine) { e.entryWindow = d }
}

func NewEngine(store Store, spaces space.Store, users user.Store, events history.Store, notifier notification.Notifier, minter TokenMinter, opts ...EngineOption) *Engine {
	e := &Engine{
		store:       store,
		spaces:      spaces,
		users:       users,
		events:      events,
		notifier:    notifier,
		minter:      minter,
		entryWindow: 30 * time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateResult carries the new reservation and the entry secret the
// driver presents at the gate. The secret is returned exactly once.
type CreateResult struct {
	Reservation *Reservation `json:"reservation"`
	EntrySecret string       `json:"entry_secret"`
}

// Create books a space for a window, mints the ENTRY token, and marks
// the space RESERVED when it is currently free.
func (e *Engine) Create(ctx context.Context, userID id.UserID, vehicleID id.VehicleID, spaceID id.SpaceID, start, end time.Time) (*CreateResult, error) {
	now := requestcontext.Now(ctx)

	if !start.Before(end) {
		return nil, dErrors.New(dErrors.CodeValidation, "start must be before end")
	}
	if start.Before(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "start must be in the future")
	}

	u, err := e.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up user")
	}
	if !u.Enabled {
		return nil, dErrors.New(dErrors.CodeLocked, "account suspended")
	}

	v, err := e.users.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown vehicle")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up vehicle")
	}
	if v.UserID != userID {
		return nil, dErrors.New(dErrors.CodeValidation, "vehicle does not belong to user")
	}
	if !v.Enabled {
		return nil, dErrors.New(dErrors.CodeLocked, "vehicle suspended")
	}

	sp, err := e.spaces.Get(ctx, spaceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown space")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up space")
	}
	if !sp.Status.Operational() {
		return nil, dErrors.Newf(dErrors.CodeConflict, "space %s is %s", sp.Code, sp.Status)
	}

	overlapping, err := e.store.FindOverlapping(ctx, spaceID, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check overlaps")
	}
	if len(overlapping) > 0 {
		return nil, dErrors.New(dErrors.CodeConflict, "space already reserved for that window").
			WithDetail("conflicting_reservation_id", overlapping[0].ID.String())
	}

	r := &Reservation{
		ID:        id.NewReservationID(),
		UserID:    userID,
		VehicleID: vehicleID,
		SpaceID:   spaceID,
		StartAt:   start,
		EndAt:     end,
		State:     StateReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create reservation")
	}

	// Mirror the booking onto the space. A space currently OCCUPIED by an
	// earlier reservation keeps its status; the holder's transition will
	// settle it later.
	if _, err := e.spaces.SetStatusIf(ctx, spaceID, []space.Status{space.StatusAvailable}, space.StatusReserved); err != nil {
		e.logger.Warn("space status mirror failed on create",
			"error", err, "space_id", spaceID, "reservation_id", r.ID)
	}

	secret, err := e.minter.MintEntry(ctx, r.ID, start.Add(-e.entryWindow), start.Add(e.entryWindow))
	if err != nil {
		// A token-less reservation can never be entered and the no-show
		// pass would skip it until EndAt. Take the booking back.
		if _, casErr := e.store.UpdateStateCAS(ctx, r.ID, []State{StateReserved}, StateCancelled,
			"entry token issuance failed", now); casErr != nil {
			e.logger.Error("rollback after mint failure failed",
				"error", casErr, "reservation_id", r.ID)
		} else if _, spErr := e.spaces.SetStatusIf(ctx, spaceID,
			[]space.Status{space.StatusReserved}, space.StatusAvailable); spErr != nil {
			e.logger.Error("space release after mint failure failed",
				"error", spErr, "space_id", spaceID, "reservation_id", r.ID)
		}
		return nil, err
	}

	e.record(ctx, r, history.ActionReserve, "reservation created", now)
	e.notify(ctx, r, notification.KindReservationCreated,
		fmt.Sprintf("Reservation confirmed for %s.", start.Format(time.RFC3339)), now)
	if e.metrics != nil {
		e.metrics.ReservationsCreated.Inc()
	}
	e.logger.Info("reservation created",
		"reservation_id", r.ID, "user_id", userID, "space_id", spaceID)

	return &CreateResult{Reservation: r, EntrySecret: secret}, nil
}

func (e *Engine) Get(ctx context.Context, resID id.ReservationID) (*Reservation, error) {
	r, err := e.store.Get(ctx, resID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown reservation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up reservation")
	}
	return r, nil
}

func (e *Engine) ListByUser(ctx context.Context, userID id.UserID) ([]*Reservation, error) {
	out, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list reservations")
	}
	return out, nil
}

func (e *Engine) ListBySpace(ctx context.Context, spaceID id.SpaceID) ([]*Reservation, error) {
	out, err := e.store.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list reservations")
	}
	return out, nil
}

func (e *Engine) ListByState(ctx context.Context, states ...State) ([]*Reservation, error) {
	for _, st := range states {
		if !st.Valid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown state %q", st)
		}
	}
	out, err := e.store.ListByState(ctx, states...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list reservations")
	}
	return out, nil
}

// Transition moves a reservation along a legal edge and mirrors the
// space. Concurrent callers racing to the same target are collapsed:
// the loser gets OutcomeAlreadyInTarget instead of an error.
func (e *Engine) Transition(ctx context.Context, resID id.ReservationID, target State, reason string) (*TransitionResult, error) {
	now := requestcontext.Now(ctx)
	if !target.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown state %q", target)
	}

	current, err := e.Get(ctx, resID)
	if err != nil {
		return nil, err
	}
	if current.State == target {
		return &TransitionResult{Reservation: current, Outcome: OutcomeAlreadyInTarget}, nil
	}
	if !CanTransition(current.State, target) {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "cannot move %s reservation to %s", current.State, target)
	}

	prev := current.State
	updated, err := e.store.UpdateStateCAS(ctx, resID, []State{prev}, target, reason, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown reservation")
		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost the race. If the winner took it to the same target the
			// transition is idempotent; anything else is a real refusal.
			latest, getErr := e.Get(ctx, resID)
			if getErr != nil {
				return nil, getErr
			}
			if latest.State == target {
				return &TransitionResult{Reservation: latest, Outcome: OutcomeAlreadyInTarget}, nil
			}
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "cannot move %s reservation to %s", latest.State, target)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "transition reservation")
	}

	e.mirrorSpace(ctx, updated, prev, target)
	e.recordTransition(ctx, updated, prev, target, reason, now)
	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	e.logger.Info("reservation transitioned",
		"reservation_id", resID, "from", prev, "to", target, "reason", reason)

	return &TransitionResult{Reservation: updated, From: prev, Outcome: OutcomeApplied}, nil
}

// Cancel withdraws a reservation before or during its window.
func (e *Engine) Cancel(ctx context.Context, resID id.ReservationID, reason string) (*Reservation, error) {
	if reason == "" {
		reason = "cancelled by holder"
	}
	tr, err := e.Transition(ctx, resID, StateCancelled, reason)
	if err != nil {
		return nil, err
	}
	return tr.Reservation, nil
}

// ForceExpire is the administrative override for a reservation stuck in
// RESERVED or ACTIVE.
func (e *Engine) ForceExpire(ctx context.Context, resID id.ReservationID) (*Reservation, error) {
	tr, err := e.Transition(ctx, resID, StateExpired, "forced by administrator")
	if err != nil {
		return nil, err
	}
	return tr.Reservation, nil
}

// mirrorSpace keeps space status in lock-step with the holding
// reservation. EXPIRED-from-ACTIVE deliberately leaves the space
// OCCUPIED: the vehicle is presumed still parked. Conditional updates
// leave manual MAINTENANCE / OUT_OF_SERVICE holds untouched.
func (e *Engine) mirrorSpace(ctx context.Context, r *Reservation, prev, target State) {
	var (
		from []space.Status
		to   space.Status
	)
	switch {
	case target == StateActive:
		from, to = []space.Status{space.StatusReserved, space.StatusAvailable}, space.StatusOccupied
	case target == StateFinished:
		from, to = []space.Status{space.StatusOccupied, space.StatusReserved}, space.StatusAvailable
	case target == StateCancelled:
		from, to = []space.Status{space.StatusReserved, space.StatusOccupied}, space.StatusAvailable
	case target == StateExpired && prev == StateReserved:
		from, to = []space.Status{space.StatusReserved}, space.StatusAvailable
	default:
		return
	}
	if _, err := e.spaces.SetStatusIf(ctx, r.SpaceID, from, to); err != nil {
		e.logger.Error("space status mirror failed",
			"error", err, "space_id", r.SpaceID, "reservation_id", r.ID, "target", target)
	}
}

func (e *Engine) recordTransition(ctx context.Context, r *Reservation, prev, target State, reason string, now time.Time) {
	switch target {
	case StateActive:
		e.record(ctx, r, history.ActionEntry, reason, now)
		e.notify(ctx, r, notification.KindEntryRegistered, "Entry registered. Welcome!", now)
	case StateFinished:
		e.record(ctx, r, history.ActionExit, reason, now)
		e.notify(ctx, r, notification.KindExitRegistered, "Exit registered. Safe travels!", now)
	case StateCancelled:
		e.record(ctx, r, history.ActionCancel, reason, now)
	case StateExpired:
		e.record(ctx, r, history.ActionExpire, reason, now)
		msg := "Your reservation expired before you arrived."
		if prev == StateActive {
			msg = "Your reservation expired while your vehicle is still parked. Please exit as soon as possible."
		}
		e.notify(ctx, r, notification.KindReservationExpired, msg, now)
	}
}

// record and notify are best-effort side effects: failures are logged,
// never propagated, so a flaky collaborator cannot wedge a transition.
func (e *Engine) record(ctx context.Context, r *Reservation, action history.Action, detail string, now time.Time) {
	resID := r.ID
	ev := history.NewEvent(r.UserID, &resID, action, detail, now)
	if err := e.events.Append(ctx, ev); err != nil {
		e.logger.Error("history append failed",
			"error", err, "reservation_id", r.ID, "action", action)
	}
}

func (e *Engine) notify(ctx context.Context, r *Reservation, kind notification.Kind, message string, now time.Time) {
	resID := r.ID
	e.notifier.Notify(ctx, notification.New(r.UserID, &resID, kind, message, now))
}

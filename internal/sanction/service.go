package sanction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parqueo/internal/history"
	"parqueo/internal/notification"
	"parqueo/internal/platform/metrics"
	"parqueo/internal/reservation"
	"parqueo/internal/rule"
	"parqueo/internal/user"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/platform/tx"
	"parqueo/pkg/requestcontext"
)

// Service is the sanction escalation engine. Every sanction write
// recomputes the holder's account-enabled flag (cascading to vehicles)
// inside the same transaction, so a user is never left enabled while a
// suspension window is in force.
type Service struct {
	store          Store
	rules          rule.Store
	users          user.Store
	events         history.Store
	notifier       notification.Notifier
	runner         tx.Runner
	overstayRuleID *id.RuleID
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner makes sanction writes and the enabled-flag recompute
// atomic. Without it, writes run directly (memory stores).
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithOverstayRule names the catalog rule automatic overstay sanctions
// are filed under. Unset, overstays count as MINOR faults with no rule
// reference.
func WithOverstayRule(ruleID id.RuleID) Option {
	return func(s *Service) { s.overstayRuleID = &ruleID }
}

func NewService(store Store, rules rule.Store, users user.Store, events history.Store, notifier notification.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		rules:    rules,
		users:    users,
		events:   events,
		notifier: notifier,
		runner:   tx.Direct{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateOverstay is invoked by the sweeper when a reservation expires
// while ACTIVE. It is a logged no-op when the reservation already
// produced a sanction or the user is already under an effective
// suspension — escalation runs once per overstay event.
func (s *Service) EvaluateOverstay(ctx context.Context, r *reservation.Reservation) error {
	now := requestcontext.Now(ctx)

	already, err := s.store.ExistsForReservation(ctx, r.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "check prior sanction")
	}
	if already {
		s.logger.Debug("overstay already sanctioned", "reservation_id", r.ID)
		return nil
	}
	effective, err := s.store.EffectiveSuspension(ctx, r.UserID, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "check effective suspension")
	}
	if effective != nil {
		s.logger.Info("overstay not escalated, user already suspended",
			"reservation_id", r.ID, "user_id", r.UserID, "sanction_id", effective.ID)
		return nil
	}

	kind := rule.FaultMinor
	var ruleID *id.RuleID
	if s.overstayRuleID != nil {
		ru, err := s.rules.Get(ctx, *s.overstayRuleID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "look up overstay rule")
		}
		kind = ru.FaultKind
		ruleID = s.overstayRuleID
	}

	resID := r.ID
	sn, err := s.apply(ctx, applyInput{
		userID:    r.UserID,
		vehicleID: r.VehicleID,
		resID:     &resID,
		ruleID:    ruleID,
		kind:      kind,
		reason:    fmt.Sprintf("overstay: reservation not exited by %s", r.EndAt.Format(time.RFC3339)),
		now:       now,
	})
	if err != nil {
		return err
	}
	s.logger.Info("overstay sanctioned",
		"reservation_id", r.ID, "user_id", r.UserID,
		"sanction_id", sn.ID, "punishment", sn.PunishmentKind)
	return nil
}

// CreateInput is a manual sanction filed by an administrator.
type CreateInput struct {
	UserID        id.UserID
	VehicleID     id.VehicleID
	RuleID        id.RuleID
	ReservationID *id.ReservationID
	Reason        string
}

// Create files a manual sanction through the same escalation table and
// suspended-refusal guard as automatic evaluation. Unlike the sweeper
// path, a refusal here is an error the administrator sees.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Sanction, error) {
	now := requestcontext.Now(ctx)

	if in.Reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	ru, err := s.rules.Get(ctx, in.RuleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown rule")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up rule")
	}
	effective, err := s.store.EffectiveSuspension(ctx, in.UserID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check effective suspension")
	}
	if effective != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "user already has an effective suspension").
			WithDetail("sanction_id", effective.ID.String())
	}

	ruleID := in.RuleID
	return s.apply(ctx, applyInput{
		userID:    in.UserID,
		vehicleID: in.VehicleID,
		resID:     in.ReservationID,
		ruleID:    &ruleID,
		kind:      ru.FaultKind,
		reason:    in.Reason,
		now:       now,
	})
}

type applyInput struct {
	userID    id.UserID
	vehicleID id.VehicleID
	resID     *id.ReservationID
	ruleID    *id.RuleID
	kind      rule.FaultKind
	reason    string
	now       time.Time
}

func (s *Service) apply(ctx context.Context, in applyInput) (*Sanction, error) {
	prior, err := s.store.CountPrior(ctx, in.userID, in.kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "count prior sanctions")
	}
	punishment := Escalate(in.kind, prior, in.now)

	sn := &Sanction{
		ID:              id.NewSanctionID(),
		UserID:          in.userID,
		VehicleID:       in.vehicleID,
		ReservationID:   in.resID,
		RuleID:          in.ruleID,
		Reason:          in.reason,
		State:           StateActive,
		RegisteredAt:    in.now,
		PunishmentKind:  punishment.Kind,
		SuspensionStart: punishment.SuspensionStart,
		SuspensionEnd:   punishment.SuspensionEnd,
		FaultKind:       in.kind,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, sn); err != nil {
			return fmt.Errorf("save sanction: %w", err)
		}
		return s.recomputeEnabled(ctx, in.userID, in.now)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "apply sanction")
	}

	s.record(ctx, sn, history.ActionSanction, sn.Reason, in.now)
	s.notifier.Notify(ctx, notification.New(sn.UserID, sn.ReservationID,
		notification.KindSanctionApplied, s.describe(punishment), in.now))
	if s.metrics != nil {
		s.metrics.Sanctions.WithLabelValues(string(punishment.Kind)).Inc()
	}
	return sn, nil
}

func (s *Service) describe(p Punishment) string {
	switch p.Kind {
	case PunishmentWarning:
		return "You received a warning for a parking infraction."
	case PunishmentTotalSuspension:
		return "Your parking privileges are suspended indefinitely."
	default:
		return fmt.Sprintf("Your parking privileges are suspended until %s.",
			p.SuspensionEnd.Format(time.RFC3339))
	}
}

// Resolve closes a sanction administratively and re-enables the user
// if no other suspension still covers now.
func (s *Service) Resolve(ctx context.Context, sanctionID id.SanctionID) (*Sanction, error) {
	return s.close(ctx, sanctionID, StateResolved)
}

// Void discards a sanction recorded in error. Void sanctions stop
// counting toward recidivism.
func (s *Service) Void(ctx context.Context, sanctionID id.SanctionID) (*Sanction, error) {
	return s.close(ctx, sanctionID, StateVoid)
}

func (s *Service) close(ctx context.Context, sanctionID id.SanctionID, target State) (*Sanction, error) {
	now := requestcontext.Now(ctx)

	sn, err := s.store.Get(ctx, sanctionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown sanction")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up sanction")
	}
	if sn.State != StateActive {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "sanction is %s", sn.State)
	}

	sn.State = target
	sn.ResolvedAt = &now
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, sn); err != nil {
			return fmt.Errorf("save sanction: %w", err)
		}
		return s.recomputeEnabled(ctx, sn.UserID, now)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "close sanction")
	}

	if target == StateResolved {
		s.record(ctx, sn, history.ActionUnlock, "sanction resolved", now)
		s.notifier.Notify(ctx, notification.New(sn.UserID, sn.ReservationID,
			notification.KindSanctionResolved, "A sanction on your account was resolved.", now))
	}
	s.logger.Info("sanction closed",
		"sanction_id", sn.ID, "user_id", sn.UserID, "state", target)
	return sn, nil
}

func (s *Service) Get(ctx context.Context, sanctionID id.SanctionID) (*Sanction, error) {
	sn, err := s.store.Get(ctx, sanctionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown sanction")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up sanction")
	}
	return sn, nil
}

func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*Sanction, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list sanctions")
	}
	return out, nil
}

// recomputeEnabled derives the account flag from the store: disabled
// iff a suspension window covers now. Cascades to vehicles.
func (s *Service) recomputeEnabled(ctx context.Context, userID id.UserID, now time.Time) error {
	effective, err := s.store.EffectiveSuspension(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("recompute enabled: %w", err)
	}
	if err := s.users.SetEnabled(ctx, userID, effective == nil); err != nil {
		return fmt.Errorf("recompute enabled: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, sn *Sanction, action history.Action, detail string, now time.Time) {
	if err := s.events.Append(ctx, history.NewEvent(sn.UserID, sn.ReservationID, action, detail, now)); err != nil {
		s.logger.Error("history append failed",
			"error", err, "sanction_id", sn.ID, "action", action)
	}
}

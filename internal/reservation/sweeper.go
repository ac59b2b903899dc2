package reservation

import (
	"context"
	"log/slog"
	"time"

	"parqueo/internal/notification"
	"parqueo/internal/platform/metrics"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

// EntryDeadlineSource answers when a reservation's unused ENTRY token
// stops being valid. The token window is the single source of truth for
// the no-show pass; the sweeper never recomputes it from the start
// time. Implemented by the checkpoint service.
type EntryDeadlineSource interface {
	EntryDeadline(ctx context.Context, resID id.ReservationID) (time.Time, bool, error)
}

// SanctionEvaluator decides whether an overstay deserves a sanction.
// Implemented by the sanction service.
type SanctionEvaluator interface {
	EvaluateOverstay(ctx context.Context, r *Reservation) error
}

// Sweeper forces deadline transitions on a fixed tick. A cycle runs
// three passes: expired deadlines, no-shows whose entry window closed,
// and exit reminders for reservations about to run out.
type Sweeper struct {
	engine         *Engine
	store          Store
	deadlines      EntryDeadlineSource
	sanctions      SanctionEvaluator
	notifier       notification.Notifier
	interval       time.Duration
	reminderWindow time.Duration
	storeTimeout   time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	// reminded tracks reservations already warned this lifecycle. Only the
	// sweeper goroutine touches it.
	reminded map[id.ReservationID]struct{}
}

type SweeperOption func(*Sweeper)

func SweeperWithLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

func SweeperWithMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func SweeperWithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

func SweeperWithReminderWindow(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.reminderWindow = d }
}

// SweeperWithStoreTimeout bounds the store operations of one cycle, the
// same budget handlers get from the timeout middleware.
func SweeperWithStoreTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.storeTimeout = d }
}

func NewSweeper(engine *Engine, store Store, deadlines EntryDeadlineSource, sanctions SanctionEvaluator, notifier notification.Notifier, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		engine:         engine,
		store:          store,
		deadlines:      deadlines,
		sanctions:      sanctions,
		notifier:       notifier,
		interval:       30 * time.Second,
		reminderWindow: 30 * time.Minute,
		storeTimeout:   5 * time.Second,
		logger:         slog.Default(),
		reminded:       make(map[id.ReservationID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks at a fixed rate until the context is cancelled. Cycles run
// on the ticker goroutine, so they never overlap; a slow cycle drops
// ticks instead of queueing them.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.RunCycle(ctx, now)
		}
	}
}

// RunCycle runs one full sweep at the given instant. Exported so tests
// drive sweeps without waiting on the ticker.
func (s *Sweeper) RunCycle(ctx context.Context, now time.Time) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	ctx = requestcontext.WithTime(ctx, now)

	s.deadlinePass(ctx, now)
	s.noShowPass(ctx, now)
	s.reminderPass(ctx, now)

	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}
}

// deadlinePass expires every RESERVED or ACTIVE reservation whose end
// time has passed. Overstays (expired while ACTIVE) go to the sanction
// engine exactly once, from the pass that applied the transition.
func (s *Sweeper) deadlinePass(ctx context.Context, now time.Time) {
	candidates, err := s.store.ListByState(ctx, StateReserved, StateActive)
	if err != nil {
		s.logger.Error("deadline pass listing failed", "error", err)
		return
	}
	for _, r := range candidates {
		if !r.EndAt.Before(now) {
			continue
		}
		tr, err := s.engine.Transition(ctx, r.ID, StateExpired, "end time passed")
		if err != nil {
			// A checkpoint scan can beat the sweeper to the row; that is
			// expected traffic, not a failure.
			s.swallowRace("deadline", r.ID, err)
			continue
		}
		if tr.Outcome != OutcomeApplied {
			continue
		}
		delete(s.reminded, r.ID)
		if s.metrics != nil {
			s.metrics.Expirations.WithLabelValues("deadline").Inc()
		}
		// Key the overstay decision on the state the CAS moved from, not
		// the listing snapshot: an entry scan can land in between.
		if tr.From == StateActive {
			if err := s.sanctions.EvaluateOverstay(ctx, tr.Reservation); err != nil {
				s.logger.Error("overstay evaluation failed",
					"error", err, "reservation_id", r.ID)
			}
		}
	}
}

// noShowPass expires RESERVED reservations whose ENTRY token window
// closed without a scan.
func (s *Sweeper) noShowPass(ctx context.Context, now time.Time) {
	candidates, err := s.store.ListByState(ctx, StateReserved)
	if err != nil {
		s.logger.Error("no-show pass listing failed", "error", err)
		return
	}
	for _, r := range candidates {
		deadline, ok, err := s.deadlines.EntryDeadline(ctx, r.ID)
		if err != nil {
			s.logger.Error("entry deadline lookup failed",
				"error", err, "reservation_id", r.ID)
			continue
		}
		if !ok || !deadline.Before(now) {
			continue
		}
		tr, err := s.engine.Transition(ctx, r.ID, StateExpired, "no entry before window closed")
		if err != nil {
			s.swallowRace("no_show", r.ID, err)
			continue
		}
		if tr.Outcome == OutcomeApplied && s.metrics != nil {
			s.metrics.Expirations.WithLabelValues("no_show").Inc()
		}
	}
}

// reminderPass warns holders of ACTIVE reservations that their window
// ends soon. One reminder per reservation.
func (s *Sweeper) reminderPass(ctx context.Context, now time.Time) {
	active, err := s.store.ListByState(ctx, StateActive)
	if err != nil {
		s.logger.Error("reminder pass listing failed", "error", err)
		return
	}
	current := make(map[id.ReservationID]struct{}, len(active))
	for _, r := range active {
		current[r.ID] = struct{}{}
		if _, done := s.reminded[r.ID]; done {
			continue
		}
		if r.EndAt.Before(now) || r.EndAt.Sub(now) > s.reminderWindow {
			continue
		}
		resID := r.ID
		s.notifier.Notify(ctx, notification.New(r.UserID, &resID, notification.KindExpiryReminder,
			"Your reservation ends soon. Exit in time to avoid a sanction.", now))
		s.reminded[r.ID] = struct{}{}
	}
	// Prune entries for reservations that left ACTIVE.
	for resID := range s.reminded {
		if _, still := current[resID]; !still {
			delete(s.reminded, resID)
		}
	}
}

func (s *Sweeper) swallowRace(pass string, resID id.ReservationID, err error) {
	if dErrors.HasCode(err, dErrors.CodeInvalidState) || dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.Debug("sweep transition lost a race",
			"pass", pass, "reservation_id", resID, "error", err)
		return
	}
	s.logger.Error("sweep transition failed",
		"pass", pass, "reservation_id", resID, "error", err)
}

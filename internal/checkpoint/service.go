package checkpoint

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parqueo/internal/platform/metrics"
	"parqueo/internal/reservation"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/requestcontext"
)

// ReservationEngine is the slice of the reservation engine the scan
// protocol needs. The concrete engine lives in internal/reservation.
type ReservationEngine interface {
	Get(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error)
	Transition(ctx context.Context, resID id.ReservationID, target reservation.State, reason string) (*reservation.TransitionResult, error)
}

// Service runs the QR checkpoint protocol: minting entry tokens,
// accepting entry and exit scans, and answering read-only lookups.
type Service struct {
	tokens  Store
	engine  ReservationEngine
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(tokens Store, engine ReservationEngine, opts ...Option) *Service {
	s := &Service{
		tokens: tokens,
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSecret returns a 128-bit hex secret. The secret is the entire QR
// payload, so unguessability is the only thing protecting the gate.
func newSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MintEntry issues the ENTRY token for a freshly created reservation
// and returns its secret. The reservation engine owns the window math.
func (s *Service) MintEntry(ctx context.Context, resID id.ReservationID, validFrom, validUntil time.Time) (string, error) {
	secret, err := newSecret()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "mint entry token")
	}
	until := validUntil
	t := &Token{
		ID:            id.NewTokenID(),
		ReservationID: resID,
		Secret:        secret,
		Kind:          KindEntry,
		ValidFrom:     validFrom,
		ValidUntil:    &until,
	}
	if err := s.tokens.Save(ctx, t); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "save entry token")
	}
	return secret, nil
}

// EntryDeadline reports when a reservation's unused ENTRY token stops
// being valid. The sweeper keys its no-show pass on this, so the token
// window stays the single source of truth. ok is false once the token
// rotated or never carried a deadline.
func (s *Service) EntryDeadline(ctx context.Context, resID id.ReservationID) (time.Time, bool, error) {
	t, err := s.tokens.GetByReservation(ctx, resID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if t.Kind != KindEntry || t.ValidUntil == nil {
		return time.Time{}, false, nil
	}
	return *t.ValidUntil, true, nil
}

// ScanReceipt is the answer to a checkpoint scan. Scans outside the
// validity window are expected traffic, so they come back as
// Valid=false with a human reason instead of an error.
type ScanReceipt struct {
	Valid       bool                     `json:"valid"`
	Reason      string                   `json:"reason,omitempty"`
	Reservation *reservation.Reservation `json:"reservation,omitempty"`
	// ExitSecret is the rotated secret the driver needs on the way out.
	// Only set by an accepted entry scan.
	ExitSecret string `json:"exit_secret,omitempty"`
}

func invalidScan(reason string) *ScanReceipt {
	return &ScanReceipt{Reason: reason}
}

// ScanEntry resolves an ENTRY secret and admits the vehicle: the
// reservation moves to ACTIVE and the token rotates in place to an EXIT
// token with a fresh secret. The rotation is the concurrency gate, so a
// doubled scan gets a conflict instead of a second admission.
func (s *Service) ScanEntry(ctx context.Context, secret string) (*ScanReceipt, error) {
	now := requestcontext.Now(ctx)

	t, err := s.tokens.GetBySecret(ctx, secret)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.count("entry", "unknown_token")
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up token")
	}
	if t.Kind != KindEntry {
		// A rotated or spent secret does not name an entry token.
		s.count("entry", "unknown_token")
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown entry token")
	}
	if now.Before(t.ValidFrom) {
		s.count("entry", "too_early")
		return invalidScan("entry window not open yet"), nil
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		s.count("entry", "too_late")
		return invalidScan("entry window closed"), nil
	}

	res, err := s.engine.Get(ctx, t.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.State != reservation.StateReserved {
		s.count("entry", "wrong_state")
		return invalidScan(fmt.Sprintf("reservation is %s", res.State)), nil
	}

	exitSecret, err := newSecret()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rotate entry token")
	}
	if _, err := s.tokens.RotateEntry(ctx, t.ID, exitSecret, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.count("entry", "replay")
			return nil, dErrors.New(dErrors.CodeConflict, "entry already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rotate entry token")
	}

	tr, err := s.engine.Transition(ctx, t.ReservationID, reservation.StateActive, "entry scan accepted")
	if err != nil {
		// The token already rotated; operations reconcile manually.
		s.logger.Error("entry accepted but activation failed",
			"error", err, "reservation_id", t.ReservationID)
		return nil, err
	}

	s.count("entry", "accepted")
	s.logger.Info("entry registered",
		"reservation_id", t.ReservationID, "user_id", tr.Reservation.UserID)
	return &ScanReceipt{
		Valid:       true,
		Reservation: tr.Reservation,
		ExitSecret:  exitSecret,
	}, nil
}

// ScanExit resolves an EXIT secret and releases the vehicle: the token
// is spent and the reservation finishes, freeing the space. Overstayed
// (EXPIRED) reservations still exit. Replaying a spent token is an
// invalid-state error, not expected traffic.
func (s *Service) ScanExit(ctx context.Context, secret string) (*ScanReceipt, error) {
	now := requestcontext.Now(ctx)

	t, err := s.tokens.GetBySecret(ctx, secret)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.count("exit", "unknown_token")
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up token")
	}
	switch t.Kind {
	case KindEntry:
		s.count("exit", "wrong_kind")
		return nil, dErrors.New(dErrors.CodeInvalidState, "entry not registered yet")
	case KindExitUsed:
		s.count("exit", "replay")
		return nil, dErrors.New(dErrors.CodeInvalidState, "exit already registered")
	}

	if _, err := s.tokens.ConsumeExit(ctx, t.ID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			s.count("exit", "replay")
			return nil, dErrors.New(dErrors.CodeInvalidState, "exit already registered")
		case errors.Is(err, sentinel.ErrInvalidState):
			s.count("exit", "wrong_kind")
			return nil, dErrors.New(dErrors.CodeInvalidState, "entry not registered yet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "consume exit token")
	}

	tr, err := s.engine.Transition(ctx, t.ReservationID, reservation.StateFinished, "exit scan accepted")
	if err != nil {
		s.logger.Error("exit accepted but completion failed",
			"error", err, "reservation_id", t.ReservationID)
		return nil, err
	}

	s.count("exit", "accepted")
	s.logger.Info("exit registered",
		"reservation_id", t.ReservationID, "user_id", tr.Reservation.UserID)
	return &ScanReceipt{Valid: true, Reservation: tr.Reservation}, nil
}

// LookupStatus answers whether a secret would currently be accepted,
// without consuming anything. Gate displays use it to preview a QR; it
// must tolerate tokens for reservations in every state.
func (s *Service) LookupStatus(ctx context.Context, secret string) (*Status, error) {
	now := requestcontext.Now(ctx)

	t, err := s.tokens.GetBySecret(ctx, secret)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up token")
	}

	st := &Status{
		Kind:          t.Kind,
		ReservationID: t.ReservationID,
		ValidFrom:     t.ValidFrom,
		ValidUntil:    t.ValidUntil,
	}
	switch {
	case t.Kind == KindExitUsed:
		st.Reason = "token already spent"
	case !t.WindowOpen(now):
		st.Reason = "outside validity window"
	default:
		res, err := s.engine.Get(ctx, t.ReservationID)
		if err != nil {
			return nil, err
		}
		switch {
		case t.Kind == KindEntry && res.State != reservation.StateReserved:
			st.Reason = fmt.Sprintf("reservation is %s", res.State)
		case t.Kind == KindExit && res.State != reservation.StateActive && res.State != reservation.StateExpired:
			st.Reason = fmt.Sprintf("reservation is %s", res.State)
		default:
			st.Valid = true
		}
	}
	return st, nil
}

func (s *Service) count(checkpoint, outcome string) {
	if s.metrics != nil {
		s.metrics.Scans.WithLabelValues(checkpoint, outcome).Inc()
	}
}

package reservation_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"parqueo/internal/checkpoint"
	"parqueo/internal/history"
	"parqueo/internal/notification"
	"parqueo/internal/reservation"
	"parqueo/internal/space"
	"parqueo/internal/user"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

// engineRef lets the checkpoint service and the engine reference each
// other the same way the server wiring does.
type engineRef struct {
	*reservation.Engine
}

type EngineSuite struct {
	suite.Suite

	spaces   *space.InMemoryStore
	users    *user.InMemoryStore
	events   *history.InMemoryStore
	notes    *notification.InMemoryStore
	tokens   *checkpoint.InMemoryStore
	resStore *reservation.InMemoryStore
	engine   *reservation.Engine
	scans    *checkpoint.Service

	userID    id.UserID
	vehicleID id.VehicleID
	spaceID   id.SpaceID

	base time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.spaces = space.NewMemory()
	s.users = user.NewMemory()
	s.events = history.NewMemory()
	s.notes = notification.NewMemory()
	s.tokens = checkpoint.NewMemory()
	s.resStore = reservation.NewMemory()

	logger := slog.Default()
	notifier := notification.NewLogNotifier(s.notes, logger)

	ref := &engineRef{}
	s.scans = checkpoint.NewService(s.tokens, ref, checkpoint.WithLogger(logger))
	s.engine = reservation.NewEngine(s.resStore, s.spaces, s.users, s.events, notifier, s.scans,
		reservation.WithLogger(logger))
	ref.Engine = s.engine

	s.base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.userID = id.NewUserID()
	require.NoError(s.T(), s.users.SaveUser(context.Background(), &user.User{
		ID: s.userID, Username: "driver", Enabled: true,
	}))
	s.vehicleID = id.NewVehicleID()
	require.NoError(s.T(), s.users.SaveVehicle(context.Background(), &user.Vehicle{
		ID: s.vehicleID, UserID: s.userID, Plate: "P123ABC", Enabled: true,
	}))
	s.spaceID = id.NewSpaceID()
	require.NoError(s.T(), s.spaces.Save(context.Background(), &space.ParkingSpace{
		ID: s.spaceID, Code: "A-01", Status: space.StatusAvailable,
	}))
}

func (s *EngineSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EngineSuite) mustCreate() *reservation.CreateResult {
	result, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
		s.base.Add(time.Hour), s.base.Add(3*time.Hour))
	s.Require().NoError(err)
	return result
}

func (s *EngineSuite) spaceStatus() space.Status {
	sp, err := s.spaces.Get(context.Background(), s.spaceID)
	s.Require().NoError(err)
	return sp.Status
}

func (s *EngineSuite) TestCreateValidation() {
	start := s.base.Add(time.Hour)

	s.Run("start after end", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID, start, start.Add(-time.Minute))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("start equals end", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID, start, start)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("start in the past", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
			s.base.Add(-time.Minute), s.base.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown user", func() {
		_, err := s.engine.Create(s.at(s.base), id.NewUserID(), s.vehicleID, s.spaceID, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("vehicle of another user", func() {
		otherID := id.NewUserID()
		s.Require().NoError(s.users.SaveUser(context.Background(), &user.User{
			ID: otherID, Username: "other", Enabled: true,
		}))
		_, err := s.engine.Create(s.at(s.base), otherID, s.vehicleID, s.spaceID, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("suspended user", func() {
		s.Require().NoError(s.users.SetEnabled(context.Background(), s.userID, false))
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
		s.Require().NoError(s.users.SetEnabled(context.Background(), s.userID, true))
	})

	s.Run("space out of service", func() {
		ok, err := s.spaces.SetStatusIf(context.Background(), s.spaceID,
			[]space.Status{space.StatusAvailable}, space.StatusOutOfService)
		s.Require().NoError(err)
		s.Require().True(ok)
		_, err = s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *EngineSuite) TestCreateSuccess() {
	result := s.mustCreate()

	s.Equal(reservation.StateReserved, result.Reservation.State)
	s.NotEmpty(result.EntrySecret)
	s.Equal(space.StatusReserved, s.spaceStatus())

	// ENTRY token window brackets the start time.
	status, err := s.scans.LookupStatus(s.at(s.base.Add(time.Hour)), result.EntrySecret)
	s.Require().NoError(err)
	s.True(status.Valid)
	s.Equal(checkpoint.KindEntry, status.Kind)
	s.Equal(s.base.Add(30*time.Minute), status.ValidFrom)
	s.Require().NotNil(status.ValidUntil)
	s.Equal(s.base.Add(90*time.Minute), *status.ValidUntil)

	events, err := s.events.ListByUser(context.Background(), s.userID, 0)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(history.ActionReserve, events[0].Action)

	notes, err := s.notes.ListByUser(context.Background(), s.userID, 0)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(notification.KindReservationCreated, notes[0].Kind)
}

func (s *EngineSuite) TestCreateOverlapConflict() {
	s.mustCreate()

	s.Run("same window", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
			s.base.Add(time.Hour), s.base.Add(3*time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("partial overlap", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
			s.base.Add(2*time.Hour), s.base.Add(4*time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("disjoint window is fine", func() {
		_, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
			s.base.Add(4*time.Hour), s.base.Add(5*time.Hour))
		s.NoError(err)
	})
}

func (s *EngineSuite) TestEntryExitRoundTrip() {
	result := s.mustCreate()

	entryCtx := s.at(s.base.Add(65 * time.Minute))
	receipt, err := s.scans.ScanEntry(entryCtx, result.EntrySecret)
	s.Require().NoError(err)
	s.Require().True(receipt.Valid)
	s.Equal(reservation.StateActive, receipt.Reservation.State)
	s.NotEmpty(receipt.ExitSecret)
	s.NotEqual(result.EntrySecret, receipt.ExitSecret)
	s.Equal(space.StatusOccupied, s.spaceStatus())

	// Old entry secret is dead after rotation.
	_, err = s.scans.ScanEntry(entryCtx, result.EntrySecret)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	exitCtx := s.at(s.base.Add(2 * time.Hour))
	exitReceipt, err := s.scans.ScanExit(exitCtx, receipt.ExitSecret)
	s.Require().NoError(err)
	s.True(exitReceipt.Valid)
	s.Equal(reservation.StateFinished, exitReceipt.Reservation.State)
	s.Equal(space.StatusAvailable, s.spaceStatus())

	// Spent exit token replays as an invalid-state error.
	_, err = s.scans.ScanExit(exitCtx, receipt.ExitSecret)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *EngineSuite) TestTransitionIdempotency() {
	result := s.mustCreate()
	resID := result.Reservation.ID

	ctx := s.at(s.base.Add(time.Hour))
	first, err := s.engine.Transition(ctx, resID, reservation.StateActive, "entry")
	s.Require().NoError(err)
	s.Equal(reservation.OutcomeApplied, first.Outcome)

	second, err := s.engine.Transition(ctx, resID, reservation.StateActive, "entry")
	s.Require().NoError(err)
	s.Equal(reservation.OutcomeAlreadyInTarget, second.Outcome)
}

func (s *EngineSuite) TestIllegalTransition() {
	result := s.mustCreate()
	resID := result.Reservation.ID

	_, err := s.engine.Transition(s.at(s.base), resID, reservation.StateFinished, "skip entry")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.engine.Cancel(s.at(s.base), resID, "change of plans")
	s.Require().NoError(err)

	// Cancelled is terminal.
	_, err = s.engine.Transition(s.at(s.base), resID, reservation.StateActive, "entry")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *EngineSuite) TestCancelFreesSpace() {
	result := s.mustCreate()

	res, err := s.engine.Cancel(s.at(s.base), result.Reservation.ID, "")
	s.Require().NoError(err)
	s.Equal(reservation.StateCancelled, res.State)
	s.Equal(space.StatusAvailable, s.spaceStatus())
}

func (s *EngineSuite) TestExpireFromActiveKeepsSpaceOccupied() {
	result := s.mustCreate()
	resID := result.Reservation.ID

	_, err := s.scans.ScanEntry(s.at(s.base.Add(time.Hour)), result.EntrySecret)
	s.Require().NoError(err)
	s.Equal(space.StatusOccupied, s.spaceStatus())

	tr, err := s.engine.Transition(s.at(s.base.Add(4*time.Hour)), resID, reservation.StateExpired, "end time passed")
	s.Require().NoError(err)
	s.Equal(reservation.OutcomeApplied, tr.Outcome)

	// Vehicle presumed still parked.
	s.Equal(space.StatusOccupied, s.spaceStatus())
}

func (s *EngineSuite) TestExitAfterExpiryFreesSpace() {
	result := s.mustCreate()
	resID := result.Reservation.ID

	receipt, err := s.scans.ScanEntry(s.at(s.base.Add(time.Hour)), result.EntrySecret)
	s.Require().NoError(err)

	_, err = s.engine.Transition(s.at(s.base.Add(4*time.Hour)), resID, reservation.StateExpired, "end time passed")
	s.Require().NoError(err)

	exitReceipt, err := s.scans.ScanExit(s.at(s.base.Add(5*time.Hour)), receipt.ExitSecret)
	s.Require().NoError(err)
	s.True(exitReceipt.Valid)
	s.Equal(reservation.StateFinished, exitReceipt.Reservation.State)
	s.Equal(space.StatusAvailable, s.spaceStatus())
}

func (s *EngineSuite) TestForceExpireFreesReservedSpace() {
	result := s.mustCreate()

	res, err := s.engine.ForceExpire(s.at(s.base), result.Reservation.ID)
	s.Require().NoError(err)
	s.Equal(reservation.StateExpired, res.State)
	s.Equal(space.StatusAvailable, s.spaceStatus())
}

func (s *EngineSuite) TestMaintenanceHoldSurvivesTransitions() {
	result := s.mustCreate()

	// An administrator pulls the space while it is reserved.
	ok, err := s.spaces.SetStatusIf(context.Background(), s.spaceID,
		[]space.Status{space.StatusReserved}, space.StatusMaintenance)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, err = s.engine.Cancel(s.at(s.base), result.Reservation.ID, "space pulled")
	s.Require().NoError(err)

	// The cancel must not hand the space back to the pool.
	s.Equal(space.StatusMaintenance, s.spaceStatus())
}

func (s *EngineSuite) TestCancelWhileActiveFreesSpace() {
	result := s.mustCreate()

	_, err := s.scans.ScanEntry(s.at(s.base.Add(time.Hour)), result.EntrySecret)
	s.Require().NoError(err)
	s.Equal(space.StatusOccupied, s.spaceStatus())

	// A holder (or admin) can withdraw mid-stay; the space goes back to
	// the pool with the cancellation.
	res, err := s.engine.Cancel(s.at(s.base.Add(90*time.Minute)), result.Reservation.ID, "leaving early")
	s.Require().NoError(err)
	s.Equal(reservation.StateCancelled, res.State)
	s.Equal(space.StatusAvailable, s.spaceStatus())
}

func (s *EngineSuite) TestTransitionReportsAppliedFrom() {
	result := s.mustCreate()

	tr, err := s.engine.Transition(s.at(s.base.Add(time.Hour)), result.Reservation.ID,
		reservation.StateActive, "entry scan accepted")
	s.Require().NoError(err)
	s.Equal(reservation.OutcomeApplied, tr.Outcome)
	s.Equal(reservation.StateReserved, tr.From)

	tr, err = s.engine.Transition(s.at(s.base.Add(2*time.Hour)), result.Reservation.ID,
		reservation.StateExpired, "end time passed")
	s.Require().NoError(err)
	s.Equal(reservation.OutcomeApplied, tr.Outcome)
	s.Equal(reservation.StateActive, tr.From)
}

// brokenMinter fails every issuance, standing in for an unreachable
// token store.
type brokenMinter struct{}

func (brokenMinter) MintEntry(context.Context, id.ReservationID, time.Time, time.Time) (string, error) {
	return "", dErrors.New(dErrors.CodeUnavailable, "token store unreachable")
}

func (s *EngineSuite) TestCreateRollsBackWhenMintFails() {
	engine := reservation.NewEngine(s.resStore, s.spaces, s.users, s.events,
		notification.NewLogNotifier(s.notes, slog.Default()), brokenMinter{})

	_, err := engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
		s.base.Add(time.Hour), s.base.Add(3*time.Hour))
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The booking must not linger token-less: the row is withdrawn and
	// the space returns to the pool.
	s.Equal(space.StatusAvailable, s.spaceStatus())
	list, err := s.resStore.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(reservation.StateCancelled, list[0].State)

	// The withdrawn row no longer blocks the window.
	result, err := s.engine.Create(s.at(s.base), s.userID, s.vehicleID, s.spaceID,
		s.base.Add(time.Hour), s.base.Add(3*time.Hour))
	s.Require().NoError(err)
	s.NotEmpty(result.EntrySecret)
}

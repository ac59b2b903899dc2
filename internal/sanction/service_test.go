package sanction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"parqueo/internal/history"
	"parqueo/internal/notification"
	"parqueo/internal/platform/logger"
	"parqueo/internal/reservation"
	"parqueo/internal/rule"
	"parqueo/internal/sanction"
	"parqueo/internal/user"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	store  *sanction.InMemoryStore
	rules  *rule.InMemoryStore
	users  *user.InMemoryStore
	events *history.InMemoryStore
	notes  *notification.InMemoryStore
	svc    *sanction.Service

	base      time.Time
	userID    id.UserID
	vehicleID id.VehicleID
	minorRule *rule.InfractionRule
	majorRule *rule.InfractionRule
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.store = sanction.NewMemory()
	s.rules = rule.NewMemory()
	s.users = user.NewMemory()
	s.events = history.NewMemory()
	s.notes = notification.NewMemory()

	log := logger.New()
	ctx := context.Background()

	s.userID = id.NewUserID()
	s.Require().NoError(s.users.SaveUser(ctx, &user.User{
		ID: s.userID, Username: "mrios", Enabled: true,
	}))
	s.vehicleID = id.NewVehicleID()
	s.Require().NoError(s.users.SaveVehicle(ctx, &user.Vehicle{
		ID: s.vehicleID, UserID: s.userID, Plate: "ABC-123", Enabled: true,
	}))

	s.minorRule = &rule.InfractionRule{
		ID: id.NewRuleID(), Description: "parked outside the lines", FaultKind: rule.FaultMinor,
	}
	s.majorRule = &rule.InfractionRule{
		ID: id.NewRuleID(), Description: "blocked an emergency lane", FaultKind: rule.FaultMajor,
	}
	s.Require().NoError(s.rules.Save(ctx, s.minorRule))
	s.Require().NoError(s.rules.Save(ctx, s.majorRule))

	s.svc = sanction.NewService(s.store, s.rules, s.users, s.events,
		notification.NewLogNotifier(s.notes, log),
		sanction.WithLogger(log))
}

func (s *ServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) overstayed() *reservation.Reservation {
	return &reservation.Reservation{
		ID:        id.NewReservationID(),
		UserID:    s.userID,
		VehicleID: s.vehicleID,
		SpaceID:   id.NewSpaceID(),
		StartAt:   s.base.Add(-3 * time.Hour),
		EndAt:     s.base.Add(-time.Hour),
		State:     reservation.StateExpired,
	}
}

func (s *ServiceSuite) enabled() bool {
	u, err := s.users.GetUser(context.Background(), s.userID)
	s.Require().NoError(err)
	return u.Enabled
}

func (s *ServiceSuite) TestOverstayFirstOffenceIsWarning() {
	err := s.svc.EvaluateOverstay(s.at(s.base), s.overstayed())
	s.Require().NoError(err)

	list, err := s.store.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(sanction.PunishmentWarning, list[0].PunishmentKind)
	s.Equal(rule.FaultMinor, list[0].FaultKind)

	// A warning carries no suspension window, so the account stays on.
	s.True(s.enabled())

	events, err := s.events.ListByUser(context.Background(), s.userID, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(history.ActionSanction, events[0].Action)

	notes, err := s.notes.ListByUser(context.Background(), s.userID, 10)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(notification.KindSanctionApplied, notes[0].Kind)
}

func (s *ServiceSuite) TestOverstayIsSanctionedOncePerReservation() {
	r := s.overstayed()
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base), r))
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base.Add(time.Minute)), r))

	list, err := s.store.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *ServiceSuite) TestSecondOverstaySuspendsAndDisables() {
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base), s.overstayed()))
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base.Add(time.Hour)), s.overstayed()))

	list, err := s.store.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)

	var suspended *sanction.Sanction
	for _, sn := range list {
		if sn.PunishmentKind == sanction.PunishmentTemporarySuspension {
			suspended = sn
		}
	}
	s.Require().NotNil(suspended)
	s.Require().NotNil(suspended.SuspensionEnd)
	s.Equal(s.base.Add(time.Hour).Add(7*24*time.Hour), *suspended.SuspensionEnd)

	s.False(s.enabled())
	v, err := s.users.GetVehicle(context.Background(), s.vehicleID)
	s.Require().NoError(err)
	s.False(v.Enabled, "vehicles follow the owner's flag")
}

func (s *ServiceSuite) TestOverstayWhileSuspendedIsNoOp() {
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base), s.overstayed()))
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base), s.overstayed()))

	// Third overstay lands inside the 7-day window from the second.
	s.Require().NoError(s.svc.EvaluateOverstay(s.at(s.base.Add(24*time.Hour)), s.overstayed()))

	list, err := s.store.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Len(list, 2, "no escalation while a suspension is in force")
}

func (s *ServiceSuite) TestManualCreate() {
	s.Run("reason required", func() {
		_, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
			UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown rule", func() {
		_, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
			UserID: s.userID, VehicleID: s.vehicleID, RuleID: id.NewRuleID(),
			Reason: "made up",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("major fault suspends immediately", func() {
		sn, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
			UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.majorRule.ID,
			Reason: "blocked the ambulance bay",
		})
		s.Require().NoError(err)
		s.Equal(sanction.PunishmentTemporarySuspension, sn.PunishmentKind)
		s.False(s.enabled())
	})

	s.Run("refused while suspension is in force", func() {
		_, err := s.svc.Create(s.at(s.base.Add(time.Hour)), sanction.CreateInput{
			UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
			Reason: "again",
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		details := dErrors.DetailsOf(err)
		s.Contains(details, "sanction_id")
	})
}

func (s *ServiceSuite) TestResolveReEnables() {
	sn, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
		UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.majorRule.ID,
		Reason: "blocked the ambulance bay",
	})
	s.Require().NoError(err)
	s.False(s.enabled())

	resolved, err := s.svc.Resolve(s.at(s.base.Add(time.Hour)), sn.ID)
	s.Require().NoError(err)
	s.Equal(sanction.StateResolved, resolved.State)
	s.Require().NotNil(resolved.ResolvedAt)
	s.True(s.enabled())

	// Closing twice is an invalid state.
	_, err = s.svc.Resolve(s.at(s.base.Add(2*time.Hour)), sn.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	events, err := s.events.ListByUser(context.Background(), s.userID, 10)
	s.Require().NoError(err)
	var unlocks int
	for _, e := range events {
		if e.Action == history.ActionUnlock {
			unlocks++
		}
	}
	s.Equal(1, unlocks)
}

func (s *ServiceSuite) TestVoidStopsRecidivismCount() {
	sn, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
		UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
		Reason: "outside the lines",
	})
	s.Require().NoError(err)
	s.Equal(sanction.PunishmentWarning, sn.PunishmentKind)

	_, err = s.svc.Void(s.at(s.base.Add(time.Minute)), sn.ID)
	s.Require().NoError(err)

	// With the first record void, the next minor fault starts over.
	next, err := s.svc.Create(s.at(s.base.Add(time.Hour)), sanction.CreateInput{
		UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
		Reason: "outside the lines again",
	})
	s.Require().NoError(err)
	s.Equal(sanction.PunishmentWarning, next.PunishmentKind)
}

func (s *ServiceSuite) TestResolvedSanctionsStillEscalate() {
	sn, err := s.svc.Create(s.at(s.base), sanction.CreateInput{
		UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
		Reason: "outside the lines",
	})
	s.Require().NoError(err)
	_, err = s.svc.Resolve(s.at(s.base.Add(time.Minute)), sn.ID)
	s.Require().NoError(err)

	next, err := s.svc.Create(s.at(s.base.Add(time.Hour)), sanction.CreateInput{
		UserID: s.userID, VehicleID: s.vehicleID, RuleID: s.minorRule.ID,
		Reason: "outside the lines again",
	})
	s.Require().NoError(err)
	s.Equal(sanction.PunishmentTemporarySuspension, next.PunishmentKind)
}

func (s *ServiceSuite) TestOverstayRuleDrivesFaultKind() {
	log := logger.New()
	svc := sanction.NewService(s.store, s.rules, s.users, s.events,
		notification.NewLogNotifier(s.notes, log),
		sanction.WithLogger(log),
		sanction.WithOverstayRule(s.majorRule.ID))

	err := svc.EvaluateOverstay(s.at(s.base), s.overstayed())
	s.Require().NoError(err)

	list, err := s.store.ListByUser(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	// A MAJOR overstay rule skips the warning tier entirely.
	s.Equal(rule.FaultMajor, list[0].FaultKind)
	s.Equal(sanction.PunishmentTemporarySuspension, list[0].PunishmentKind)
	s.Require().NotNil(list[0].RuleID)
	s.Equal(s.majorRule.ID, *list[0].RuleID)
	s.False(s.enabled())
}

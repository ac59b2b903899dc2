package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parqueo/internal/access"
	"parqueo/internal/reservation"
	"parqueo/internal/sanction"
	id "parqueo/pkg/domain"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

func gateFixture(t *testing.T) (*access.Gate, *sanction.InMemoryStore, *reservation.InMemoryStore) {
	t.Helper()
	sanctions := sanction.NewMemory()
	reservations := reservation.NewMemory()
	return access.NewGate(sanctions, reservations, nil), sanctions, reservations
}

func suspend(t *testing.T, store *sanction.InMemoryStore, userID id.UserID, start time.Time, end *time.Time) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), &sanction.Sanction{
		ID:              id.NewSanctionID(),
		UserID:          userID,
		State:           sanction.StateActive,
		PunishmentKind:  sanction.PunishmentTemporarySuspension,
		RegisteredAt:    start,
		SuspensionStart: &start,
		SuspensionEnd:   end,
	}))
}

func TestGateAllowsCleanUser(t *testing.T) {
	gate, _, _ := gateFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	d, err := gate.Check(requestcontext.WithTime(context.Background(), now), id.NewUserID())
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.False(t, d.Restricted)
}

func TestGateLocksSuspendedUser(t *testing.T) {
	gate, sanctions, _ := gateFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()
	end := now.Add(6 * 24 * time.Hour)
	suspend(t, sanctions, userID, now.Add(-24*time.Hour), &end)

	_, err := gate.Check(requestcontext.WithTime(context.Background(), now), userID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeLocked))
	require.Equal(t, end.Format(time.RFC3339), dErrors.DetailsOf(err)["suspension_end"])
}

func TestGateLocksIndefinitely(t *testing.T) {
	gate, sanctions, _ := gateFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()
	suspend(t, sanctions, userID, now.Add(-24*time.Hour), nil)

	_, err := gate.Check(requestcontext.WithTime(context.Background(), now), userID)
	require.True(t, dErrors.HasCode(err, dErrors.CodeLocked))
	require.Equal(t, "indefinite", dErrors.DetailsOf(err)["suspension_end"])
}

func TestGateAdmitsSuspendedUserWithVehicleOnLot(t *testing.T) {
	gate, sanctions, reservations := gateFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()
	end := now.Add(6 * 24 * time.Hour)
	suspend(t, sanctions, userID, now.Add(-24*time.Hour), &end)

	require.NoError(t, reservations.Create(context.Background(), &reservation.Reservation{
		ID:        id.NewReservationID(),
		UserID:    userID,
		VehicleID: id.NewVehicleID(),
		SpaceID:   id.NewSpaceID(),
		StartAt:   now.Add(-2 * time.Hour),
		EndAt:     now.Add(-time.Hour),
		State:     reservation.StateExpired,
	}))

	d, err := gate.Check(requestcontext.WithTime(context.Background(), now), userID)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.Restricted)
	require.NotNil(t, d.SuspensionEnd)
	require.Equal(t, end, *d.SuspensionEnd)
}

func TestGateIgnoresExpiredSuspension(t *testing.T) {
	gate, sanctions, _ := gateFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()
	end := now.Add(-time.Hour)
	suspend(t, sanctions, userID, now.Add(-8*24*time.Hour), &end)

	d, err := gate.Check(requestcontext.WithTime(context.Background(), now), userID)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.False(t, d.Restricted)
}

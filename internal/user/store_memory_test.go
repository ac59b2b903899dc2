package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) seedUser(username string) *User {
	u := &User{
		ID:       id.NewUserID(),
		Username: username,
		Enabled:  true,
	}
	require.NoError(s.T(), s.store.SaveUser(s.ctx, u))
	return u
}

func (s *MemoryStoreSuite) seedVehicle(owner id.UserID, plate string) *Vehicle {
	v := &Vehicle{
		ID:      id.NewVehicleID(),
		UserID:  owner,
		Plate:   plate,
		Enabled: true,
	}
	require.NoError(s.T(), s.store.SaveVehicle(s.ctx, v))
	return v
}

func (s *MemoryStoreSuite) TestGetUser() {
	s.Run("returns saved user", func() {
		u := s.seedUser("mrivera")
		got, err := s.store.GetUser(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal("mrivera", got.Username)
		s.True(got.Enabled)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.GetUser(s.ctx, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestFindByUsername() {
	u := s.seedUser("jlopez")

	got, err := s.store.FindByUsername(s.ctx, "jlopez")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.FindByUsername(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestSetEnabledCascadesToVehicles() {
	owner := s.seedUser("acastro")
	other := s.seedUser("bystander")
	v1 := s.seedVehicle(owner.ID, "P123ABC")
	v2 := s.seedVehicle(owner.ID, "P456DEF")
	untouched := s.seedVehicle(other.ID, "P789GHI")

	s.Require().NoError(s.store.SetEnabled(s.ctx, owner.ID, false))

	got, err := s.store.GetUser(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.False(got.Enabled)

	for _, vid := range []id.VehicleID{v1.ID, v2.ID} {
		v, err := s.store.GetVehicle(s.ctx, vid)
		s.Require().NoError(err)
		s.False(v.Enabled)
	}

	v, err := s.store.GetVehicle(s.ctx, untouched.ID)
	s.Require().NoError(err)
	s.True(v.Enabled)
}

func (s *MemoryStoreSuite) TestSetEnabledUnknownUser() {
	err := s.store.SetEnabled(s.ctx, id.NewUserID(), false)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListVehicles() {
	owner := s.seedUser("owner")
	s.seedVehicle(owner.ID, "P111AAA")
	s.seedVehicle(owner.ID, "P222BBB")

	vehicles, err := s.store.ListVehicles(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.Len(vehicles, 2)

	none, err := s.store.ListVehicles(s.ctx, id.NewUserID())
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *MemoryStoreSuite) TestMutationsDoNotLeakIntoStore() {
	u := s.seedUser("immutable")
	got, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	got.Username = "changed"

	again, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("immutable", again.Username)
}

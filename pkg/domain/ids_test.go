package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "parqueo/pkg/domain-errors"
)

// Ids must be valid, non-empty, non-nil UUIDs at every trust boundary.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseReservationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSpaceID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSanctionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SanctionID(valid), id)
	})
}

func TestIDTextRoundTrip(t *testing.T) {
	id := NewReservationID()
	text, err := id.MarshalText()
	require.NoError(t, err)

	var back ReservationID
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, id, back)
}

// Distinct id types must not be interchangeable. If this file compiles, the
// invariant holds; the runtime check below only documents it.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	vehicleID := VehicleID(uuid.New())

	// var _ UserID = vehicleID // compile error by design

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(vehicleID))
}

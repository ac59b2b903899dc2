package checkpoint

import (
	"context"
	"time"

	id "parqueo/pkg/domain"
)

// Store persists QR tokens. The two mutation methods are the
// concurrency gates for the scan protocol: each succeeds for exactly
// one caller per token.
type Store interface {
	Save(ctx context.Context, t *Token) error
	Get(ctx context.Context, tokenID id.TokenID) (*Token, error)
	GetBySecret(ctx context.Context, secret string) (*Token, error)
	GetByReservation(ctx context.Context, resID id.ReservationID) (*Token, error)

	// RotateEntry atomically turns an ENTRY token into an EXIT token with
	// a fresh secret, stamping the entry time. Returns
	// sentinel.ErrInvalidState unless the token is currently ENTRY.
	RotateEntry(ctx context.Context, tokenID id.TokenID, newSecret string, entryAt time.Time) (*Token, error)

	// ConsumeExit atomically turns an EXIT token into EXIT_USED, stamping
	// the exit time. Returns sentinel.ErrAlreadyUsed when the token was
	// already spent, sentinel.ErrInvalidState when it is still ENTRY.
	ConsumeExit(ctx context.Context, tokenID id.TokenID, exitAt time.Time) (*Token, error)
}

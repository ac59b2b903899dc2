package checkpoint

import (
	"time"

	id "parqueo/pkg/domain"
)

// Kind is the lifecycle position of a QR token. Each reservation owns
// exactly one token; an accepted entry scan rotates it in place.
type Kind string

const (
	// KindEntry admits the vehicle within the token's validity window.
	KindEntry Kind = "ENTRY"
	// KindExit is what an accepted entry scan leaves behind: a fresh
	// secret that releases the space on the way out.
	KindExit Kind = "EXIT"
	// KindExitUsed marks a spent exit token. Scanning it again is a replay.
	KindExitUsed Kind = "EXIT_USED"
)

func (k Kind) Valid() bool {
	return k == KindEntry || k == KindExit || k == KindExitUsed
}

// Token is the QR payload presented at a checkpoint. The secret is the
// only thing the scanner sends; everything else is resolved server-side.
type Token struct {
	ID            id.TokenID       `json:"id"`
	ReservationID id.ReservationID `json:"reservation_id"`
	Secret        string           `json:"-"`
	Kind          Kind             `json:"kind"`
	ValidFrom     time.Time        `json:"valid_from"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
	EntryAt       *time.Time       `json:"entry_at,omitempty"`
	ExitAt        *time.Time       `json:"exit_at,omitempty"`
}

// WindowOpen reports whether now falls inside the token's validity
// window. A nil ValidUntil means the token does not expire on its own.
func (t *Token) WindowOpen(now time.Time) bool {
	if now.Before(t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		return false
	}
	return true
}

// Status is the read-only answer for a token lookup, used by gate
// displays to preview a QR without consuming it.
type Status struct {
	Valid         bool             `json:"valid"`
	Reason        string           `json:"reason,omitempty"`
	Kind          Kind             `json:"kind"`
	ReservationID id.ReservationID `json:"reservation_id"`
	ValidFrom     time.Time        `json:"valid_from"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
}

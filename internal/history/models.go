package history

import (
	"time"

	"github.com/google/uuid"

	id "parqueo/pkg/domain"
)

// Action identifies what happened to a reservation or account.
type Action string

const (
	ActionReserve  Action = "RESERVE"
	ActionEntry    Action = "ENTRY"
	ActionExit     Action = "EXIT"
	ActionCancel   Action = "CANCEL"
	ActionExpire   Action = "EXPIRE"
	ActionSanction Action = "SANCTION"
	ActionUnlock   Action = "UNLOCK"
)

// Event is one append-only audit trail record.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	UserID        id.UserID         `json:"user_id"`
	ReservationID *id.ReservationID `json:"reservation_id,omitempty"`
	Action        Action            `json:"action"`
	Detail        string            `json:"detail,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// NewEvent stamps a fresh event id.
func NewEvent(userID id.UserID, resID *id.ReservationID, action Action, detail string, at time.Time) *Event {
	return &Event{
		ID:            uuid.New(),
		UserID:        userID,
		ReservationID: resID,
		Action:        action,
		Detail:        detail,
		OccurredAt:    at,
	}
}

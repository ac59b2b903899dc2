package notification

import (
	"time"

	"github.com/google/uuid"

	id "parqueo/pkg/domain"
)

// Kind identifies what the notification is about.
type Kind string

const (
	KindReservationCreated Kind = "reservation_created"
	KindEntryRegistered    Kind = "entry_registered"
	KindExitRegistered     Kind = "exit_registered"
	KindReservationExpired Kind = "reservation_expired"
	KindExpiryReminder     Kind = "expiry_reminder"
	KindSanctionApplied    Kind = "sanction_applied"
	KindSanctionResolved   Kind = "sanction_resolved"
)

// Notification is one message addressed to a user. Delivery is
// best-effort: producers log failures and keep going.
type Notification struct {
	ID            uuid.UUID         `json:"id"`
	UserID        id.UserID         `json:"user_id"`
	ReservationID *id.ReservationID `json:"reservation_id,omitempty"`
	Kind          Kind              `json:"kind"`
	Message       string            `json:"message"`
	CreatedAt     time.Time         `json:"created_at"`
}

func New(userID id.UserID, resID *id.ReservationID, kind Kind, message string, at time.Time) *Notification {
	return &Notification{
		ID:            uuid.New(),
		UserID:        userID,
		ReservationID: resID,
		Kind:          kind,
		Message:       message,
		CreatedAt:     at,
	}
}

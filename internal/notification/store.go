package notification

import (
	"context"

	id "parqueo/pkg/domain"
)

// Store records delivered notifications so users can list them later.
type Store interface {
	Save(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*Notification, error)
}

// Notifier is what the domain services depend on. Implementations must
// never fail the caller's request: errors are swallowed after logging.
type Notifier interface {
	Notify(ctx context.Context, n *Notification)
}

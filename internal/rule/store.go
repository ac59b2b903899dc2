package rule

import (
	"context"

	id "parqueo/pkg/domain"
)

// Store is the infraction rule catalog.
type Store interface {
	Save(ctx context.Context, r *InfractionRule) error
	Get(ctx context.Context, ruleID id.RuleID) (*InfractionRule, error)
	List(ctx context.Context) ([]*InfractionRule, error)
}

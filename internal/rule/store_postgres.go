package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// PostgresStore persists the rule catalog in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r *InfractionRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO infraction_rules (id, description, fault_kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET description = EXCLUDED.description, fault_kind = EXCLUDED.fault_kind`,
		r.ID.String(), r.Description, string(r.FaultKind))
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ruleID id.RuleID) (*InfractionRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, fault_kind
		FROM infraction_rules WHERE id = $1`, ruleID.String())
	return scanRule(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*InfractionRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, fault_kind
		FROM infraction_rules ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*InfractionRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*InfractionRule, error) {
	var (
		r   InfractionRule
		rid string
	)
	if err := row.Scan(&rid, &r.Description, (*string)(&r.FaultKind)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	parsed, err := id.ParseRuleID(rid)
	if err != nil {
		return nil, fmt.Errorf("scan rule id: %w", err)
	}
	r.ID = parsed
	return &r, nil
}

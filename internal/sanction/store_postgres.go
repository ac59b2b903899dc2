package sanction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parqueo/internal/rule"
	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/platform/tx"
)

// PostgresStore persists sanctions in PostgreSQL. All methods join a
// context transaction when one is present, so the sanction write and
// the account-enabled recomputation commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const sanctionColumns = `id, user_id, vehicle_id, reservation_id, rule_id, reason, state, registered_at, punishment_kind, suspension_start, suspension_end, fault_kind, resolved_at`

func (s *PostgresStore) Save(ctx context.Context, sn *Sanction) error {
	var resID, ruleID any
	if sn.ReservationID != nil {
		resID = sn.ReservationID.String()
	}
	if sn.RuleID != nil {
		ruleID = sn.RuleID.String()
	}
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO sanctions (id, user_id, vehicle_id, reservation_id, rule_id, reason, state, registered_at, punishment_kind, suspension_start, suspension_end, fault_kind, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
		    resolved_at = EXCLUDED.resolved_at`,
		sn.ID.String(), sn.UserID.String(), sn.VehicleID.String(), resID, ruleID,
		sn.Reason, string(sn.State), sn.RegisteredAt, string(sn.PunishmentKind),
		sn.SuspensionStart, sn.SuspensionEnd, string(sn.FaultKind), sn.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save sanction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sanctionID id.SanctionID) (*Sanction, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+sanctionColumns+` FROM sanctions WHERE id = $1`, sanctionID.String())
	return scanSanction(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Sanction, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT `+sanctionColumns+` FROM sanctions WHERE user_id = $1 ORDER BY registered_at DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	defer rows.Close()

	var out []*Sanction
	for rows.Next() {
		sn, err := scanSanction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountPrior(ctx context.Context, userID id.UserID, kind rule.FaultKind) (int, error) {
	var count int
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sanctions
		WHERE user_id = $1 AND fault_kind = $2 AND state IN ($3, $4)`,
		userID.String(), string(kind), string(StateActive), string(StateResolved)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count prior sanctions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ExistsForReservation(ctx context.Context, resID id.ReservationID) (bool, error) {
	var exists bool
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sanctions WHERE reservation_id = $1 AND state <> $2
		)`, resID.String(), string(StateVoid)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sanction for reservation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) EffectiveSuspension(ctx context.Context, userID id.UserID, now time.Time) (*Sanction, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT `+sanctionColumns+` FROM sanctions
		WHERE user_id = $1
		  AND state = $2
		  AND suspension_start IS NOT NULL
		  AND suspension_start <= $3
		  AND (suspension_end IS NULL OR suspension_end > $3)
		ORDER BY registered_at DESC
		LIMIT 1`, userID.String(), string(StateActive), now)
	sn, err := scanSanction(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sn, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSanction(row rowScanner) (*Sanction, error) {
	var (
		sn         Sanction
		sid, uid   string
		vid        string
		resID      sql.NullString
		ruleID     sql.NullString
		suspStart  sql.NullTime
		suspEnd    sql.NullTime
		resolvedAt sql.NullTime
	)
	err := row.Scan(&sid, &uid, &vid, &resID, &ruleID, &sn.Reason, (*string)(&sn.State),
		&sn.RegisteredAt, (*string)(&sn.PunishmentKind), &suspStart, &suspEnd,
		(*string)(&sn.FaultKind), &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sanction: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan sanction: %w", err)
	}
	parsedS, err := id.ParseSanctionID(sid)
	if err != nil {
		return nil, fmt.Errorf("scan sanction id: %w", err)
	}
	parsedU, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("scan sanction user id: %w", err)
	}
	parsedV, err := id.ParseVehicleID(vid)
	if err != nil {
		return nil, fmt.Errorf("scan sanction vehicle id: %w", err)
	}
	sn.ID = parsedS
	sn.UserID = parsedU
	sn.VehicleID = parsedV
	if resID.Valid {
		parsed, err := id.ParseReservationID(resID.String)
		if err != nil {
			return nil, fmt.Errorf("scan sanction reservation id: %w", err)
		}
		sn.ReservationID = &parsed
	}
	if ruleID.Valid {
		parsed, err := id.ParseRuleID(ruleID.String)
		if err != nil {
			return nil, fmt.Errorf("scan sanction rule id: %w", err)
		}
		sn.RuleID = &parsed
	}
	if suspStart.Valid {
		sn.SuspensionStart = &suspStart.Time
	}
	if suspEnd.Valid {
		sn.SuspensionEnd = &suspEnd.Time
	}
	if resolvedAt.Valid {
		sn.ResolvedAt = &resolvedAt.Time
	}
	return &sn, nil
}

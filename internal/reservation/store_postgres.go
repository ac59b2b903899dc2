package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// PostgresStore persists reservations in PostgreSQL. State transitions
// use a conditional UPDATE so concurrent writers race on the row and
// exactly one wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reservationColumns = `id, user_id, vehicle_id, space_id, start_at, end_at, state, state_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *Reservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, user_id, vehicle_id, space_id, start_at, end_at, state, state_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID.String(), r.UserID.String(), r.VehicleID.String(), r.SpaceID.String(),
		r.StartAt, r.EndAt, string(r.State), r.StateReason, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("reservation %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, resID id.ReservationID) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, resID.String())
	return scanReservation(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Reservation, error) {
	return s.query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY start_at`,
		userID.String())
}

func (s *PostgresStore) ListBySpace(ctx context.Context, spaceID id.SpaceID) ([]*Reservation, error) {
	return s.query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE space_id = $1 ORDER BY start_at`,
		spaceID.String())
}

func (s *PostgresStore) ListByState(ctx context.Context, states ...State) ([]*Reservation, error) {
	return s.query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE state = ANY($1) ORDER BY start_at`,
		pq.Array(stateStrings(states)))
}

func (s *PostgresStore) FindOverlapping(ctx context.Context, spaceID id.SpaceID, start, end time.Time) ([]*Reservation, error) {
	return s.query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE space_id = $1
		  AND state = ANY($2)
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at`,
		spaceID.String(), pq.Array(stateStrings([]State{StateReserved, StateActive})), start, end)
}

func (s *PostgresStore) UpdateStateCAS(ctx context.Context, resID id.ReservationID, from []State, target State, reason string, at time.Time) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE reservations
		SET state = $2, state_reason = $3, updated_at = $4
		WHERE id = $1 AND state = ANY($5)
		RETURNING `+reservationColumns,
		resID.String(), string(target), reason, at, pq.Array(stateStrings(from)))
	r, err := scanReservation(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	// No row matched: tell an unknown id apart from a lost race.
	current, getErr := s.Get(ctx, resID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("reservation %s is %s: %w", resID, current.State, sentinel.ErrInvalidState)
}

func (s *PostgresStore) HasPending(ctx context.Context, userID id.UserID, states ...State) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations WHERE user_id = $1 AND state = ANY($2)
		)`, userID.String(), pq.Array(stateStrings(states))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending reservations: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	return out, nil
}

func stateStrings(states []State) []string {
	out := make([]string, len(states))
	for i, st := range states {
		out[i] = string(st)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var (
		r                  Reservation
		rid, uid, vid, sid string
	)
	err := row.Scan(&rid, &uid, &vid, &sid, &r.StartAt, &r.EndAt,
		(*string)(&r.State), &r.StateReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	parsedR, err := id.ParseReservationID(rid)
	if err != nil {
		return nil, fmt.Errorf("scan reservation id: %w", err)
	}
	parsedU, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("scan reservation user id: %w", err)
	}
	parsedV, err := id.ParseVehicleID(vid)
	if err != nil {
		return nil, fmt.Errorf("scan reservation vehicle id: %w", err)
	}
	parsedS, err := id.ParseSpaceID(sid)
	if err != nil {
		return nil, fmt.Errorf("scan reservation space id: %w", err)
	}
	r.ID = parsedR
	r.UserID = parsedU
	r.VehicleID = parsedV
	r.SpaceID = parsedS
	return &r, nil
}

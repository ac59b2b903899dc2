package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "parqueo/pkg/domain"
)

// PostgresStore persists the audit trail in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *Event) error {
	var resID any
	if e.ReservationID != nil {
		resID = e.ReservationID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_events (id, user_id, reservation_id, action, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID.String(), e.UserID.String(), resID, string(e.Action), e.Detail, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, reservation_id, action, detail, occurred_at
		FROM history_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list events by user: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *PostgresStore) ListByReservation(ctx context.Context, resID id.ReservationID) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, reservation_id, action, detail, occurred_at
		FROM history_events
		WHERE reservation_id = $1
		ORDER BY occurred_at DESC`, resID.String())
	if err != nil {
		return nil, fmt.Errorf("list events by reservation: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var (
			e        Event
			eid, uid string
			rid      sql.NullString
		)
		if err := rows.Scan(&eid, &uid, &rid, (*string)(&e.Action), &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsedE, err := uuid.Parse(eid)
		if err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		parsedU, err := id.ParseUserID(uid)
		if err != nil {
			return nil, fmt.Errorf("scan event user id: %w", err)
		}
		e.ID = parsedE
		e.UserID = parsedU
		if rid.Valid {
			parsedR, err := id.ParseReservationID(rid.String)
			if err != nil {
				return nil, fmt.Errorf("scan event reservation id: %w", err)
			}
			e.ReservationID = &parsedR
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect events: %w", err)
	}
	return out, nil
}

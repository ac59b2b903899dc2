package space

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// PostgresStore persists parking spaces in PostgreSQL. Pure I/O; the
// reservation engine owns every status-mirroring rule.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed space store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, sp *ParkingSpace) error {
	query := `
		INSERT INTO parking_spaces (id, code, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, status = EXCLUDED.status
	`
	if _, err := s.db.ExecContext(ctx, query, sp.ID.String(), sp.Code, string(sp.Status)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("space code %q: %w", sp.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("save space: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, spaceID id.SpaceID) (*ParkingSpace, error) {
	query := `SELECT id, code, status FROM parking_spaces WHERE id = $1`
	sp, err := scanSpace(s.db.QueryRowContext(ctx, query, spaceID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("space %s: %w", spaceID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get space: %w", err)
	}
	return sp, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*ParkingSpace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, status FROM parking_spaces ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var out []*ParkingSpace
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetStatusIf(ctx context.Context, spaceID id.SpaceID, from []Status, to Status) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}
	query := `UPDATE parking_spaces SET status = $2 WHERE id = $1 AND status = ANY($3)`
	result, err := s.db.ExecContext(ctx, query, spaceID.String(), string(to), pq.Array(fromStrs))
	if err != nil {
		return false, fmt.Errorf("set space status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set space status rows affected: %w", err)
	}
	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpace(row rowScanner) (*ParkingSpace, error) {
	var (
		sp     ParkingSpace
		rawID  string
		status string
	)
	if err := row.Scan(&rawID, &sp.Code, &status); err != nil {
		return nil, err
	}
	parsed, err := id.ParseSpaceID(rawID)
	if err != nil {
		return nil, err
	}
	sp.ID = parsed
	sp.Status = Status(status)
	return &sp, nil
}

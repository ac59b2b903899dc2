package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/platform/tx"
)

// PostgresStore persists users and vehicles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner honors a transaction smuggled through the context so sanction
// writes and the enabled-flag recompute land atomically.
func (s *PostgresStore) runner(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *User) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    password_hash = EXCLUDED.password_hash,
		    enabled = EXCLUDED.enabled`,
		u.ID.String(), u.Username, u.PasswordHash, u.Enabled)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("username %q: %w", u.Username, sentinel.ErrConflict)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	return s.scanUser(s.runner(ctx).QueryRowContext(ctx, `
		SELECT id, username, password_hash, enabled
		FROM users WHERE id = $1`, userID.String()))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.runner(ctx).QueryRowContext(ctx, `
		SELECT id, username, password_hash, enabled
		FROM users WHERE username = $1`, username))
}

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		uid  string
	)
	if err := row.Scan(&uid, &u.Username, &u.PasswordHash, &u.Enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	parsed, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("scan user id: %w", err)
	}
	u.ID = parsed
	return &u, nil
}

// SetEnabled flips the account flag and cascades to the user's vehicles.
// Both writes run in the caller's transaction when one is on the context,
// otherwise in a local one.
func (s *PostgresStore) SetEnabled(ctx context.Context, userID id.UserID, enabled bool) error {
	if t, ok := tx.From(ctx); ok {
		return setEnabledIn(ctx, t, userID, enabled)
	}
	local, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set enabled: %w", err)
	}
	if err := setEnabledIn(ctx, local, userID, enabled); err != nil {
		_ = local.Rollback()
		return err
	}
	return local.Commit()
}

func setEnabledIn(ctx context.Context, t *sql.Tx, userID id.UserID, enabled bool) error {
	res, err := t.ExecContext(ctx,
		`UPDATE users SET enabled = $2 WHERE id = $1`, userID.String(), enabled)
	if err != nil {
		return fmt.Errorf("set user enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user enabled: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if _, err := t.ExecContext(ctx,
		`UPDATE vehicles SET enabled = $2 WHERE user_id = $1`, userID.String(), enabled); err != nil {
		return fmt.Errorf("set vehicles enabled: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveVehicle(ctx context.Context, v *Vehicle) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO vehicles (id, user_id, plate, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET plate = EXCLUDED.plate, enabled = EXCLUDED.enabled`,
		v.ID.String(), v.UserID.String(), v.Plate, v.Enabled)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("plate %q: %w", v.Plate, sentinel.ErrConflict)
		}
		return fmt.Errorf("save vehicle: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, vehicleID id.VehicleID) (*Vehicle, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, plate, enabled
		FROM vehicles WHERE id = $1`, vehicleID.String())
	v, err := scanVehicle(row)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, userID id.UserID) ([]*Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plate, enabled
		FROM vehicles WHERE user_id = $1
		ORDER BY plate`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*Vehicle, error) {
	var (
		v        Vehicle
		vid, uid string
	)
	if err := row.Scan(&vid, &uid, &v.Plate, &v.Enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vehicle: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan vehicle: %w", err)
	}
	parsedV, err := id.ParseVehicleID(vid)
	if err != nil {
		return nil, fmt.Errorf("scan vehicle id: %w", err)
	}
	parsedU, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("scan vehicle owner id: %w", err)
	}
	v.ID = parsedV
	v.UserID = parsedU
	return &v, nil
}

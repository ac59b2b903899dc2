package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// PostgresStore persists QR tokens in PostgreSQL. Rotation and
// consumption use conditional UPDATEs keyed on the current kind, so
// concurrent scanners race on the database row and exactly one wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tokenColumns = `id, reservation_id, secret, kind, valid_from, valid_until, entry_at, exit_at`

func (s *PostgresStore) Save(ctx context.Context, t *Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qr_tokens (id, reservation_id, secret, kind, valid_from, valid_until, entry_at, exit_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET secret = EXCLUDED.secret,
		    kind = EXCLUDED.kind,
		    valid_from = EXCLUDED.valid_from,
		    valid_until = EXCLUDED.valid_until,
		    entry_at = EXCLUDED.entry_at,
		    exit_at = EXCLUDED.exit_at`,
		t.ID.String(), t.ReservationID.String(), t.Secret, string(t.Kind),
		t.ValidFrom, t.ValidUntil, t.EntryAt, t.ExitAt)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tokenID id.TokenID) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM qr_tokens WHERE id = $1`, tokenID.String())
	return scanToken(row)
}

func (s *PostgresStore) GetBySecret(ctx context.Context, secret string) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM qr_tokens WHERE secret = $1`, secret)
	return scanToken(row)
}

func (s *PostgresStore) GetByReservation(ctx context.Context, resID id.ReservationID) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM qr_tokens WHERE reservation_id = $1`, resID.String())
	return scanToken(row)
}

func (s *PostgresStore) RotateEntry(ctx context.Context, tokenID id.TokenID, newSecret string, entryAt time.Time) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE qr_tokens
		SET kind = $3, secret = $2, entry_at = $4, valid_from = $4, valid_until = NULL
		WHERE id = $1 AND kind = $5
		RETURNING `+tokenColumns,
		tokenID.String(), newSecret, string(KindExit), entryAt, string(KindEntry))
	t, err := scanToken(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	// No row matched: either the token is gone or a concurrent scan
	// already rotated it. Re-read to tell the two apart.
	current, getErr := s.Get(ctx, tokenID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("token %s is %s: %w", tokenID, current.Kind, sentinel.ErrInvalidState)
}

func (s *PostgresStore) ConsumeExit(ctx context.Context, tokenID id.TokenID, exitAt time.Time) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE qr_tokens
		SET kind = $2, exit_at = $3
		WHERE id = $1 AND kind = $4
		RETURNING `+tokenColumns,
		tokenID.String(), string(KindExitUsed), exitAt, string(KindExit))
	t, err := scanToken(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	current, getErr := s.Get(ctx, tokenID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Kind == KindExitUsed {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrAlreadyUsed)
	}
	return nil, fmt.Errorf("token %s is %s: %w", tokenID, current.Kind, sentinel.ErrInvalidState)
}

type tokenScanner interface {
	Scan(dest ...any) error
}

func scanToken(row tokenScanner) (*Token, error) {
	var (
		t          Token
		tid, rid   string
		validUntil sql.NullTime
		entryAt    sql.NullTime
		exitAt     sql.NullTime
	)
	err := row.Scan(&tid, &rid, &t.Secret, (*string)(&t.Kind), &t.ValidFrom, &validUntil, &entryAt, &exitAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	parsedT, err := id.ParseTokenID(tid)
	if err != nil {
		return nil, fmt.Errorf("scan token id: %w", err)
	}
	parsedR, err := id.ParseReservationID(rid)
	if err != nil {
		return nil, fmt.Errorf("scan token reservation id: %w", err)
	}
	t.ID = parsedT
	t.ReservationID = parsedR
	if validUntil.Valid {
		t.ValidUntil = &validUntil.Time
	}
	if entryAt.Valid {
		t.EntryAt = &entryAt.Time
	}
	if exitAt.Valid {
		t.ExitAt = &exitAt.Time
	}
	return &t, nil
}

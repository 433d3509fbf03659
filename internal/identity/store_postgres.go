package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"trialgate/pkg/platform/sentinel"
)

// PostgresStore persists actors.
//
// Schema:
//
//	CREATE TABLE actors (
//	    username      TEXT PRIMARY KEY,
//	    password_hash BYTEA NOT NULL,
//	    role          TEXT NOT NULL,
//	    site          TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const actorColumns = `username, password_hash, role, site, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, a *Actor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (`+actorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Username, a.PasswordHash, a.Role, a.Site, a.CreatedAt, a.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Actor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE username = $1`, username)
	return scanActor(row)
}

func (s *PostgresStore) Execute(ctx context.Context, username string,
	validate func(*Actor) error, mutate func(*Actor)) (*Actor, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin actor tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE username = $1 FOR UPDATE`, username)
	a, err := scanActor(row)
	if err != nil {
		return nil, err
	}

	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)

	_, err = tx.ExecContext(ctx, `
		UPDATE actors SET password_hash = $1, role = $2, site = $3, updated_at = $4
		WHERE username = $5`,
		a.PasswordHash, a.Role, a.Site, a.UpdatedAt, a.Username,
	)
	if err != nil {
		return nil, fmt.Errorf("update actor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit actor update: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActor(row rowScanner) (*Actor, error) {
	var a Actor
	err := row.Scan(&a.Username, &a.PasswordHash, &a.Role, &a.Site, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan actor: %w", err)
	}
	return &a, nil
}

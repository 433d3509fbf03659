package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// SitePostgresStore persists site definitions.
//
// Schema:
//
//	CREATE TABLE sites (
//	    code            TEXT PRIMARY KEY,
//	    name            TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    activation_date DATE NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
type SitePostgresStore struct {
	db *sql.DB
}

func NewSitePostgres(db *sql.DB) *SitePostgresStore {
	return &SitePostgresStore{db: db}
}

func (s *SitePostgresStore) Upsert(ctx context.Context, site *Site) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (code, name, status, activation_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, status = EXCLUDED.status,
		    activation_date = EXCLUDED.activation_date, updated_at = EXCLUDED.updated_at`,
		site.Code, site.Name, site.Status, site.ActivationDate, site.CreatedAt, site.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}
	return nil
}

func (s *SitePostgresStore) Find(ctx context.Context, code id.SiteCode) (*Site, error) {
	var site Site
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, status, activation_date, created_at, updated_at
		FROM sites WHERE code = $1`, string(code),
	).Scan(&site.Code, &site.Name, &site.Status, &site.ActivationDate, &site.CreatedAt, &site.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan site: %w", err)
	}
	return &site, nil
}

func (s *SitePostgresStore) List(ctx context.Context) ([]*Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, status, activation_date, created_at, updated_at
		FROM sites ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []*Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.Code, &site.Name, &site.Status, &site.ActivationDate,
			&site.CreatedAt, &site.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, &site)
	}
	return out, rows.Err()
}

func (s *SitePostgresStore) Delete(ctx context.Context, code id.SiteCode) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE code = $1`, string(code))
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CodePostgresStore persists registration codes.
//
// Schema:
//
//	CREATE TABLE registration_codes (
//	    code       TEXT PRIMARY KEY,
//	    role       TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type CodePostgresStore struct {
	db *sql.DB
}

func NewCodePostgres(db *sql.DB) *CodePostgresStore {
	return &CodePostgresStore{db: db}
}

func (s *CodePostgresStore) Add(ctx context.Context, code RegistrationCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registration_codes (code, role, created_at)
		VALUES ($1, $2, $3)`,
		code.Code, code.Role, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration code: %w", err)
	}
	return nil
}

// Consume deletes the code and returns its role in one statement; the row
// delete is the single-use guarantee.
func (s *CodePostgresStore) Consume(ctx context.Context, code string) (id.Role, error) {
	var role id.Role
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM registration_codes WHERE code = $1 RETURNING role`, code,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume registration code: %w", err)
	}
	return role, nil
}

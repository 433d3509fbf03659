package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// PostgresStore persists participant records.
//
// Schema:
//
//	CREATE SEQUENCE participants_seq;
//	CREATE TABLE participants (
//	    id               TEXT PRIMARY KEY,
//	    label            TEXT NOT NULL UNIQUE,
//	    site             TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    enrollment_date  DATE NOT NULL,
//	    consent_date     DATE NOT NULL,
//	    date_of_birth    DATE NOT NULL,
//	    gender           TEXT NOT NULL,
//	    pack_id          TEXT NOT NULL DEFAULT '',
//	    screen_failed_at DATE,
//	    completed_at     DATE,
//	    code_broken_at   DATE,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL,
//	    version          INT NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const participantColumns = `id, label, site, status, enrollment_date, consent_date, date_of_birth,
	gender, pack_id, screen_failed_at, completed_at, code_broken_at, created_at, updated_at, version`

func (s *PostgresStore) Create(ctx context.Context, p *Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enroll tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Site label assignment is serialized with an advisory lock keyed by the
	// site, so concurrent enrollments at one site get distinct labels.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(p.Site)); err != nil {
		return fmt.Errorf("acquire site lock: %w", err)
	}

	if p.ID == "" {
		var seq int
		if err := tx.QueryRowContext(ctx, `SELECT nextval('participants_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("next participant sequence: %w", err)
		}
		p.ID = id.FormatParticipantID(seq)
	}
	if p.Label == "" {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE site = $1`, string(p.Site)).Scan(&n); err != nil {
			return fmt.Errorf("count site participants: %w", err)
		}
		p.Label = fmt.Sprintf("%s%03d", p.Site, n+1)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.Label, p.Site, p.Status, p.EnrollmentDate, p.ConsentDate, p.DateOfBirth,
		p.Gender, p.PackID, p.ScreenFailedAt, p.CompletedAt, p.CodeBrokenAt,
		p.CreatedAt, p.UpdatedAt, p.Version,
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) FindByID(ctx context.Context, participantID id.ParticipantID) (*Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, string(participantID))
	return scanParticipant(row)
}

func (s *PostgresStore) ListBySite(ctx context.Context, site id.SiteCode) ([]*Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE site = $1 ORDER BY id`, string(site))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, participantID id.ParticipantID,
	validate func(*Participant) error, mutate func(*Participant)) (*Participant, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1 FOR UPDATE`, string(participantID))
	p, err := scanParticipant(row)
	if err != nil {
		return nil, err
	}

	priorVersion := p.Version
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	res, err := tx.ExecContext(ctx, `
		UPDATE participants
		SET status = $1, pack_id = $2, screen_failed_at = $3, completed_at = $4,
		    code_broken_at = $5, updated_at = $6, version = $7
		WHERE id = $8 AND version = $9`,
		p.Status, p.PackID, p.ScreenFailedAt, p.CompletedAt,
		p.CodeBrokenAt, p.UpdatedAt, p.Version, p.ID, priorVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	if affected == 0 {
		// Row is locked FOR UPDATE, so a zero here means the version moved
		// between scan and update: a lost race, not a missing record.
		return nil, sentinel.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*Participant, error) {
	var p Participant
	err := row.Scan(&p.ID, &p.Label, &p.Site, &p.Status, &p.EnrollmentDate, &p.ConsentDate,
		&p.DateOfBirth, &p.Gender, &p.PackID, &p.ScreenFailedAt, &p.CompletedAt,
		&p.CodeBrokenAt, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	return &p, nil
}

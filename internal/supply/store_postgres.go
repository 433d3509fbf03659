package supply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// PostgresStore persists the supply chain.
//
// Schema:
//
//	CREATE TABLE packs (
//	    id          TEXT PRIMARY KEY,
//	    site        TEXT NOT NULL DEFAULT '',
//	    status      TEXT NOT NULL,
//	    assigned_to TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE SEQUENCE consignments_seq;
//	CREATE TABLE consignments (
//	    id         TEXT PRIMARY KEY,
//	    pack_id    TEXT NOT NULL UNIQUE REFERENCES packs (id),
//	    site       TEXT NOT NULL,
//	    status     TEXT NOT NULL,
//	    raise_date DATE NOT NULL,
//	    raised_by  TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE arrivals (
//	    pack_id        TEXT PRIMARY KEY REFERENCES packs (id),
//	    consignment_id TEXT NOT NULL REFERENCES consignments (id),
//	    site           TEXT NOT NULL,
//	    status         TEXT NOT NULL,
//	    arrival_date   DATE NOT NULL,
//	    notes          TEXT NOT NULL DEFAULT '',
//	    recorded_by    TEXT NOT NULL,
//	    recorded_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const packColumns = `id, site, status, assigned_to, created_at, updated_at`

func (s *PostgresStore) CreatePack(ctx context.Context, p *Pack) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO packs (`+packColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Site, p.Status, p.AssignedTo, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert pack result: %w", err)
	}
	if n == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) FindPack(ctx context.Context, packID id.PackID) (*Pack, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+packColumns+` FROM packs WHERE id = $1`, string(packID))
	return scanPack(row)
}

func (s *PostgresStore) ListAvailablePacks(ctx context.Context, site id.SiteCode) ([]*Pack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packColumns+` FROM packs
		WHERE site = $1 AND status = $2 ORDER BY id`,
		string(site), PackAvailable)
	if err != nil {
		return nil, fmt.Errorf("list available packs: %w", err)
	}
	defer rows.Close()
	return collectPacks(rows)
}

func (s *PostgresStore) ExecutePack(ctx context.Context, packID id.PackID,
	validate func(*Pack) error, mutate func(*Pack)) (*Pack, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pack tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockPack(ctx, tx, packID)
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	if err := updatePack(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pack update: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Raise(ctx context.Context, packID id.PackID,
	validate func(*Pack) error, build func(*Pack) *Consignment) (*Consignment, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin raise tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockPack(ctx, tx, packID)
	if err != nil {
		return nil, err
	}

	var consigned int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consignments WHERE pack_id = $1`, string(packID)).Scan(&consigned); err != nil {
		return nil, fmt.Errorf("check existing consignment: %w", err)
	}
	if consigned > 0 {
		return nil, sentinel.ErrConflict
	}

	if err := validate(p); err != nil {
		return nil, err
	}

	c := build(p)
	if c.ID == "" {
		var seq int
		if err := tx.QueryRowContext(ctx, `SELECT nextval('consignments_seq')`).Scan(&seq); err != nil {
			return nil, fmt.Errorf("next consignment sequence: %w", err)
		}
		c.ID = id.FormatConsignmentID(seq)
	}

	if err := updatePack(ctx, tx, p); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO consignments (id, pack_id, site, status, raise_date, raised_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.PackID, c.Site, c.Status, c.RaiseDate, c.RaisedBy, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert consignment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit raise: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Arrive(ctx context.Context, packID id.PackID, site id.SiteCode,
	build func(*Consignment, *Pack) *Arrival) (*Arrival, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin arrive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var c Consignment
	err = tx.QueryRowContext(ctx, `
		SELECT id, pack_id, site, status, raise_date, raised_by, created_at
		FROM consignments WHERE pack_id = $1 AND site = $2`,
		string(packID), string(site),
	).Scan(&c.ID, &c.PackID, &c.Site, &c.Status, &c.RaiseDate, &c.RaisedBy, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pending consignment: %w", err)
	}

	existing, err := s.findArrival(ctx, tx, packID)
	if err == nil {
		return existing, sentinel.ErrDuplicate
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	p, err := lockPack(ctx, tx, packID)
	if err != nil {
		return nil, err
	}

	a := build(&c, p)

	if err := updatePack(ctx, tx, p); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO arrivals (pack_id, consignment_id, site, status, arrival_date, notes, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.PackID, a.ConsignmentID, a.Site, a.Status, a.ArrivalDate, a.Notes, a.RecordedBy, a.RecordedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert arrival: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit arrival: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, site id.SiteCode) ([]*Consignment, error) {
	query := `
		SELECT c.id, c.pack_id, c.site, c.status, c.raise_date, c.raised_by, c.created_at
		FROM consignments c
		LEFT JOIN arrivals a ON a.pack_id = c.pack_id
		WHERE a.pack_id IS NULL`
	args := []any{}
	if site != "" {
		query += ` AND c.site = $1`
		args = append(args, string(site))
	}
	query += ` ORDER BY c.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending consignments: %w", err)
	}
	defer rows.Close()

	var out []*Consignment
	for rows.Next() {
		var c Consignment
		if err := rows.Scan(&c.ID, &c.PackID, &c.Site, &c.Status, &c.RaiseDate, &c.RaisedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consignment: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReferencesSite(ctx context.Context, site id.SiteCode) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consignments WHERE site = $1`, string(site)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count site consignments: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) findArrival(ctx context.Context, tx *sql.Tx, packID id.PackID) (*Arrival, error) {
	var a Arrival
	err := tx.QueryRowContext(ctx, `
		SELECT pack_id, consignment_id, site, status, arrival_date, notes, recorded_by, recorded_at
		FROM arrivals WHERE pack_id = $1`, string(packID),
	).Scan(&a.PackID, &a.ConsignmentID, &a.Site, &a.Status, &a.ArrivalDate, &a.Notes, &a.RecordedBy, &a.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan arrival: %w", err)
	}
	return &a, nil
}

func lockPack(ctx context.Context, tx *sql.Tx, packID id.PackID) (*Pack, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+packColumns+` FROM packs WHERE id = $1 FOR UPDATE`, string(packID))
	return scanPack(row)
}

func updatePack(ctx context.Context, tx *sql.Tx, p *Pack) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE packs SET site = $1, status = $2, assigned_to = $3, updated_at = $4
		WHERE id = $5`,
		p.Site, p.Status, p.AssignedTo, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update pack: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (*Pack, error) {
	var p Pack
	err := row.Scan(&p.ID, &p.Site, &p.Status, &p.AssignedTo, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pack: %w", err)
	}
	return &p, nil
}

func collectPacks(rows *sql.Rows) ([]*Pack, error) {
	var out []*Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

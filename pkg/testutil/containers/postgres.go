//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema is the full trialgate database, applied once per container.
const schema = `
CREATE SEQUENCE IF NOT EXISTS participants_seq;
CREATE TABLE IF NOT EXISTS participants (
    id               TEXT PRIMARY KEY,
    label            TEXT NOT NULL UNIQUE,
    site             TEXT NOT NULL,
    status           TEXT NOT NULL,
    enrollment_date  DATE NOT NULL,
    consent_date     DATE NOT NULL,
    date_of_birth    DATE NOT NULL,
    gender           TEXT NOT NULL,
    pack_id          TEXT NOT NULL DEFAULT '',
    screen_failed_at DATE,
    completed_at     DATE,
    code_broken_at   DATE,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    version          INT NOT NULL
);

CREATE TABLE IF NOT EXISTS packs (
    id          TEXT PRIMARY KEY,
    site        TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    assigned_to TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE SEQUENCE IF NOT EXISTS consignments_seq;
CREATE TABLE IF NOT EXISTS consignments (
    id         TEXT PRIMARY KEY,
    pack_id    TEXT NOT NULL UNIQUE REFERENCES packs (id),
    site       TEXT NOT NULL,
    status     TEXT NOT NULL,
    raise_date DATE NOT NULL,
    raised_by  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS arrivals (
    pack_id        TEXT PRIMARY KEY REFERENCES packs (id),
    consignment_id TEXT NOT NULL REFERENCES consignments (id),
    site           TEXT NOT NULL,
    status         TEXT NOT NULL,
    arrival_date   DATE NOT NULL,
    notes          TEXT NOT NULL DEFAULT '',
    recorded_by    TEXT NOT NULL,
    recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_events (
    seq            BIGSERIAL PRIMARY KEY,
    id             UUID NOT NULL,
    participant_id TEXT NOT NULL DEFAULT '',
    site           TEXT NOT NULL DEFAULT '',
    event_type     TEXT NOT NULL,
    description    TEXT NOT NULL,
    details        JSONB NOT NULL DEFAULT '{}',
    recorded_by    TEXT NOT NULL,
    recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sites (
    code            TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    status          TEXT NOT NULL,
    activation_date DATE NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS registration_codes (
    code       TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS actors (
    username      TEXT PRIMARY KEY,
    password_hash BYTEA NOT NULL,
    role          TEXT NOT NULL,
    site          TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	DSN       string
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("trialgate"),
		tcpostgres.WithUsername("trialgate"),
		tcpostgres.WithPassword("trialgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Cleanup is left to Ryuk: the container is shared across suites via the
	// singleton Manager.

	return &PostgresContainer{Container: container, DB: db, DSN: dsn}
}

// TruncateTables empties the given tables. Use between tests to ensure
// isolation; list tables in dependency order or rely on CASCADE.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}

// ResetSequences restarts the named standalone sequences at 1.
func (p *PostgresContainer) ResetSequences(ctx context.Context, sequences ...string) error {
	for _, seq := range sequences {
		if _, err := p.DB.ExecContext(ctx, fmt.Sprintf("ALTER SEQUENCE %s RESTART WITH 1", seq)); err != nil {
			return err
		}
	}
	return nil
}

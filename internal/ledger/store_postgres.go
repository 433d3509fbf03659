package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	id "trialgate/pkg/domain"
)

// PostgresStore persists ledger events. The table is insert-only; there are no
// UPDATE or DELETE paths by construction.
//
// Schema:
//
//	CREATE TABLE ledger_events (
//	    seq            BIGSERIAL PRIMARY KEY,
//	    id             UUID NOT NULL,
//	    participant_id TEXT NOT NULL DEFAULT '',
//	    site           TEXT NOT NULL DEFAULT '',
//	    event_type     TEXT NOT NULL,
//	    description    TEXT NOT NULL,
//	    details        JSONB NOT NULL DEFAULT '{}',
//	    recorded_by    TEXT NOT NULL,
//	    recorded_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}

	// Clamp recorded_at so per-participant order survives clock skew.
	query := `
		INSERT INTO ledger_events (id, participant_id, site, event_type, description, details, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, GREATEST($8::timestamptz, COALESCE(
			(SELECT MAX(recorded_at) FROM ledger_events WHERE participant_id = $2 AND $2 <> ''),
			$8::timestamptz)))
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.ParticipantID, event.Site, event.Type,
		event.Description, details, event.RecordedBy, event.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]Event, error) {
	return s.list(ctx, `SELECT id, participant_id, site, event_type, description, details, recorded_by, recorded_at
		FROM ledger_events WHERE participant_id = $1 ORDER BY seq`, string(participantID))
}

func (s *PostgresStore) ListBySite(ctx context.Context, site id.SiteCode) ([]Event, error) {
	return s.list(ctx, `SELECT id, participant_id, site, event_type, description, details, recorded_by, recorded_at
		FROM ledger_events WHERE site = $1 ORDER BY seq`, string(site))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var details []byte
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.Site, &e.Type, &e.Description, &details, &e.RecordedBy, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

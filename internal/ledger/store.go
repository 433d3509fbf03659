package ledger

import (
	"context"

	id "trialgate/pkg/domain"
)

// Store is the append-only persistence contract for ledger events.
//
// Implementations must keep events for one participant in non-decreasing
// RecordedAt order: an append whose timestamp lags the participant's latest
// event is clamped forward rather than rejected, so wall-clock skew between
// callers can never reorder an audit trail.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]Event, error)
	ListBySite(ctx context.Context, site id.SiteCode) ([]Event, error)
}

package participant

import (
	"context"

	id "trialgate/pkg/domain"
)

// Store is the persistence contract for participant records.
//
// Create assigns the trial-wide sequential id (PATnnn) and the site-derived
// label under the store's own serialization, so two concurrent enrollments can
// never share either.
//
// Execute is the only mutation path: it loads the record, holds its per-record
// lock (mutex or SELECT ... FOR UPDATE) across both callbacks, and persists
// the mutated record. validate runs first and aborts the mutation on error;
// mutate must only apply an already-validated transition. This is what keeps
// two concurrent transitions from both succeeding against the same
// pre-transition state.
type Store interface {
	Create(ctx context.Context, p *Participant) error
	FindByID(ctx context.Context, participantID id.ParticipantID) (*Participant, error)
	ListBySite(ctx context.Context, site id.SiteCode) ([]*Participant, error)
	Execute(ctx context.Context, participantID id.ParticipantID,
		validate func(*Participant) error,
		mutate func(*Participant)) (*Participant, error)
}

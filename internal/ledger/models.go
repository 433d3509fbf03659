package ledger

import (
	"time"

	"github.com/google/uuid"

	id "trialgate/pkg/domain"
)

// EventType labels the action a ledger entry records. Every successful state
// transition appends exactly one event of the matching type.
type EventType string

const (
	// Participant lifecycle events.
	EventEnrolled           EventType = "participant_enrolled"
	EventScreenFailed       EventType = "screen_failure_recorded"
	EventRandomized         EventType = "participant_randomized"
	EventTreatmentCompleted EventType = "treatment_completed"
	EventCodeBroken         EventType = "code_broken"

	// Supply chain events.
	EventConsignmentRaised EventType = "consignment_raised"
	EventArrivalRecorded   EventType = "arrival_recorded"

	// Provisioning and identity events.
	EventSiteDefined     EventType = "site_defined"
	EventCodesGenerated  EventType = "registration_codes_generated"
	EventActorRegistered EventType = "actor_registered"
	EventSiteAssigned    EventType = "site_assigned"
)

// Event is one append-only ledger entry. Entries are never edited or deleted;
// corrections to trial data happen forward in time as new events.
type Event struct {
	ID            uuid.UUID
	ParticipantID id.ParticipantID // empty for supply/provisioning events
	Site          id.SiteCode
	Type          EventType
	Description   string
	Details       map[string]string
	RecordedBy    string
	RecordedAt    time.Time
}

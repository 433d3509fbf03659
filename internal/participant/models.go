package participant

import (
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Status is the participant lifecycle state.
//
// Legal transitions:
//
//	Enrolled   -> ScreenFailed | Randomized
//	Randomized -> TreatmentCompleted | CodeBroken
//
// ScreenFailed, TreatmentCompleted, and CodeBroken are terminal. A code break
// is only valid from Randomized: once treatment is completed the blind is no
// longer breakable through this system.
type Status string

const (
	StatusEnrolled           Status = "enrolled"
	StatusScreenFailed       Status = "screen_failed"
	StatusRandomized         Status = "randomized"
	StatusTreatmentCompleted Status = "treatment_completed"
	StatusCodeBroken         Status = "code_broken"
)

var transitions = map[Status][]Status{
	StatusEnrolled:   {StatusScreenFailed, StatusRandomized},
	StatusRandomized: {StatusTreatmentCompleted, StatusCodeBroken},
}

// CanTransitionTo reports whether the edge from s to next exists.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Demographics is the required enrollment input.
type Demographics struct {
	EnrollmentDate time.Time
	ConsentDate    time.Time
	DateOfBirth    time.Time
	Gender         string
}

// Participant is the aggregate root for one enrolled subject.
//
// Invariants:
//   - Site never changes after creation.
//   - Status only moves along the edges above; every transition bumps Version.
//   - PackID is set exactly once, by randomization.
//   - Records are never deleted; trial data is permanent.
type Participant struct {
	ID             id.ParticipantID
	Label          string // site-derived display label, e.g. SITE01003
	Site           id.SiteCode
	Status         Status
	EnrollmentDate time.Time
	ConsentDate    time.Time
	DateOfBirth    time.Time
	Gender         string
	PackID         id.PackID
	ScreenFailedAt *time.Time
	CompletedAt    *time.Time
	CodeBrokenAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// NewParticipant validates demographics and builds a record in Enrolled state.
func NewParticipant(participantID id.ParticipantID, label string, site id.SiteCode, demo Demographics, now time.Time) (*Participant, error) {
	verr := dErrors.New(dErrors.CodeValidation, "missing required enrollment fields")
	missing := false
	if demo.EnrollmentDate.IsZero() {
		verr = verr.WithField("enrollment_date", "required")
		missing = true
	}
	if demo.ConsentDate.IsZero() {
		verr = verr.WithField("consent_date", "required")
		missing = true
	}
	if demo.DateOfBirth.IsZero() {
		verr = verr.WithField("date_of_birth", "required")
		missing = true
	}
	if demo.Gender == "" {
		verr = verr.WithField("gender", "required")
		missing = true
	}
	if missing {
		return nil, verr
	}
	if demo.ConsentDate.After(demo.EnrollmentDate) {
		return nil, dErrors.New(dErrors.CodeValidation, "consent must predate enrollment").
			WithField("consent_date", "after enrollment_date")
	}

	return &Participant{
		ID:             participantID,
		Label:          label,
		Site:           site,
		Status:         StatusEnrolled,
		EnrollmentDate: demo.EnrollmentDate,
		ConsentDate:    demo.ConsentDate,
		DateOfBirth:    demo.DateOfBirth,
		Gender:         demo.Gender,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}, nil
}

func (p *Participant) invalidState(next Status) error {
	return dErrors.Newf(dErrors.CodeInvalidState, "cannot move to %s from current state %s", next, p.Status).
		WithRecord(string(p.ID))
}

// CanRecordScreenFailure checks the Enrolled -> ScreenFailed edge.
func (p *Participant) CanRecordScreenFailure() error {
	if !p.Status.CanTransitionTo(StatusScreenFailed) {
		return p.invalidState(StatusScreenFailed)
	}
	return nil
}

// ApplyScreenFailure transitions to ScreenFailed. Call CanRecordScreenFailure
// first inside the store's Execute callback.
func (p *Participant) ApplyScreenFailure(date, now time.Time) {
	p.Status = StatusScreenFailed
	p.ScreenFailedAt = &date
	p.UpdatedAt = now
	p.Version++
}

// CanRandomize checks the Enrolled -> Randomized edge. A participant that
// already carries a pack can never be randomized again.
func (p *Participant) CanRandomize() error {
	if p.PackID != "" {
		return dErrors.New(dErrors.CodeInvalidState, "participant already carries a pack assignment").
			WithRecord(string(p.ID))
	}
	if !p.Status.CanTransitionTo(StatusRandomized) {
		return p.invalidState(StatusRandomized)
	}
	return nil
}

// ApplyRandomization transitions to Randomized and stores the allocated pack.
func (p *Participant) ApplyRandomization(pack id.PackID, now time.Time) {
	p.Status = StatusRandomized
	p.PackID = pack
	p.UpdatedAt = now
	p.Version++
}

// CanCompleteTreatment checks the Randomized -> TreatmentCompleted edge.
func (p *Participant) CanCompleteTreatment() error {
	if !p.Status.CanTransitionTo(StatusTreatmentCompleted) {
		return p.invalidState(StatusTreatmentCompleted)
	}
	return nil
}

// ApplyCompletion transitions to TreatmentCompleted.
func (p *Participant) ApplyCompletion(date, now time.Time) {
	p.Status = StatusTreatmentCompleted
	p.CompletedAt = &date
	p.UpdatedAt = now
	p.Version++
}

// CanBreakCode checks the Randomized -> CodeBroken edge. The check rejects
// both not-yet-randomized and already-completed participants.
func (p *Participant) CanBreakCode() error {
	if !p.Status.CanTransitionTo(StatusCodeBroken) {
		return p.invalidState(StatusCodeBroken)
	}
	return nil
}

// ApplyCodeBreak transitions to CodeBroken. One-way and non-reversible.
func (p *Participant) ApplyCodeBreak(date, now time.Time) {
	p.Status = StatusCodeBroken
	p.CodeBrokenAt = &date
	p.UpdatedAt = now
	p.Version++
}

// Snapshot captures the record's pre-transition state for the ledger. Code
// breaks always carry one.
func (p *Participant) Snapshot() map[string]string {
	snap := map[string]string{
		"status":  string(p.Status),
		"site":    string(p.Site),
		"pack_id": string(p.PackID),
		"label":   p.Label,
	}
	return snap
}

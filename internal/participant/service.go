package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trialgate/internal/ledger"
	pmetrics "trialgate/internal/participant/metrics"
	"trialgate/internal/participant/ports"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Service owns the participant lifecycle. Role and scope checks happen in the
// access layer before calls arrive here; this service enforces the state
// machine, per-record serialization, and the one-event-per-transition rule.
// Scope still travels with every call so targeted lookups outside the caller's
// site resolve to not-found rather than leaking existence.
type Service struct {
	store     Store
	allocator ports.Allocator
	events    *ledger.Publisher
	metrics   *pmetrics.Metrics
}

type serviceConfig struct {
	metrics *pmetrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *pmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

func NewService(store Store, allocator ports.Allocator, events *ledger.Publisher, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		store:     store,
		allocator: allocator,
		events:    events,
		metrics:   cfg.metrics,
	}
}

// Enroll creates a participant in Enrolled state at the given site. The store
// assigns the sequential id and site-derived label.
func (s *Service) Enroll(ctx context.Context, site id.SiteCode, demo Demographics) (*Participant, error) {
	now := requestcontext.Now(ctx)
	p, err := NewParticipant("", "", site, demo, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create participant")
	}

	err = s.events.Emit(ctx, ledger.Event{
		ParticipantID: p.ID,
		Site:          p.Site,
		Type:          ledger.EventEnrolled,
		Description:   fmt.Sprintf("participant %s enrolled at %s", p.Label, p.Site),
		Details: map[string]string{
			"label":           p.Label,
			"enrollment_date": p.EnrollmentDate.Format(time.DateOnly),
		},
	})
	if err != nil {
		return nil, err
	}

	s.observe(StatusEnrolled)
	return p, nil
}

// Get returns a participant visible in scope. Out-of-scope records resolve to
// not-found; existence must not leak across sites.
func (s *Service) Get(ctx context.Context, scope id.Scope, participantID id.ParticipantID) (*Participant, error) {
	p, err := s.store.FindByID(ctx, participantID)
	if err != nil {
		return nil, wrapParticipantErr(err, participantID)
	}
	if !scope.Allows(p.Site) {
		return nil, notFound(participantID)
	}
	return p, nil
}

// RecordScreenFailure moves an Enrolled participant to ScreenFailed.
func (s *Service) RecordScreenFailure(ctx context.Context, scope id.Scope, participantID id.ParticipantID, date time.Time) (*Participant, error) {
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "screen failure date is required").
			WithField("date", "required")
	}
	return s.transition(ctx, scope, participantID, ledger.EventScreenFailed,
		func(p *Participant) error { return p.CanRecordScreenFailure() },
		func(p *Participant) { p.ApplyScreenFailure(date, requestcontext.Now(ctx)) },
		nil,
	)
}

// Randomize obtains a pack from the allocator and moves an Enrolled
// participant to Randomized. The allocator call happens outside the record
// lock while the record stays Enrolled, so a crash mid-call leaves no
// transient state and the operation is safe to retry. The final transition
// re-checks the version observed before the call: if the record moved, the
// caller lost a race and gets a concurrent-modification error with no second
// pack assigned, and the already-allocated pack is released back to
// inventory so the failed attempt commits nothing.
func (s *Service) Randomize(ctx context.Context, scope id.Scope, participantID id.ParticipantID) (*Participant, error) {
	start := time.Now()
	p, err := s.Get(ctx, scope, participantID)
	if err != nil {
		return nil, err
	}
	if err := p.CanRandomize(); err != nil {
		return nil, err
	}

	packID, err := s.allocator.Allocate(ctx, p.ID, p.Site)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAllocationFailed, "allocator did not return a pack").
			WithRecord(string(participantID))
	}

	observedVersion := p.Version
	updated, err := s.transition(ctx, scope, participantID, ledger.EventRandomized,
		func(rec *Participant) error {
			if rec.Version != observedVersion {
				return sentinel.ErrConflict
			}
			return rec.CanRandomize()
		},
		func(rec *Participant) { rec.ApplyRandomization(packID, requestcontext.Now(ctx)) },
		map[string]string{"pack_id": string(packID)},
	)
	if err != nil {
		// Release only when the record did not take the pack; a post-commit
		// failure (the ledger append) must leave the assignment standing.
		if cur, getErr := s.store.FindByID(ctx, participantID); getErr == nil && cur.PackID == packID {
			return nil, err
		}
		if relErr := s.allocator.Release(ctx, p.ID, packID); relErr != nil {
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveRandomize(start)
	}
	return updated, nil
}

// CompleteTreatment moves a Randomized participant to TreatmentCompleted.
func (s *Service) CompleteTreatment(ctx context.Context, scope id.Scope, participantID id.ParticipantID, date time.Time) (*Participant, error) {
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "completion date is required").
			WithField("date", "required")
	}
	return s.transition(ctx, scope, participantID, ledger.EventTreatmentCompleted,
		func(p *Participant) error { return p.CanCompleteTreatment() },
		func(p *Participant) { p.ApplyCompletion(date, requestcontext.Now(ctx)) },
		nil,
	)
}

// BreakCode unblinds a Randomized participant. One-way and auditable: the
// ledger event always carries the full prior state snapshot.
func (s *Service) BreakCode(ctx context.Context, scope id.Scope, participantID id.ParticipantID, date time.Time) (*Participant, error) {
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "code break date is required").
			WithField("date", "required")
	}

	// transition snapshots the pre-transition state into the event for every
	// edge; for a code break that snapshot is the audit requirement.
	return s.transition(ctx, scope, participantID, ledger.EventCodeBroken,
		func(p *Participant) error { return p.CanBreakCode() },
		func(p *Participant) { p.ApplyCodeBreak(date, requestcontext.Now(ctx)) },
		map[string]string{"code_break_date": date.Format(time.DateOnly)},
	)
}

// List returns the participants at one site.
func (s *Service) List(ctx context.Context, site id.SiteCode) ([]*Participant, error) {
	out, err := s.store.ListBySite(ctx, site)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	return out, nil
}

// ListByStatus returns the participants at one site in the given status. The
// dashboards use this for eligibility pick-lists (enrolled-not-randomized,
// randomized-not-completed, code-broken).
func (s *Service) ListByStatus(ctx context.Context, site id.SiteCode, status Status) ([]*Participant, error) {
	all, err := s.List(ctx, site)
	if err != nil {
		return nil, err
	}
	var out []*Participant
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// History returns the participant's ledger trail, scope-checked like any
// other targeted read.
func (s *Service) History(ctx context.Context, scope id.Scope, participantID id.ParticipantID) ([]ledger.Event, error) {
	if _, err := s.Get(ctx, scope, participantID); err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list history")
	}
	return events, nil
}

// transition runs one serialized state change and appends its ledger event.
func (s *Service) transition(ctx context.Context, scope id.Scope, participantID id.ParticipantID,
	eventType ledger.EventType, validate func(*Participant) error, mutate func(*Participant),
	details map[string]string) (*Participant, error) {

	// Scope gate first: an out-of-scope id must read as not-found without
	// touching the record lock.
	if _, err := s.Get(ctx, scope, participantID); err != nil {
		return nil, err
	}

	var prior map[string]string
	p, err := s.store.Execute(ctx, participantID,
		func(rec *Participant) error {
			prior = rec.Snapshot()
			return validate(rec)
		},
		mutate,
	)
	if err != nil {
		return nil, wrapParticipantErr(err, participantID)
	}

	eventDetails := map[string]string{}
	for k, v := range prior {
		eventDetails["prior_"+k] = v
	}
	for k, v := range details {
		eventDetails[k] = v
	}

	// The transition is committed at this point. A failed append surfaces as
	// an error so the missing event is visible, but it does not roll the state
	// change back; the caller observes the new state on re-read.
	err = s.events.Emit(ctx, ledger.Event{
		ParticipantID: p.ID,
		Site:          p.Site,
		Type:          eventType,
		Description:   fmt.Sprintf("participant %s moved to %s", p.Label, p.Status),
		Details:       eventDetails,
	})
	if err != nil {
		return nil, err
	}

	s.observe(p.Status)
	return p, nil
}

func (s *Service) observe(status Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(status))
	}
}

func notFound(participantID id.ParticipantID) error {
	return dErrors.New(dErrors.CodeNotFound, "participant not found").WithRecord(string(participantID))
}

func wrapParticipantErr(err error, participantID id.ParticipantID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return notFound(participantID)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "participant changed concurrently; re-read and retry").
			WithRecord(string(participantID))
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "participant store failure").
			WithRecord(string(participantID))
	}
}

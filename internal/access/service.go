package access

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trialgate/internal/identity"
	"trialgate/internal/ledger"
	"trialgate/internal/participant"
	"trialgate/internal/provisioning"
	"trialgate/internal/supply"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/requestcontext"
)

var tracer = otel.Tracer("trialgate/internal/access")

// Service fronts every registry operation with the capability check, scope
// resolution, and a trace span. Handlers call this and nothing below it.
type Service struct {
	participants *participant.Service
	chain        *supply.Service
	provisioner  *provisioning.Service
	actors       *identity.Service

	// requireActiveSite gates enrollments and consignments on the target site
	// being Active. Off by default.
	requireActiveSite bool
}

// Option configures the access service.
type Option func(*Service)

// WithActiveSitePolicy turns on the Active-site requirement for enrollments
// and consignments.
func WithActiveSitePolicy() Option {
	return func(s *Service) { s.requireActiveSite = true }
}

func NewService(participants *participant.Service, chain *supply.Service,
	provisioner *provisioning.Service, actors *identity.Service, opts ...Option) *Service {

	s := &Service{
		participants: participants,
		chain:        chain,
		provisioner:  provisioner,
		actors:       actors,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll registers a participant at the investigator's own site.
func (s *Service) Enroll(ctx context.Context, demo participant.Demographics) (*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpEnroll)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	site, err := boundSite(ident)
	if err != nil {
		return nil, traced(span, err)
	}
	if err := s.checkActiveSite(ctx, site); err != nil {
		return nil, traced(span, err)
	}
	p, err := s.participants.Enroll(ctx, site, demo)
	return p, traced(span, err)
}

// RecordScreenFailure moves a participant to ScreenFailed within the caller's
// scope.
func (s *Service) RecordScreenFailure(ctx context.Context, participantID id.ParticipantID, date time.Time) (*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpRecordScreenFailure)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	p, err := s.participants.RecordScreenFailure(ctx, ident.Scope, participantID, date)
	return p, traced(span, err)
}

// Randomize assigns a pack and moves a participant to Randomized.
func (s *Service) Randomize(ctx context.Context, participantID id.ParticipantID) (*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpRandomize)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	p, err := s.participants.Randomize(ctx, ident.Scope, participantID)
	return p, traced(span, err)
}

// CompleteTreatment moves a participant to TreatmentCompleted.
func (s *Service) CompleteTreatment(ctx context.Context, participantID id.ParticipantID, date time.Time) (*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpCompleteTreatment)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	p, err := s.participants.CompleteTreatment(ctx, ident.Scope, participantID, date)
	return p, traced(span, err)
}

// BreakCode unblinds a participant. Permitted to investigators and monitors
// within their site scope.
func (s *Service) BreakCode(ctx context.Context, participantID id.ParticipantID, date time.Time) (*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpBreakCode)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	p, err := s.participants.BreakCode(ctx, ident.Scope, participantID, date)
	return p, traced(span, err)
}

// ListParticipants returns the caller's site roster.
func (s *Service) ListParticipants(ctx context.Context) ([]*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpListParticipants)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	site, err := boundSite(ident)
	if err != nil {
		return nil, traced(span, err)
	}
	out, err := s.participants.List(ctx, site)
	return out, traced(span, err)
}

// ListCodeBroken returns the caller's unblinded participants.
func (s *Service) ListCodeBroken(ctx context.Context) ([]*participant.Participant, error) {
	ctx, span, ident, err := s.begin(ctx, OpListCodeBroken)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	site, err := boundSite(ident)
	if err != nil {
		return nil, traced(span, err)
	}
	out, err := s.participants.ListByStatus(ctx, site, participant.StatusCodeBroken)
	return out, traced(span, err)
}

// ParticipantHistory returns the ledger trail for one in-scope participant.
func (s *Service) ParticipantHistory(ctx context.Context, participantID id.ParticipantID) ([]ledger.Event, error) {
	ctx, span, ident, err := s.begin(ctx, OpParticipantHistory)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	out, err := s.participants.History(ctx, ident.Scope, participantID)
	return out, traced(span, err)
}

// RaiseConsignment ships a pack from the depot to a site.
func (s *Service) RaiseConsignment(ctx context.Context, packID id.PackID, destination id.SiteCode, date time.Time) (*supply.Consignment, error) {
	ctx, span, _, err := s.begin(ctx, OpRaiseConsignment)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	if err := s.checkActiveSite(ctx, destination); err != nil {
		return nil, traced(span, err)
	}
	c, err := s.chain.RaiseConsignment(ctx, packID, destination, date)
	return c, traced(span, err)
}

// RecordArrival records a shipment landing. Site-bound actors record against
// their own site; depot actors are global and name the destination site
// explicitly.
func (s *Service) RecordArrival(ctx context.Context, packID id.PackID, site id.SiteCode,
	observed supply.ArrivalStatus, date time.Time, notes string) (*supply.Arrival, error) {

	ctx, span, ident, err := s.begin(ctx, OpRecordArrival)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}

	scope := ident.Scope
	if ident.Scope.Global() {
		if site == "" {
			return nil, traced(span, dErrors.New(dErrors.CodeValidation, "site is required for depot arrivals").
				WithField("site", "required"))
		}
		scope = id.SiteScope(site)
	} else {
		own, err := boundSite(ident)
		if err != nil {
			return nil, traced(span, err)
		}
		if site != "" && site != own {
			return nil, traced(span, dErrors.New(dErrors.CodeValidation, "site must match your own site").
				WithField("site", "out of scope"))
		}
	}

	a, err := s.chain.RecordArrival(ctx, scope, packID, observed, date, notes)
	return a, traced(span, err)
}

// ListPendingShipments returns consignments awaiting arrival: the caller's
// site for site-bound actors, every site for the depot.
func (s *Service) ListPendingShipments(ctx context.Context) ([]*supply.Consignment, error) {
	ctx, span, ident, err := s.begin(ctx, OpListPendingShipments)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	if ident.Role.SiteBound() {
		if _, err := boundSite(ident); err != nil {
			return nil, traced(span, err)
		}
	}
	out, err := s.chain.ListPendingShipments(ctx, ident.Scope)
	return out, traced(span, err)
}

// GenerateRegistrationCodes issues single-use role-bound codes.
func (s *Service) GenerateRegistrationCodes(ctx context.Context, countsByRole map[id.Role]int) ([]provisioning.RegistrationCode, error) {
	ctx, span, _, err := s.begin(ctx, OpGenerateCodes)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	out, err := s.provisioner.GenerateRegistrationCodes(ctx, countsByRole)
	return out, traced(span, err)
}

// DefineSite creates or updates a site definition.
func (s *Service) DefineSite(ctx context.Context, code id.SiteCode, name string, status provisioning.SiteStatus, activationDate time.Time) (*provisioning.Site, error) {
	ctx, span, _, err := s.begin(ctx, OpDefineSite)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	site, err := s.provisioner.DefineSite(ctx, code, name, status, activationDate)
	return site, traced(span, err)
}

// DeleteSite removes an unreferenced site.
func (s *Service) DeleteSite(ctx context.Context, code id.SiteCode) error {
	ctx, span, _, err := s.begin(ctx, OpDeleteSite)
	defer span.End()
	if err != nil {
		return traced(span, err)
	}
	return traced(span, s.provisioner.DeleteSite(ctx, code))
}

// ListSites returns every site definition.
func (s *Service) ListSites(ctx context.Context) ([]*provisioning.Site, error) {
	ctx, span, _, err := s.begin(ctx, OpListSites)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	out, err := s.provisioner.ListSites(ctx)
	return out, traced(span, err)
}

// AssignSite performs the caller's one-time site assignment. The target site
// must exist; assignment to a phantom site would strand the actor.
func (s *Service) AssignSite(ctx context.Context, site id.SiteCode) (*identity.Actor, error) {
	ctx, span, ident, err := s.begin(ctx, OpAssignSite)
	defer span.End()
	if err != nil {
		return nil, traced(span, err)
	}
	if _, err := s.provisioner.GetSite(ctx, site); err != nil {
		return nil, traced(span, err)
	}
	actor, err := s.actors.AssignSite(ctx, ident.Username, site)
	return actor, traced(span, err)
}

// begin opens the operation span and runs the capability check.
func (s *Service) begin(ctx context.Context, op Operation) (context.Context, trace.Span, requestcontext.Identity, error) {
	ctx, span := tracer.Start(ctx, string(op))

	ident, ok := requestcontext.ActorIdentity(ctx)
	if !ok {
		return ctx, span, ident, dErrors.New(dErrors.CodeUnauthenticated, "no authenticated actor")
	}
	span.SetAttributes(
		attribute.String("actor.role", string(ident.Role)),
		attribute.String("actor.site", string(ident.Scope.Site())),
	)
	if !Permitted(ident.Role, op) {
		return ctx, span, ident, dErrors.Newf(dErrors.CodeForbidden, "role %s may not %s", ident.Role, op)
	}
	return ctx, span, ident, nil
}

// boundSite returns the actor's own site. A site-bound actor without an
// assignment yet cannot act on site-scoped records.
func boundSite(ident requestcontext.Identity) (id.SiteCode, error) {
	site := ident.Scope.Site()
	if site == "" {
		return "", dErrors.New(dErrors.CodeValidation, "actor has no site assigned yet")
	}
	return site, nil
}

func (s *Service) checkActiveSite(ctx context.Context, site id.SiteCode) error {
	if !s.requireActiveSite {
		return nil
	}
	def, err := s.provisioner.GetSite(ctx, site)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.Newf(dErrors.CodeValidation, "site %s is not defined", site).
				WithField("site", "unknown")
		}
		return err
	}
	if def.Status != provisioning.SiteActive {
		return dErrors.Newf(dErrors.CodeValidation, "site %s is not active", site).
			WithField("site", "inactive")
	}
	return nil
}

func traced(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
	}
	return err
}

package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trialgate/internal/ledger"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// ReferenceChecker reports whether a registry still references a site. The
// participant and supply registries each contribute one; a referenced site
// must never be deleted.
type ReferenceChecker interface {
	ReferencesSite(ctx context.Context, site id.SiteCode) (bool, error)
}

// ReferenceCheckerFunc adapts a plain function to the ReferenceChecker
// interface.
type ReferenceCheckerFunc func(ctx context.Context, site id.SiteCode) (bool, error)

func (f ReferenceCheckerFunc) ReferencesSite(ctx context.Context, site id.SiteCode) (bool, error) {
	return f(ctx, site)
}

// Service owns site definitions and registration codes. Only administrators
// reach it; the access layer enforces that.
type Service struct {
	sites    SiteStore
	codes    CodeStore
	events   *ledger.Publisher
	checkers []ReferenceChecker
}

func NewService(sites SiteStore, codes CodeStore, events *ledger.Publisher, checkers ...ReferenceChecker) *Service {
	return &Service{sites: sites, codes: codes, events: events, checkers: checkers}
}

// DefineSite creates or updates a site definition. Status toggles on an
// existing site are the normal correction path; the code itself never
// changes, and a site referenced by any trial record keeps its name and
// activation date permanently.
func (s *Service) DefineSite(ctx context.Context, code id.SiteCode, name string, status SiteStatus, activationDate time.Time) (*Site, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "site name is required").
			WithField("name", "required")
	}
	if activationDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "activation date is required").
			WithField("activation_date", "required")
	}

	now := requestcontext.Now(ctx)
	site := &Site{
		Code:           code,
		Name:           name,
		Status:         status,
		ActivationDate: activationDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing, err := s.sites.Find(ctx, code); err == nil {
		site.CreatedAt = existing.CreatedAt
		if name != existing.Name || !activationDate.Equal(existing.ActivationDate) {
			referenced, err := s.referenced(ctx, code)
			if err != nil {
				return nil, err
			}
			if referenced {
				return nil, dErrors.New(dErrors.CodeConflict,
					"site is referenced by trial records; only its status may change").
					WithRecord(string(code))
			}
		}
	}

	if err := s.sites.Upsert(ctx, site); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store site").
			WithRecord(string(code))
	}

	err := s.events.Emit(ctx, ledger.Event{
		Site:        code,
		Type:        ledger.EventSiteDefined,
		Description: fmt.Sprintf("site %s defined as %s", code, status),
		Details: map[string]string{
			"name":            name,
			"status":          string(status),
			"activation_date": activationDate.Format(time.DateOnly),
		},
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// GetSite returns one site definition.
func (s *Service) GetSite(ctx context.Context, code id.SiteCode) (*Site, error) {
	site, err := s.sites.Find(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "site not found").WithRecord(string(code))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read site").
			WithRecord(string(code))
	}
	return site, nil
}

// ListSites returns every site definition.
func (s *Service) ListSites(ctx context.Context) ([]*Site, error) {
	out, err := s.sites.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sites")
	}
	return out, nil
}

// DeleteSite removes an unreferenced site. Sites referenced by any
// participant or consignment are permanent; trial data only ever grows.
func (s *Service) DeleteSite(ctx context.Context, code id.SiteCode) error {
	referenced, err := s.referenced(ctx, code)
	if err != nil {
		return err
	}
	if referenced {
		return dErrors.New(dErrors.CodeConflict, "site is referenced by trial records and cannot be deleted").
			WithRecord(string(code))
	}

	err = s.sites.Delete(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "site not found").WithRecord(string(code))
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete site").
			WithRecord(string(code))
	}
	return nil
}

// referenced fans in over the registry checkers.
func (s *Service) referenced(ctx context.Context, code id.SiteCode) (bool, error) {
	for _, checker := range s.checkers {
		ref, err := checker.ReferencesSite(ctx, code)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check site references").
				WithRecord(string(code))
		}
		if ref {
			return true, nil
		}
	}
	return false, nil
}

// GenerateRegistrationCodes issues single-use role-bound codes, n per role.
func (s *Service) GenerateRegistrationCodes(ctx context.Context, countsByRole map[id.Role]int) ([]RegistrationCode, error) {
	if len(countsByRole) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one role count is required")
	}
	for role, n := range countsByRole {
		if n <= 0 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "count for role %s must be positive", role).
				WithField(string(role), "must be positive")
		}
	}

	now := requestcontext.Now(ctx)
	var out []RegistrationCode
	counts := make(map[string]string, len(countsByRole))
	for role, n := range countsByRole {
		for i := 0; i < n; i++ {
			code := RegistrationCode{Code: uuid.NewString(), Role: role, CreatedAt: now}
			if err := s.codes.Add(ctx, code); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store registration code")
			}
			out = append(out, code)
		}
		counts[string(role)] = fmt.Sprintf("%d", n)
	}

	err := s.events.Emit(ctx, ledger.Event{
		Type:        ledger.EventCodesGenerated,
		Description: fmt.Sprintf("%d registration codes generated", len(out)),
		Details:     counts,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConsumeCode redeems a registration code and returns its bound role. Unknown
// and already-consumed codes fail identically.
func (s *Service) ConsumeCode(ctx context.Context, code string) (id.Role, error) {
	role, err := s.codes.Consume(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid or already used registration code").
			WithField("secret_code", "invalid")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume registration code")
	}
	return role, nil
}

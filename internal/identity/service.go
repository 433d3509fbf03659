package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"trialgate/internal/ledger"
	"trialgate/internal/token"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

const minPasswordLength = 8

// CodeConsumer redeems a one-time registration code for its bound role.
type CodeConsumer interface {
	ConsumeCode(ctx context.Context, code string) (id.Role, error)
}

// Service owns registration, login, and identity resolution.
type Service struct {
	store  Store
	codes  CodeConsumer
	tokens *token.Service
	events *ledger.Publisher
}

func NewService(store Store, codes CodeConsumer, tokens *token.Service, events *ledger.Publisher) *Service {
	return &Service{store: store, codes: codes, tokens: tokens, events: events}
}

// Register creates an actor. The secret code fixes the role; a site may be
// given now for site-bound roles or assigned once later. The code is consumed
// only after the username is known to be free, so a rejected registration
// does not burn it.
func (s *Service) Register(ctx context.Context, username, password, secretCode string, site id.SiteCode) (*Actor, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength).
			WithField("password", "too short")
	}
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return nil, usernameTaken(username)
	}

	role, err := s.codes.ConsumeCode(ctx, secretCode)
	if err != nil {
		return nil, err
	}
	if site != "" && !role.SiteBound() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "role %s does not carry a site assignment", role).
			WithField("site", "not allowed for this role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash credential")
	}

	now := requestcontext.Now(ctx)
	actor := &Actor{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Site:         site,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, actor); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, usernameTaken(username)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create actor")
	}

	err = s.events.Emit(ctx, ledger.Event{
		Site:        site,
		Type:        ledger.EventActorRegistered,
		Description: fmt.Sprintf("actor %s registered as %s", username, role),
		Details:     map[string]string{"role": string(role)},
		RecordedBy:  username,
	})
	if err != nil {
		return nil, err
	}
	return actor, nil
}

// Login verifies credentials and issues an access token. Unknown usernames
// and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Actor, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return "", nil, badCredentials()
	}

	actor, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, badCredentials()
	}
	if bcrypt.CompareHashAndPassword(actor.PasswordHash, []byte(password)) != nil {
		return "", nil, badCredentials()
	}

	tok, err := s.tokens.Issue(actor.Username, actor.Role, actor.Site, requestcontext.Now(ctx))
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return tok, actor, nil
}

// ResolveToken turns a bearer token into the actor's current identity. The
// role and site come from the stored actor record, not the token claims, so a
// later site assignment takes effect without re-login and the record stays
// the single source of truth.
func (s *Service) ResolveToken(raw string) (requestcontext.Identity, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return requestcontext.Identity{}, err
	}

	actor, err := s.store.FindByUsername(context.Background(), claims.Username)
	if err != nil {
		return requestcontext.Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "unknown actor")
	}

	// The stored role normalizes before any comparison; case or whitespace
	// variance in a persisted value must not shift the actor's capabilities.
	role, err := id.ParseRole(string(actor.Role))
	if err != nil {
		return requestcontext.Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "actor role is not recognized")
	}

	scope := id.GlobalScope()
	if role.SiteBound() {
		scope = id.SiteScope(actor.Site)
	}
	return requestcontext.Identity{
		Username: actor.Username,
		Role:     role,
		Scope:    scope,
	}, nil
}

// AssignSite performs the one-time site assignment for a site-bound actor.
func (s *Service) AssignSite(ctx context.Context, username string, site id.SiteCode) (*Actor, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	actor, err := s.store.Execute(ctx, username,
		func(a *Actor) error { return a.CanAssignSite() },
		func(a *Actor) { a.ApplySiteAssignment(site, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "actor not found").WithRecord(username)
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign site").WithRecord(username)
	}

	err = s.events.Emit(ctx, ledger.Event{
		Site:        site,
		Type:        ledger.EventSiteAssigned,
		Description: fmt.Sprintf("actor %s assigned to site %s", username, site),
		Details:     map[string]string{"username": username},
	})
	if err != nil {
		return nil, err
	}
	return actor, nil
}

func usernameTaken(username string) error {
	return dErrors.New(dErrors.CodeConflict, "username already taken").WithRecord(username)
}

func badCredentials() error {
	return dErrors.New(dErrors.CodeUnauthenticated, "invalid username or password")
}

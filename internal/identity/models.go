// Package identity owns actors and their resolution into a role and scope.
// Roles are fixed at registration by a one-time code; site assignment happens
// at registration or once afterwards, never twice. Resolution is the single
// source of truth for "who is acting and where"; no fallback path re-derives
// an actor's site elsewhere.
package identity

import (
	"strings"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Actor is a registered user of the system.
type Actor struct {
	Username     string
	PasswordHash []byte
	Role         id.Role
	Site         id.SiteCode // empty for global roles, and until assignment for site-bound ones
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeUsername lowers and trims a username so lookups are case-stable.
func NormalizeUsername(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return "", dErrors.New(dErrors.CodeValidation, "username is required").
			WithField("username", "required")
	}
	if len(u) > 64 {
		return "", dErrors.New(dErrors.CodeValidation, "username must be 64 characters or less").
			WithField("username", "too long")
	}
	return u, nil
}

// CanAssignSite gates the one-time site assignment. Global roles never carry
// a site; site-bound actors get exactly one, ever. Re-assignment is a
// corrective admin action outside this lifecycle.
func (a *Actor) CanAssignSite() error {
	if !a.Role.SiteBound() {
		return dErrors.Newf(dErrors.CodeValidation, "role %s does not carry a site assignment", a.Role)
	}
	if a.Site != "" {
		return dErrors.New(dErrors.CodeConflict, "actor already has a site assigned").
			WithRecord(a.Username)
	}
	return nil
}

// ApplySiteAssignment sets the actor's site.
func (a *Actor) ApplySiteAssignment(site id.SiteCode, now time.Time) {
	a.Site = site
	a.UpdatedAt = now
}

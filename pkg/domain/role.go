package domain

import (
	"strings"

	dErrors "trialgate/pkg/domain-errors"
)

// Role is an actor's fixed capability class. Roles are bound at registration
// via a one-time code and never change afterwards.
type Role string

const (
	RoleInvestigator  Role = "investigator"
	RoleDepot         Role = "depot"
	RoleMonitor       Role = "monitor"
	RoleAdministrator Role = "administrator"
)

// ParseRole normalizes (trim + case-fold) and validates a role value. Stored
// role strings MUST pass through here before comparison; whitespace or case
// variance in persisted values must never widen or narrow a capability set.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleInvestigator:
		return RoleInvestigator, nil
	case RoleDepot:
		return RoleDepot, nil
	case RoleMonitor:
		return RoleMonitor, nil
	case RoleAdministrator, "admin":
		return RoleAdministrator, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role").WithRecord(raw)
	}
}

func (r Role) String() string { return string(r) }

// SiteBound reports whether actors of this role carry a single-site
// assignment. Depot and Administrator actors operate globally.
func (r Role) SiteBound() bool {
	return r == RoleInvestigator || r == RoleMonitor
}

// Scope is the visibility boundary resolved for an actor: either one site or
// the whole study. The zero value is a global scope.
type Scope struct {
	site SiteCode
}

// GlobalScope returns the unbounded scope used by Depot and Administrator
// actors.
func GlobalScope() Scope { return Scope{} }

// SiteScope returns a scope restricted to a single site.
func SiteScope(site SiteCode) Scope { return Scope{site: site} }

// Global reports whether the scope has no site restriction.
func (s Scope) Global() bool { return s.site == "" }

// Site returns the bounding site code, or "" for a global scope.
func (s Scope) Site() SiteCode { return s.site }

// Allows reports whether a record at the given site is visible in this scope.
func (s Scope) Allows(site SiteCode) bool {
	return s.Global() || s.site == site
}

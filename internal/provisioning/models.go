// Package provisioning covers the administrative surface: site definitions
// and one-time role-bound registration codes. Both gate who may join which
// scope, so every action here lands in the ledger.
package provisioning

import (
	"strings"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// SiteStatus is the activation state of a trial site.
type SiteStatus string

const (
	SiteActive   SiteStatus = "Active"
	SiteInactive SiteStatus = "Inactive"
	SitePending  SiteStatus = "Pending"
)

// ParseSiteStatus normalizes an externally supplied status.
func ParseSiteStatus(raw string) (SiteStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return SiteActive, nil
	case "inactive":
		return SiteInactive, nil
	case "pending":
		return SitePending, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown site status %q", raw).
			WithField("status", "must be Active, Inactive or Pending")
	}
}

// Site is a trial site definition. The code is immutable once referenced by a
// participant or consignment; status toggles remain allowed, deletion does
// not.
type Site struct {
	Code           id.SiteCode
	Name           string
	Status         SiteStatus
	ActivationDate time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RegistrationCode is a single-use secret bound to exactly one role. It is
// consumed atomically on first successful registration; a consumed code is
// indistinguishable from one that never existed.
type RegistrationCode struct {
	Code      string
	Role      id.Role
	CreatedAt time.Time
}

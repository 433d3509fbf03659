// Package supply owns the depot→site consignment chain: pack inventory,
// raised consignments, and recorded arrivals. Packs move Available → InTransit
// → (Available | Damaged | Quarantined) at the destination site, or Available
// → Allocated when the randomizer hands one to a participant.
package supply

import (
	"fmt"
	"strings"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// PackStatus tracks a physical drug-supply unit through the chain.
type PackStatus string

const (
	PackAvailable   PackStatus = "Available"
	PackAllocated   PackStatus = "Allocated"
	PackInTransit   PackStatus = "InTransit"
	PackDamaged     PackStatus = "Damaged"
	PackQuarantined PackStatus = "Quarantined"
)

// Pack is one physical drug-supply unit. Site is empty while the pack sits at
// the depot; once a consignment is raised it carries the destination site.
type Pack struct {
	ID         id.PackID
	Site       id.SiteCode
	Status     PackStatus
	AssignedTo id.ParticipantID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FormatPackID renders the nth catalog pack identifier (BYL001, ...).
func FormatPackID(seq int) id.PackID {
	return id.PackID(fmt.Sprintf("BYL%03d", seq))
}

// AtDepot reports whether the pack has not yet been consigned to a site.
func (p *Pack) AtDepot() bool { return p.Site == "" }

// CanRaise gates raising a consignment: the pack must be Available at the
// depot. Anything else is a depot inventory failure, never a partial write.
func (p *Pack) CanRaise() error {
	if !p.AtDepot() || p.Status != PackAvailable {
		return dErrors.Newf(dErrors.CodeDepotUnavailable,
			"pack is not available in depot inventory (status %s)", p.Status).
			WithRecord(string(p.ID))
	}
	return nil
}

// ApplyRaise moves the pack in transit to the destination site.
func (p *Pack) ApplyRaise(destination id.SiteCode, now time.Time) {
	p.Status = PackInTransit
	p.Site = destination
	p.UpdatedAt = now
}

// CanAllocate gates handing the pack to a participant: it must be Available
// at the participant's own site.
func (p *Pack) CanAllocate(site id.SiteCode) error {
	if p.Site != site || p.Status != PackAvailable {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"pack is not available for allocation (status %s)", p.Status).
			WithRecord(string(p.ID))
	}
	return nil
}

// ApplyAllocation assigns the pack to a participant.
func (p *Pack) ApplyAllocation(participantID id.ParticipantID, now time.Time) {
	p.Status = PackAllocated
	p.AssignedTo = participantID
	p.UpdatedAt = now
}

// CanRelease gates returning an allocated pack to inventory. Only the
// participant it was allocated for may hand it back.
func (p *Pack) CanRelease(participantID id.ParticipantID) error {
	if p.Status != PackAllocated || p.AssignedTo != participantID {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"pack is not allocated to this participant (status %s)", p.Status).
			WithRecord(string(p.ID))
	}
	return nil
}

// ApplyRelease returns the pack to the site's available inventory.
func (p *Pack) ApplyRelease(now time.Time) {
	p.Status = PackAvailable
	p.AssignedTo = ""
	p.UpdatedAt = now
}

// ConsignmentStatus is Raised on success. Failed never reaches the store: a
// failed raise writes nothing and surfaces as a depot inventory error.
type ConsignmentStatus string

const (
	ConsignmentRaised ConsignmentStatus = "Raised"
	ConsignmentFailed ConsignmentStatus = "Failed"
)

// Consignment is one depot→site shipment of a single pack. A pack satisfies
// at most one consignment.
type Consignment struct {
	ID        id.ConsignmentID
	PackID    id.PackID
	Site      id.SiteCode
	Status    ConsignmentStatus
	RaiseDate time.Time
	RaisedBy  string
	CreatedAt time.Time
}

// ArrivalStatus records what the site observed when the shipment landed.
type ArrivalStatus string

const (
	ArrivalArrived     ArrivalStatus = "Arrived"
	ArrivalDamaged     ArrivalStatus = "Damaged"
	ArrivalQuarantined ArrivalStatus = "Quarantined"
	// ArrivalDuplicate is the benign outcome of resubmitting an arrival for an
	// already-arrived pack. It is returned, never stored.
	ArrivalDuplicate ArrivalStatus = "Duplicate"
)

// ParseArrivalStatus normalizes a site-submitted condition. Unrecognized
// input is rejected before any write; a typo must never become the pack's
// single non-duplicate arrival record.
func ParseArrivalStatus(raw string) (ArrivalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "arrived", "ok", "good":
		return ArrivalArrived, nil
	case "damaged":
		return ArrivalDamaged, nil
	case "quarantined", "quarantine":
		return ArrivalQuarantined, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unrecognized arrival status %q", raw).
			WithField("status", "must be arrived, damaged, or quarantined")
	}
}

// Arrival is the single non-duplicate arrival record for a pack.
type Arrival struct {
	PackID        id.PackID
	ConsignmentID id.ConsignmentID
	Site          id.SiteCode
	Status        ArrivalStatus
	ArrivalDate   time.Time
	Notes         string
	RecordedBy    string
	RecordedAt    time.Time
}

// ApplyArrival settles the pack at its destination according to the observed
// condition.
func (p *Pack) ApplyArrival(status ArrivalStatus, now time.Time) {
	switch status {
	case ArrivalArrived:
		p.Status = PackAvailable
	case ArrivalDamaged:
		p.Status = PackDamaged
	case ArrivalQuarantined:
		p.Status = PackQuarantined
	}
	p.UpdatedAt = now
}

package supply

import (
	"context"

	id "trialgate/pkg/domain"
)

// Store is the persistence contract for the supply chain.
//
// Raise and Arrive are the compound mutation paths. Each one loads the
// affected records, holds their locks across the callbacks, and persists the
// result atomically, so a consignment can never dangle without its pack move
// and an arrival can never land twice.
//
// Raise assigns the sequential consignment id (CON-BYLnnn) under the store's
// own serialization. The build callback receives the locked pack, mutates it,
// and returns the consignment to persist.
//
// Arrive resolves the consignment for the pack restricted to the given site.
// No such consignment yields sentinel.ErrNotFound. An existing arrival for
// the pack yields the stored arrival together with sentinel.ErrDuplicate.
// Otherwise build receives the consignment and the locked pack, mutates the
// pack, and returns the arrival to persist.
type Store interface {
	CreatePack(ctx context.Context, p *Pack) error
	FindPack(ctx context.Context, packID id.PackID) (*Pack, error)
	ListAvailablePacks(ctx context.Context, site id.SiteCode) ([]*Pack, error)
	ExecutePack(ctx context.Context, packID id.PackID,
		validate func(*Pack) error, mutate func(*Pack)) (*Pack, error)

	Raise(ctx context.Context, packID id.PackID,
		validate func(*Pack) error,
		build func(*Pack) *Consignment) (*Consignment, error)
	Arrive(ctx context.Context, packID id.PackID, site id.SiteCode,
		build func(*Consignment, *Pack) *Arrival) (*Arrival, error)

	// ListPending returns consignments with no recorded arrival, destined for
	// the given site; the empty site code means every site.
	ListPending(ctx context.Context, site id.SiteCode) ([]*Consignment, error)

	// ReferencesSite reports whether any consignment targets the site. Used to
	// keep referenced sites non-deletable.
	ReferencesSite(ctx context.Context, site id.SiteCode) (bool, error)
}

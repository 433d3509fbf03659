package supply

import (
	"context"
	"math/rand"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/requestcontext"
)

// InventoryAllocator satisfies the participant registry's Allocator port from
// site inventory: it picks a random Available pack at the participant's site
// and marks it Allocated. Selection and marking race against other
// allocations, so losing a candidate just moves on to the next; a participant
// never ends up with two packs because the mark is serialized per pack.
type InventoryAllocator struct {
	store Store
}

func NewInventoryAllocator(store Store) *InventoryAllocator {
	return &InventoryAllocator{store: store}
}

func (a *InventoryAllocator) Allocate(ctx context.Context, participantID id.ParticipantID, site id.SiteCode) (id.PackID, error) {
	candidates, err := a.store.ListAvailablePacks(ctx, site)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read site inventory")
	}
	if len(candidates) == 0 {
		return "", dErrors.Newf(dErrors.CodeAllocationFailed, "no available pack at site %s", site)
	}

	now := requestcontext.Now(ctx)
	for _, i := range rand.Perm(len(candidates)) {
		packID := candidates[i].ID
		_, err := a.store.ExecutePack(ctx, packID,
			func(p *Pack) error { return p.CanAllocate(site) },
			func(p *Pack) { p.ApplyAllocation(participantID, now) },
		)
		if err == nil {
			return packID, nil
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			// Lost this candidate to a concurrent allocation; try the next.
			continue
		}
		return "", err
	}
	return "", dErrors.Newf(dErrors.CodeAllocationFailed, "no available pack at site %s", site)
}

// Release returns an allocated pack to inventory when the randomization that
// requested it did not commit. Without this a lost transition race would
// strand the pack as Allocated forever.
func (a *InventoryAllocator) Release(ctx context.Context, participantID id.ParticipantID, packID id.PackID) error {
	_, err := a.store.ExecutePack(ctx, packID,
		func(p *Pack) error { return p.CanRelease(participantID) },
		func(p *Pack) { p.ApplyRelease(requestcontext.Now(ctx)) },
	)
	return err
}

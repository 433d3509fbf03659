// Package ports declares the participant registry's outbound dependencies.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Allocator

import (
	"context"

	id "trialgate/pkg/domain"
)

// Allocator is the black-box randomization service. Allocate returns the pack
// assigned to the participant or an error; it never partially assigns. The
// call may block on an external service, so it always takes a context and is
// invoked outside any record lock.
//
// Release hands an allocated pack back when the transition that requested it
// did not commit, so a lost randomization race cannot strand inventory.
type Allocator interface {
	Allocate(ctx context.Context, participantID id.ParticipantID, site id.SiteCode) (id.PackID, error)
	Release(ctx context.Context, participantID id.ParticipantID, packID id.PackID) error
}

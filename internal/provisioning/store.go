package provisioning

import (
	"context"

	id "trialgate/pkg/domain"
)

// SiteStore persists site definitions. Upsert creates or replaces the record
// for the site's code; Delete removes it (reference checks happen in the
// service, not here).
type SiteStore interface {
	Upsert(ctx context.Context, site *Site) error
	Find(ctx context.Context, code id.SiteCode) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
	Delete(ctx context.Context, code id.SiteCode) error
}

// CodeStore persists registration codes. Consume atomically removes the code
// and returns its bound role; a consumed or unknown code yields
// sentinel.ErrNotFound, deliberately indistinguishable so a guessed code
// leaks nothing.
type CodeStore interface {
	Add(ctx context.Context, code RegistrationCode) error
	Consume(ctx context.Context, code string) (id.Role, error)
}

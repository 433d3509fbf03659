package identity

import "context"

// Store is the persistence contract for actors. Execute is the only mutation
// path after creation: it holds the actor's lock across validate and mutate so
// two concurrent site assignments cannot both land.
type Store interface {
	Create(ctx context.Context, a *Actor) error
	FindByUsername(ctx context.Context, username string) (*Actor, error)
	Execute(ctx context.Context, username string,
		validate func(*Actor) error,
		mutate func(*Actor)) (*Actor, error)
}

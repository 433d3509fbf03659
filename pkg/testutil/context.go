package testutil

import (
	"context"
	"time"

	id "trialgate/pkg/domain"
	"trialgate/pkg/requestcontext"
)

// InvestigatorAt returns a context carrying an investigator identity scoped to
// the given site. This simulates what the auth middleware does for
// authenticated requests.
func InvestigatorAt(site id.SiteCode) context.Context {
	return WithActor(context.Background(), "inv-"+string(site), id.RoleInvestigator, id.SiteScope(site))
}

// MonitorAt returns a context carrying a monitor identity scoped to the given
// site.
func MonitorAt(site id.SiteCode) context.Context {
	return WithActor(context.Background(), "mon-"+string(site), id.RoleMonitor, id.SiteScope(site))
}

// Depot returns a context carrying a globally scoped depot identity.
func Depot() context.Context {
	return WithActor(context.Background(), "depot-1", id.RoleDepot, id.GlobalScope())
}

// Administrator returns a context carrying a globally scoped administrator
// identity.
func Administrator() context.Context {
	return WithActor(context.Background(), "admin-1", id.RoleAdministrator, id.GlobalScope())
}

// WithActor injects an arbitrary actor identity into ctx.
func WithActor(ctx context.Context, username string, role id.Role, scope id.Scope) context.Context {
	return requestcontext.WithIdentity(ctx, requestcontext.Identity{
		Username: username,
		Role:     role,
		Scope:    scope,
	})
}

// WithFixedTime pins the request clock, so transition timestamps are
// deterministic in assertions.
func WithFixedTime(ctx context.Context, t time.Time) context.Context {
	return requestcontext.WithTime(ctx, t)
}

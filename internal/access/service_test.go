package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/identity"
	"trialgate/internal/ledger"
	"trialgate/internal/participant"
	"trialgate/internal/provisioning"
	"trialgate/internal/supply"
	"trialgate/internal/token"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/testutil"
)

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func validDemographics() participant.Demographics {
	return participant.Demographics{
		EnrollmentDate: date("2026-02-01"),
		ConsentDate:    date("2026-01-28"),
		DateOfBirth:    date("1985-06-15"),
		Gender:         "female",
	}
}

type gateFixture struct {
	gate        *Service
	chain       *supply.Service
	provisioner *provisioning.Service
	actors      *identity.Service
}

func newGateFixture(t *testing.T, opts ...Option) *gateFixture {
	t.Helper()

	events := ledger.NewPublisher(ledger.NewInMemoryStore())
	supplyStore := supply.NewInMemoryStore()
	chain := supply.NewService(supplyStore, events)
	require.NoError(t, chain.SeedPacks(context.Background(), 5))

	participants := participant.NewService(
		participant.NewInMemoryStore(),
		supply.NewInventoryAllocator(supplyStore),
		events,
	)
	provisioner := provisioning.NewService(
		provisioning.NewSiteMemoryStore(), provisioning.NewCodeMemoryStore(), events, chain)
	actors := identity.NewService(
		identity.NewInMemoryStore(), provisioner,
		token.NewService([]byte("test-signing-key"), time.Hour), events)

	return &gateFixture{
		gate:        NewService(participants, chain, provisioner, actors, opts...),
		chain:       chain,
		provisioner: provisioner,
		actors:      actors,
	}
}

func TestAuthenticationGate(t *testing.T) {
	f := newGateFixture(t)

	t.Run("anonymous context is unauthenticated", func(t *testing.T) {
		_, err := f.gate.ListSites(context.Background())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("authenticated but unpermitted is forbidden", func(t *testing.T) {
		_, err := f.gate.Enroll(testutil.Depot(), validDemographics())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = f.gate.BreakCode(testutil.Administrator(), "PAT001", date("2026-03-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = f.gate.RaiseConsignment(testutil.InvestigatorAt("SITEA"), "BYL001", "SITEA", date("2026-02-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestSiteBoundWithoutAssignment(t *testing.T) {
	f := newGateFixture(t)
	unassigned := testutil.WithActor(context.Background(), "inv-new", id.RoleInvestigator, id.SiteScope(""))

	_, err := f.gate.Enroll(unassigned, validDemographics())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.gate.ListParticipants(unassigned)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.gate.RecordArrival(unassigned, "BYL001", "", supply.ArrivalArrived, date("2026-02-05"), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestScopeClamping(t *testing.T) {
	f := newGateFixture(t)
	siteA := testutil.InvestigatorAt("SITEA")
	siteB := testutil.InvestigatorAt("SITEB")

	p, err := f.gate.Enroll(siteA, validDemographics())
	require.NoError(t, err)

	t.Run("cross-site read is not found, never forbidden", func(t *testing.T) {
		_, err := f.gate.ParticipantHistory(siteB, p.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("cross-site transition is not found", func(t *testing.T) {
		_, err := f.gate.RecordScreenFailure(siteB, p.ID, date("2026-02-10"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("arrival for a shipment bound elsewhere is not eligible", func(t *testing.T) {
		_, err := f.gate.RaiseConsignment(testutil.Depot(), "BYL001", "SITEA", date("2026-02-01"))
		require.NoError(t, err)

		_, err = f.gate.RecordArrival(siteB, "BYL001", "", supply.ArrivalArrived, date("2026-02-05"), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotEligible))
	})

	t.Run("pending shipments are clamped to the caller's site", func(t *testing.T) {
		_, err := f.gate.RaiseConsignment(testutil.Depot(), "BYL002", "SITEB", date("2026-02-01"))
		require.NoError(t, err)

		pending, err := f.gate.ListPendingShipments(siteA)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, id.PackID("BYL001"), pending[0].PackID)

		all, err := f.gate.ListPendingShipments(testutil.Depot())
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestDepotArrival(t *testing.T) {
	f := newGateFixture(t)
	depot := testutil.Depot()

	_, err := f.gate.RaiseConsignment(depot, "BYL001", "SITEA", date("2026-02-01"))
	require.NoError(t, err)

	t.Run("depot records on behalf of an explicit destination site", func(t *testing.T) {
		a, err := f.gate.RecordArrival(depot, "BYL001", "SITEA", supply.ArrivalArrived, date("2026-02-05"), "")
		require.NoError(t, err)
		assert.Equal(t, supply.ArrivalArrived, a.Status)
		assert.Equal(t, "depot-1", a.RecordedBy)
	})

	t.Run("depot without a site is rejected", func(t *testing.T) {
		_, err := f.gate.RecordArrival(depot, "BYL001", "", supply.ArrivalArrived, date("2026-02-05"), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("site actor cannot record for another site", func(t *testing.T) {
		_, err := f.gate.RecordArrival(testutil.InvestigatorAt("SITEB"), "BYL001", "SITEA", supply.ArrivalArrived, date("2026-02-05"), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("site actor naming their own site is fine", func(t *testing.T) {
		_, err := f.gate.RaiseConsignment(depot, "BYL002", "SITEB", date("2026-02-01"))
		require.NoError(t, err)
		a, err := f.gate.RecordArrival(testutil.InvestigatorAt("SITEB"), "BYL002", "SITEB", supply.ArrivalArrived, date("2026-02-05"), "")
		require.NoError(t, err)
		assert.Equal(t, supply.ArrivalArrived, a.Status)
	})
}

func TestMonitorBreakCode(t *testing.T) {
	f := newGateFixture(t)
	inv := testutil.InvestigatorAt("SITEA")

	_, err := f.gate.RaiseConsignment(testutil.Depot(), "BYL001", "SITEA", date("2026-02-01"))
	require.NoError(t, err)
	_, err = f.gate.RecordArrival(inv, "BYL001", "", supply.ArrivalArrived, date("2026-02-03"), "")
	require.NoError(t, err)

	p, err := f.gate.Enroll(inv, validDemographics())
	require.NoError(t, err)
	_, err = f.gate.Randomize(inv, p.ID)
	require.NoError(t, err)

	broken, err := f.gate.BreakCode(testutil.MonitorAt("SITEA"), p.ID, date("2026-03-01"))
	require.NoError(t, err)
	assert.Equal(t, participant.StatusCodeBroken, broken.Status)

	listed, err := f.gate.ListCodeBroken(testutil.MonitorAt("SITEA"))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)
}

func TestActiveSitePolicy(t *testing.T) {
	f := newGateFixture(t, WithActiveSitePolicy())
	admin := testutil.Administrator()
	inv := testutil.InvestigatorAt("SITEA")

	t.Run("undefined site rejects enrollment", func(t *testing.T) {
		_, err := f.gate.Enroll(inv, validDemographics())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("inactive site rejects enrollment and consignments", func(t *testing.T) {
		_, err := f.gate.DefineSite(admin, "SITEA", "City Hospital", provisioning.SiteInactive, date("2026-01-01"))
		require.NoError(t, err)

		_, err = f.gate.Enroll(inv, validDemographics())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = f.gate.RaiseConsignment(testutil.Depot(), "BYL001", "SITEA", date("2026-02-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("active site admits both", func(t *testing.T) {
		_, err := f.gate.DefineSite(admin, "SITEA", "City Hospital", provisioning.SiteActive, date("2026-01-01"))
		require.NoError(t, err)

		_, err = f.gate.Enroll(inv, validDemographics())
		require.NoError(t, err)
		_, err = f.gate.RaiseConsignment(testutil.Depot(), "BYL001", "SITEA", date("2026-02-01"))
		require.NoError(t, err)
	})
}

func TestDeleteSiteGuard(t *testing.T) {
	f := newGateFixture(t)
	admin := testutil.Administrator()

	_, err := f.gate.DefineSite(admin, "SITEA", "City Hospital", provisioning.SiteActive, date("2026-01-01"))
	require.NoError(t, err)

	// A consignment to the site makes it permanent.
	_, err = f.gate.RaiseConsignment(testutil.Depot(), "BYL001", "SITEA", date("2026-02-01"))
	require.NoError(t, err)

	err = f.gate.DeleteSite(admin, "SITEA")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestAssignSite(t *testing.T) {
	f := newGateFixture(t)
	admin := testutil.Administrator()
	ctx := context.Background()

	codes, err := f.gate.GenerateRegistrationCodes(admin, map[id.Role]int{id.RoleInvestigator: 1})
	require.NoError(t, err)
	_, err = f.actors.Register(ctx, "inv-new", "correct-horse", codes[0].Code, "")
	require.NoError(t, err)

	_, err = f.gate.DefineSite(admin, "SITEA", "City Hospital", provisioning.SiteActive, date("2026-01-01"))
	require.NoError(t, err)

	self := testutil.WithActor(ctx, "inv-new", id.RoleInvestigator, id.SiteScope(""))

	t.Run("assignment to a phantom site is rejected", func(t *testing.T) {
		_, err := f.gate.AssignSite(self, "SITEZ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("assignment to a defined site sticks", func(t *testing.T) {
		actor, err := f.gate.AssignSite(self, "SITEA")
		require.NoError(t, err)
		assert.Equal(t, id.SiteCode("SITEA"), actor.Site)

		_, err = f.gate.AssignSite(self, "SITEA")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

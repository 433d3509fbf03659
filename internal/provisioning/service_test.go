package provisioning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/ledger"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/testutil"
)

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func newProvisioningService(checkers ...ReferenceChecker) *Service {
	events := ledger.NewPublisher(ledger.NewInMemoryStore())
	return NewService(NewSiteMemoryStore(), NewCodeMemoryStore(), events, checkers...)
}

func TestDefineSite(t *testing.T) {
	svc := newProvisioningService()
	ctx := testutil.Administrator()

	t.Run("creates a site", func(t *testing.T) {
		site, err := svc.DefineSite(ctx, "SITEA", "City Hospital", SiteActive, date("2026-01-01"))
		require.NoError(t, err)
		assert.Equal(t, SiteActive, site.Status)

		found, err := svc.GetSite(ctx, "SITEA")
		require.NoError(t, err)
		assert.Equal(t, "City Hospital", found.Name)
	})

	t.Run("redefining toggles status and keeps creation time", func(t *testing.T) {
		created, err := svc.GetSite(ctx, "SITEA")
		require.NoError(t, err)

		updated, err := svc.DefineSite(ctx, "SITEA", "City Hospital", SiteInactive, date("2026-01-01"))
		require.NoError(t, err)
		assert.Equal(t, SiteInactive, updated.Status)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	})

	t.Run("name is required", func(t *testing.T) {
		_, err := svc.DefineSite(ctx, "SITEB", "", SiteActive, date("2026-01-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("referenced site keeps its name and activation date", func(t *testing.T) {
		referenced := ReferenceCheckerFunc(func(context.Context, id.SiteCode) (bool, error) {
			return true, nil
		})
		svc := newProvisioningService(referenced)
		ctx := testutil.Administrator()
		_, err := svc.DefineSite(ctx, "SITEA", "City Hospital", SiteActive, date("2026-01-01"))
		require.NoError(t, err)

		_, err = svc.DefineSite(ctx, "SITEA", "Renamed Clinic", SiteActive, date("2026-01-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = svc.DefineSite(ctx, "SITEA", "City Hospital", SiteActive, date("2026-03-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		// Status toggles stay open.
		updated, err := svc.DefineSite(ctx, "SITEA", "City Hospital", SiteInactive, date("2026-01-01"))
		require.NoError(t, err)
		assert.Equal(t, SiteInactive, updated.Status)

		found, err := svc.GetSite(ctx, "SITEA")
		require.NoError(t, err)
		assert.Equal(t, "City Hospital", found.Name)
	})
}

func TestDeleteSite(t *testing.T) {
	t.Run("unreferenced site can be deleted", func(t *testing.T) {
		svc := newProvisioningService()
		ctx := testutil.Administrator()
		_, err := svc.DefineSite(ctx, "SITEA", "A", SiteActive, date("2026-01-01"))
		require.NoError(t, err)

		require.NoError(t, svc.DeleteSite(ctx, "SITEA"))
		_, err = svc.GetSite(ctx, "SITEA")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("referenced site is permanent", func(t *testing.T) {
		referenced := ReferenceCheckerFunc(func(context.Context, id.SiteCode) (bool, error) {
			return true, nil
		})
		svc := newProvisioningService(referenced)
		ctx := testutil.Administrator()
		_, err := svc.DefineSite(ctx, "SITEA", "A", SiteActive, date("2026-01-01"))
		require.NoError(t, err)

		err = svc.DeleteSite(ctx, "SITEA")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		// Still there.
		_, err = svc.GetSite(ctx, "SITEA")
		require.NoError(t, err)
	})
}

func TestGenerateRegistrationCodes(t *testing.T) {
	svc := newProvisioningService()
	ctx := testutil.Administrator()

	t.Run("mints distinct role-bound codes", func(t *testing.T) {
		codes, err := svc.GenerateRegistrationCodes(ctx, map[id.Role]int{
			id.RoleInvestigator: 2,
			id.RoleDepot:        1,
		})
		require.NoError(t, err)
		require.Len(t, codes, 3)

		seen := map[string]bool{}
		for _, c := range codes {
			assert.False(t, seen[c.Code])
			seen[c.Code] = true
		}
	})

	t.Run("rejects non-positive counts", func(t *testing.T) {
		_, err := svc.GenerateRegistrationCodes(ctx, map[id.Role]int{id.RoleMonitor: 0})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestConsumeCode(t *testing.T) {
	svc := newProvisioningService()
	ctx := testutil.Administrator()

	codes, err := svc.GenerateRegistrationCodes(ctx, map[id.Role]int{id.RoleMonitor: 1})
	require.NoError(t, err)
	code := codes[0].Code

	t.Run("first consume returns the bound role", func(t *testing.T) {
		role, err := svc.ConsumeCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, id.RoleMonitor, role)
	})

	t.Run("second consume fails like an unknown code", func(t *testing.T) {
		_, err := svc.ConsumeCode(ctx, code)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, unknownErr := svc.ConsumeCode(ctx, "never-issued")
		assert.Equal(t, err.Error(), unknownErr.Error())
	})

	t.Run("concurrent consumers race to exactly one winner", func(t *testing.T) {
		codes, err := svc.GenerateRegistrationCodes(ctx, map[id.Role]int{id.RoleInvestigator: 1})
		require.NoError(t, err)

		const attempts = 8
		var wg sync.WaitGroup
		results := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = svc.ConsumeCode(ctx, codes[0].Code)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
			}
		}
		assert.Equal(t, 1, wins)
	})
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("trims and case-folds", func(t *testing.T) {
		role, err := ParseRole("  Investigator ")
		require.NoError(t, err)
		assert.Equal(t, RoleInvestigator, role)
	})

	t.Run("accepts admin alias", func(t *testing.T) {
		role, err := ParseRole("ADMIN")
		require.NoError(t, err)
		assert.Equal(t, RoleAdministrator, role)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := ParseRole("superuser")
		require.Error(t, err)
	})
}

func TestRoleSiteBound(t *testing.T) {
	assert.True(t, RoleInvestigator.SiteBound())
	assert.True(t, RoleMonitor.SiteBound())
	assert.False(t, RoleDepot.SiteBound())
	assert.False(t, RoleAdministrator.SiteBound())
}

func TestScope(t *testing.T) {
	t.Run("global scope allows every site", func(t *testing.T) {
		scope := GlobalScope()
		assert.True(t, scope.Global())
		assert.True(t, scope.Allows("SITEA"))
		assert.True(t, scope.Allows("SITEB"))
	})

	t.Run("site scope allows only its own site", func(t *testing.T) {
		scope := SiteScope("SITEA")
		assert.False(t, scope.Global())
		assert.True(t, scope.Allows("SITEA"))
		assert.False(t, scope.Allows("SITEB"))
	})
}

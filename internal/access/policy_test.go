package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "trialgate/pkg/domain"
)

func TestCapabilityMatrix(t *testing.T) {
	t.Run("administrators provision but never touch trial records", func(t *testing.T) {
		assert.True(t, Permitted(id.RoleAdministrator, OpGenerateCodes))
		assert.True(t, Permitted(id.RoleAdministrator, OpDefineSite))
		assert.True(t, Permitted(id.RoleAdministrator, OpDeleteSite))
		assert.True(t, Permitted(id.RoleAdministrator, OpListSites))

		assert.False(t, Permitted(id.RoleAdministrator, OpEnroll))
		assert.False(t, Permitted(id.RoleAdministrator, OpRandomize))
		assert.False(t, Permitted(id.RoleAdministrator, OpBreakCode))
		assert.False(t, Permitted(id.RoleAdministrator, OpListParticipants))
		assert.False(t, Permitted(id.RoleAdministrator, OpRaiseConsignment))
	})

	t.Run("depot ships but never touches the participant lifecycle", func(t *testing.T) {
		assert.True(t, Permitted(id.RoleDepot, OpRaiseConsignment))
		assert.True(t, Permitted(id.RoleDepot, OpRecordArrival))
		assert.True(t, Permitted(id.RoleDepot, OpListPendingShipments))
		assert.True(t, Permitted(id.RoleDepot, OpListSites))

		assert.False(t, Permitted(id.RoleDepot, OpEnroll))
		assert.False(t, Permitted(id.RoleDepot, OpBreakCode))
		assert.False(t, Permitted(id.RoleDepot, OpGenerateCodes))
		assert.False(t, Permitted(id.RoleDepot, OpAssignSite))
	})

	t.Run("monitors are read-mostly plus the emergency unblinding", func(t *testing.T) {
		assert.True(t, Permitted(id.RoleMonitor, OpListParticipants))
		assert.True(t, Permitted(id.RoleMonitor, OpListCodeBroken))
		assert.True(t, Permitted(id.RoleMonitor, OpParticipantHistory))
		assert.True(t, Permitted(id.RoleMonitor, OpBreakCode))
		assert.True(t, Permitted(id.RoleMonitor, OpAssignSite))

		assert.False(t, Permitted(id.RoleMonitor, OpEnroll))
		assert.False(t, Permitted(id.RoleMonitor, OpRandomize))
		assert.False(t, Permitted(id.RoleMonitor, OpCompleteTreatment))
		assert.False(t, Permitted(id.RoleMonitor, OpRaiseConsignment))
		assert.False(t, Permitted(id.RoleMonitor, OpRecordArrival))
	})

	t.Run("investigators run the lifecycle and site-side supply", func(t *testing.T) {
		assert.True(t, Permitted(id.RoleInvestigator, OpEnroll))
		assert.True(t, Permitted(id.RoleInvestigator, OpRandomize))
		assert.True(t, Permitted(id.RoleInvestigator, OpCompleteTreatment))
		assert.True(t, Permitted(id.RoleInvestigator, OpBreakCode))
		assert.True(t, Permitted(id.RoleInvestigator, OpRecordArrival))
		assert.True(t, Permitted(id.RoleInvestigator, OpListPendingShipments))

		assert.False(t, Permitted(id.RoleInvestigator, OpRaiseConsignment))
		assert.False(t, Permitted(id.RoleInvestigator, OpGenerateCodes))
		assert.False(t, Permitted(id.RoleInvestigator, OpDefineSite))
		assert.False(t, Permitted(id.RoleInvestigator, OpDeleteSite))
	})

	t.Run("unknown roles have no capabilities", func(t *testing.T) {
		assert.False(t, Permitted(id.Role("superuser"), OpListSites))
		assert.False(t, Permitted(id.Role(""), OpEnroll))
	})
}

// Package access is the single enforcement point between authenticated actors
// and the registries. Each role maps to an explicit permitted-operation set,
// checked once here; no service downstream branches on role. Scope clamping
// happens here too: site-bound actors act on their own site only, and
// out-of-scope records read as not found rather than forbidden.
package access

import id "trialgate/pkg/domain"

// Operation names one externally invokable action.
type Operation string

const (
	OpEnroll              Operation = "enroll"
	OpRecordScreenFailure Operation = "record_screen_failure"
	OpRandomize           Operation = "randomize"
	OpCompleteTreatment   Operation = "complete_treatment"
	OpBreakCode           Operation = "break_code"
	OpListParticipants    Operation = "list_participants"
	OpListCodeBroken      Operation = "list_code_broken"
	OpParticipantHistory  Operation = "participant_history"

	OpRaiseConsignment     Operation = "raise_consignment"
	OpRecordArrival        Operation = "record_arrival"
	OpListPendingShipments Operation = "list_pending_shipments"

	OpGenerateCodes Operation = "generate_registration_codes"
	OpDefineSite    Operation = "define_site"
	OpDeleteSite    Operation = "delete_site"
	OpListSites     Operation = "list_sites"
	OpAssignSite    Operation = "assign_site"
)

// capabilities is the complete authorization matrix. Separation of duties:
// administrators provision and never touch trial records, depot actors never
// touch the participant lifecycle, monitors are read-mostly plus the
// emergency code break.
var capabilities = map[id.Role]map[Operation]struct{}{
	id.RoleInvestigator: set(
		OpEnroll, OpRecordScreenFailure, OpRandomize, OpCompleteTreatment, OpBreakCode,
		OpListParticipants, OpListCodeBroken, OpParticipantHistory,
		OpRecordArrival, OpListPendingShipments,
		OpListSites, OpAssignSite,
	),
	id.RoleMonitor: set(
		OpListParticipants, OpListCodeBroken, OpParticipantHistory, OpBreakCode,
		OpListSites, OpAssignSite,
	),
	id.RoleDepot: set(
		OpRaiseConsignment, OpRecordArrival, OpListPendingShipments,
		OpListSites,
	),
	id.RoleAdministrator: set(
		OpGenerateCodes, OpDefineSite, OpDeleteSite, OpListSites,
	),
}

func set(ops ...Operation) map[Operation]struct{} {
	m := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		m[op] = struct{}{}
	}
	return m
}

// Permitted reports whether the role's capability set includes the operation.
func Permitted(role id.Role, op Operation) bool {
	_, ok := capabilities[role][op]
	return ok
}

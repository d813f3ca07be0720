package httpapi

import (
	"context"

	"tminus/internal/actor"
)

// operationFunc decodes a request body, dispatches to one actor method, and
// returns its result (nil for operations with no meaningful response body).
type operationFunc func(ctx context.Context, a *actor.Actor, body []byte) (interface{}, error)

// operations is the path-shaped operation table spec §6 names: every
// request reaching "/users/{user_id}/{operation}" looks itself up here by
// the literal operation segment.
var operations = map[string]operationFunc{
	"applyProviderDelta":  opApplyProviderDelta,
	"getCanonicalEvent":   opGetCanonicalEvent,
	"listCanonicalEvents": opListCanonicalEvents,
	"getAccountEvents":    opGetAccountEvents,
	"queryJournal":        opQueryJournal,
	"getEventConflicts":   opGetEventConflicts,
	"getEventBriefing":    opGetEventBriefing,

	"addConstraint":    opAddConstraint,
	"updateConstraint": opUpdateConstraint,
	"deleteConstraint": opDeleteConstraint,
	"listConstraints":  opListConstraints,
	"getConstraint":    opGetConstraint,

	"computeAvailability":          opComputeAvailability,
	"getDeepWork":                  opGetDeepWork,
	"getContextSwitches":           opGetContextSwitches,
	"getCognitiveLoad":             opGetCognitiveLoad,
	"getRiskScores":                opGetRiskScores,
	"getProbabilisticAvailability": opGetProbabilisticAvailability,

	"createRelationship":              opCreateRelationship,
	"updateRelationship":              opUpdateRelationship,
	"getRelationship":                 opGetRelationship,
	"deleteRelationship":              opDeleteRelationship,
	"listRelationships":               opListRelationships,
	"listRelationshipsWithReputation": opListRelationshipsWithReputation,
	"updateInteractions":              opUpdateInteractions,
	"markOutcome":                     opMarkOutcome,
	"listOutcomes":                    opListOutcomes,
	"getDriftReport":                  opGetDriftReport,
	"storeDriftAlerts":                opStoreDriftAlerts,
	"getDriftAlerts":                  opGetDriftAlerts,
	"getReconnectionSuggestions":      opGetReconnectionSuggestions,
	"getReputation":                   opGetReputation,
	"createMilestone":                 opCreateMilestone,
	"listMilestones":                  opListMilestones,
	"deleteMilestone":                 opDeleteMilestone,

	"createCommitment":       opCreateCommitment,
	"getCommitment":          opGetCommitment,
	"listCommitments":        opListCommitments,
	"deleteCommitment":       opDeleteCommitment,
	"getCommitmentStatus":    opGetCommitmentStatus,
	"createAllocation":       opCreateAllocation,
	"executeUpgrade":         opExecuteUpgrade,
	"deleteAllEvents":        opDeleteAllEvents,
	"deleteAllMirrors":       opDeleteAllMirrors,
	"deleteJournal":          opDeleteJournal,
	"deleteRelationshipData": opDeleteRelationshipData,
	"getSyncHealth":          opGetSyncHealth,
	"runDeletionWorkflow":    opRunDeletionWorkflow,
}

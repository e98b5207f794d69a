// Package domain provides the qualification funnel rules for the leads
// bounded context. The stage machine here is pure: it computes transitions
// and side effects but performs no I/O.
package domain

// Stage is the lead's current funnel position. The set is closed; the
// database enforces the same enumeration with a CHECK constraint.
type Stage string

const (
	StageNew                  Stage = "new"
	StageGatePayslips         Stage = "gate_question_payslips"
	StageGateDeposit          Stage = "gate_question_deposit"
	StageGateMoveDate         Stage = "gate_question_move_date"
	StageCollectingProfile    Stage = "collecting_profile"
	StageQualified            Stage = "qualified"
	StageSchedulingInProgress Stage = "scheduling_in_progress"
	StageTourScheduled        Stage = "tour_scheduled"

	// Absorbing side-states.
	StageGateFailed Stage = "gate_failed"
	StageNoFit      Stage = "no_fit"
	StageFutureFit  Stage = "future_fit"
)

var knownStages = map[Stage]struct{}{
	StageNew:                  {},
	StageGatePayslips:         {},
	StageGateDeposit:          {},
	StageGateMoveDate:         {},
	StageCollectingProfile:    {},
	StageQualified:            {},
	StageSchedulingInProgress: {},
	StageTourScheduled:        {},
	StageGateFailed:           {},
	StageNoFit:                {},
	StageFutureFit:            {},
}

// terminalStages are stages where no further funnel event is accepted.
// Downstream re-engagement is a separate flow.
var terminalStages = map[Stage]struct{}{
	StageGateFailed:    {},
	StageNoFit:         {},
	StageFutureFit:     {},
	StageTourScheduled: {},
}

// IsKnownStage reports whether stage is a member of the closed enumeration.
func IsKnownStage(stage Stage) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminal reports whether the stage accepts no further events.
func IsTerminal(stage Stage) bool {
	_, ok := terminalStages[stage]
	return ok
}

// Gate identifies one of the three qualifying questions.
type Gate string

const (
	GatePayslips Gate = "payslips"
	GateDeposit  Gate = "deposit"
	GateMoveDate Gate = "move_date"
)

// IsKnownGate reports whether g is one of the qualifying gates.
func IsKnownGate(g Gate) bool {
	return gateStage(g) != ""
}

// gateStage maps a gate to the stage in which it is the active question.
func gateStage(g Gate) Stage {
	switch g {
	case GatePayslips:
		return StageGatePayslips
	case GateDeposit:
		return StageGateDeposit
	case GateMoveDate:
		return StageGateMoveDate
	default:
		return ""
	}
}

// nextGate returns the gate following g in funnel order, or "" after the last.
func nextGate(g Gate) Gate {
	switch g {
	case GatePayslips:
		return GateDeposit
	case GateDeposit:
		return GateMoveDate
	default:
		return ""
	}
}

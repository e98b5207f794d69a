package domain

import "fmt"

// InvalidTransitionError reports an event that is not legal in the lead's
// current stage: out-of-order gate answers, duplicated inbound events, or
// any event against a terminal stage. The state is left untouched.
type InvalidTransitionError struct {
	Stage Stage
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid in stage %q", e.Event, e.Stage)
}

func invalid(state LeadState, ev Event) (LeadState, []Effect, error) {
	return state, nil, &InvalidTransitionError{Stage: state.Stage, Event: ev.Name()}
}

// Advance applies one event to the lead's state and returns the next state
// plus the side effects the caller must execute. On an illegal event it
// returns the unchanged state and an *InvalidTransitionError.
func Advance(state LeadState, ev Event) (LeadState, []Effect, error) {
	if !IsKnownStage(state.Stage) {
		return state, nil, fmt.Errorf("stage %q is outside the closed enumeration", state.Stage)
	}
	if IsTerminal(state.Stage) {
		return invalid(state, ev)
	}

	switch e := ev.(type) {
	case Contact:
		if state.Stage != StageNew {
			return invalid(state, ev)
		}
		state.Stage = StageGatePayslips
		return state, []Effect{AskGate{Gate: GatePayslips}}, nil

	case GateAnswer:
		return advanceGate(state, e)

	case ProfileAnswer:
		return advanceProfileAnswer(state, e)

	case ProfileSkip:
		if state.Stage != StageCollectingProfile || !IsKnownProfileField(e.Field) {
			return invalid(state, ev)
		}
		state.Profile = state.Profile.markSkipped(e.Field)
		return profileProgress(state)

	case MatchResolved:
		return advanceMatchResolved(state, e)

	case UnitSelected:
		if state.Stage != StageQualified {
			return invalid(state, ev)
		}
		state.Stage = StageSchedulingInProgress
		return state, []Effect{BookTour{UnitID: e.UnitID, Slot: e.Slot}}, nil

	case BookingConfirmed:
		if state.Stage != StageSchedulingInProgress {
			return invalid(state, ev)
		}
		state.Stage = StageTourScheduled
		return state, []Effect{NotifyTourBooked{}}, nil

	case BookingFailed:
		if state.Stage != StageSchedulingInProgress {
			return invalid(state, ev)
		}
		state.Stage = StageQualified
		return state, nil, nil

	default:
		return invalid(state, ev)
	}
}

// advanceGate handles an answer to a gate question. The answer must target
// the gate that is currently active; anything else is rejected so
// out-of-order or duplicated inbound events cannot corrupt the funnel.
func advanceGate(state LeadState, e GateAnswer) (LeadState, []Effect, error) {
	active := gateStage(e.Gate)
	if active == "" || state.Stage != active {
		return invalid(state, e)
	}

	if !e.Positive {
		state.Stage = StageGateFailed
		return state, []Effect{NotifyGateFailed{}}, nil
	}

	// Record the passing answer. Gate fields move from null to answered
	// exactly once within the gate phase.
	switch e.Gate {
	case GatePayslips:
		yes := true
		state.HasPayslips = &yes
	case GateDeposit:
		yes := true
		state.CanPayDeposit = &yes
	case GateMoveDate:
		if e.MoveInDate == nil {
			return invalid(state, e)
		}
		d := *e.MoveInDate
		state.MoveInDate = &d
	}

	if next := nextGate(e.Gate); next != "" {
		state.Stage = gateStage(next)
		return state, []Effect{AskGate{Gate: next}}, nil
	}

	// All three gates passed.
	state.Stage = StageCollectingProfile
	return profileProgress(state)
}

func advanceProfileAnswer(state LeadState, e ProfileAnswer) (LeadState, []Effect, error) {
	if state.Stage != StageCollectingProfile {
		return invalid(state, e)
	}

	p := state.Profile
	switch e.Field {
	case FieldRooms:
		if e.Int == nil {
			return invalid(state, e)
		}
		p.Rooms = intCopy(e.Int)
	case FieldBudget:
		if e.Int == nil {
			return invalid(state, e)
		}
		p.Budget = intCopy(e.Int)
	case FieldParking:
		if e.Bool == nil {
			return invalid(state, e)
		}
		p.NeedsParking = boolCopy(e.Bool)
	case FieldArea:
		if e.Text == nil {
			return invalid(state, e)
		}
		p.PreferredArea = textCopy(e.Text)
	case FieldFloorMin:
		if e.Int == nil {
			return invalid(state, e)
		}
		p.FloorMin = intCopy(e.Int)
	case FieldFloorMax:
		if e.Int == nil {
			return invalid(state, e)
		}
		p.FloorMax = intCopy(e.Int)
	case FieldFurnished:
		if e.Bool == nil {
			return invalid(state, e)
		}
		p.NeedsFurnished = boolCopy(e.Bool)
	case FieldPetOwner:
		if e.Bool == nil {
			return invalid(state, e)
		}
		p.PetOwner = boolCopy(e.Bool)
	default:
		return invalid(state, e)
	}

	state.Profile = p
	return profileProgress(state)
}

// profileProgress moves a collecting_profile lead forward: ask the next
// missing field, or qualify and trigger matching once complete.
func profileProgress(state LeadState) (LeadState, []Effect, error) {
	if missing := state.Profile.NextMissing(); missing != "" {
		return state, []Effect{AskProfile{Field: missing}}, nil
	}
	state.Stage = StageQualified
	return state, []Effect{RunMatching{}}, nil
}

func advanceMatchResolved(state LeadState, e MatchResolved) (LeadState, []Effect, error) {
	if state.Stage != StageQualified {
		return invalid(state, e)
	}
	switch e.Routing {
	case RoutingMatched:
		// Units were presented; the lead stays qualified until a selection.
		return state, nil, nil
	case RoutingNoFit:
		state.Stage = StageNoFit
		return state, []Effect{NotifyNoFit{}}, nil
	case RoutingFutureFit:
		state.Stage = StageFutureFit
		return state, []Effect{NotifyFutureFit{}}, nil
	default:
		return invalid(state, e)
	}
}

func intCopy(v *int) *int {
	c := *v
	return &c
}

func boolCopy(v *bool) *bool {
	c := *v
	return &c
}

func textCopy(v *string) *string {
	c := *v
	return &c
}

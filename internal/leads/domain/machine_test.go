package domain

import (
	"errors"
	"testing"
	"time"
)

func intp(v int) *int              { return &v }
func boolp(v bool) *bool           { return &v }
func strp(v string) *string        { return &v }
func datep(v time.Time) *time.Time { return &v }

var moveIn = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

// passAllGates drives a fresh lead through contact and the three gates.
func passAllGates(t *testing.T) LeadState {
	t.Helper()

	state := LeadState{Stage: StageNew}
	steps := []Event{
		Contact{},
		GateAnswer{Gate: GatePayslips, Positive: true},
		GateAnswer{Gate: GateDeposit, Positive: true},
		GateAnswer{Gate: GateMoveDate, Positive: true, MoveInDate: datep(moveIn)},
	}
	for _, ev := range steps {
		next, _, err := Advance(state, ev)
		if err != nil {
			t.Fatalf("Advance(%s) in %s: %v", ev.Name(), state.Stage, err)
		}
		state = next
	}
	return state
}

// completeProfile answers or skips every preference field.
func completeProfile(t *testing.T, state LeadState) LeadState {
	t.Helper()

	steps := []Event{
		ProfileAnswer{Field: FieldRooms, Int: intp(2)},
		ProfileAnswer{Field: FieldBudget, Int: intp(6500)},
		ProfileAnswer{Field: FieldParking, Bool: boolp(false)},
		ProfileAnswer{Field: FieldArea, Text: strp("florentin")},
		ProfileSkip{Field: FieldFloorMin},
		ProfileSkip{Field: FieldFloorMax},
		ProfileAnswer{Field: FieldFurnished, Bool: boolp(false)},
		ProfileAnswer{Field: FieldPetOwner, Bool: boolp(false)},
	}
	for _, ev := range steps {
		next, _, err := Advance(state, ev)
		if err != nil {
			t.Fatalf("Advance(%s) in %s: %v", ev.Name(), state.Stage, err)
		}
		state = next
		if !IsKnownStage(state.Stage) {
			t.Fatalf("stage %q left the closed enumeration", state.Stage)
		}
	}
	return state
}

func TestAdvanceHappyPath(t *testing.T) {
	state := passAllGates(t)
	if state.Stage != StageCollectingProfile {
		t.Fatalf("after gates: stage = %s, want %s", state.Stage, StageCollectingProfile)
	}
	if state.HasPayslips == nil || !*state.HasPayslips {
		t.Errorf("has_payslips not recorded")
	}
	if state.CanPayDeposit == nil || !*state.CanPayDeposit {
		t.Errorf("can_pay_deposit not recorded")
	}
	if state.MoveInDate == nil || !state.MoveInDate.Equal(moveIn) {
		t.Errorf("move_in_date not recorded")
	}

	state = completeProfile(t, state)
	if state.Stage != StageQualified {
		t.Fatalf("after profile: stage = %s, want %s", state.Stage, StageQualified)
	}

	state, effects, err := Advance(state, UnitSelected{Slot: moveIn})
	if err != nil {
		t.Fatalf("UnitSelected: %v", err)
	}
	if state.Stage != StageSchedulingInProgress {
		t.Fatalf("after selection: stage = %s", state.Stage)
	}
	if len(effects) != 1 {
		t.Fatalf("UnitSelected effects = %d, want 1 BookTour", len(effects))
	}
	if _, ok := effects[0].(BookTour); !ok {
		t.Fatalf("effect = %T, want BookTour", effects[0])
	}

	state, _, err = Advance(state, BookingConfirmed{})
	if err != nil {
		t.Fatalf("BookingConfirmed: %v", err)
	}
	if state.Stage != StageTourScheduled {
		t.Fatalf("final stage = %s, want %s", state.Stage, StageTourScheduled)
	}
}

func TestAdvanceQualificationTriggersMatching(t *testing.T) {
	state := completeProfile(t, passAllGates(t))

	// The transition into qualified must prescribe a matching run.
	// Re-derive the final step to inspect its effects.
	prev := passAllGates(t)
	steps := []Event{
		ProfileAnswer{Field: FieldRooms, Int: intp(2)},
		ProfileAnswer{Field: FieldBudget, Int: intp(6500)},
		ProfileAnswer{Field: FieldParking, Bool: boolp(false)},
		ProfileAnswer{Field: FieldArea, Text: strp("florentin")},
		ProfileSkip{Field: FieldFloorMin},
		ProfileSkip{Field: FieldFloorMax},
		ProfileAnswer{Field: FieldFurnished, Bool: boolp(false)},
	}
	for _, ev := range steps {
		next, _, err := Advance(prev, ev)
		if err != nil {
			t.Fatalf("Advance(%s): %v", ev.Name(), err)
		}
		prev = next
	}
	_, effects, err := Advance(prev, ProfileAnswer{Field: FieldPetOwner, Bool: boolp(false)})
	if err != nil {
		t.Fatalf("final profile answer: %v", err)
	}
	found := false
	for _, eff := range effects {
		if _, ok := eff.(RunMatching); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("qualification did not prescribe RunMatching")
	}
	if state.Stage != StageQualified {
		t.Errorf("stage = %s, want %s", state.Stage, StageQualified)
	}
}

func TestAdvanceNegativeGateAnswerFailsGate(t *testing.T) {
	cases := []struct {
		name  string
		setup []Event
		gate  Gate
	}{
		{"payslips", []Event{Contact{}}, GatePayslips},
		{"deposit", []Event{Contact{}, GateAnswer{Gate: GatePayslips, Positive: true}}, GateDeposit},
		{"move_date", []Event{
			Contact{},
			GateAnswer{Gate: GatePayslips, Positive: true},
			GateAnswer{Gate: GateDeposit, Positive: true},
		}, GateMoveDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := LeadState{Stage: StageNew}
			for _, ev := range tc.setup {
				next, _, err := Advance(state, ev)
				if err != nil {
					t.Fatalf("setup Advance(%s): %v", ev.Name(), err)
				}
				state = next
			}

			state, effects, err := Advance(state, GateAnswer{Gate: tc.gate, Positive: false})
			if err != nil {
				t.Fatalf("negative answer: %v", err)
			}
			if state.Stage != StageGateFailed {
				t.Fatalf("stage = %s, want %s", state.Stage, StageGateFailed)
			}
			// No further gate question may be scheduled.
			for _, eff := range effects {
				if _, ok := eff.(AskGate); ok {
					t.Fatalf("gate question scheduled after disqualification")
				}
			}
		})
	}
}

func TestAdvanceRejectsOutOfOrderGateAnswer(t *testing.T) {
	state := LeadState{Stage: StageNew}
	state, _, err := Advance(state, Contact{})
	if err != nil {
		t.Fatalf("Contact: %v", err)
	}

	// Deposit gate is not active yet.
	_, _, err = Advance(state, GateAnswer{Gate: GateDeposit, Positive: true})
	var invalidErr *InvalidTransitionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
	if invalidErr.Stage != StageGatePayslips {
		t.Errorf("error stage = %s, want %s", invalidErr.Stage, StageGatePayslips)
	}
}

func TestAdvanceRejectsDuplicatedGateAnswer(t *testing.T) {
	state := LeadState{Stage: StageNew}
	for _, ev := range []Event{Contact{}, GateAnswer{Gate: GatePayslips, Positive: true}} {
		next, _, err := Advance(state, ev)
		if err != nil {
			t.Fatalf("Advance(%s): %v", ev.Name(), err)
		}
		state = next
	}

	// Replaying the already-answered payslips gate must not move the funnel.
	_, _, err := Advance(state, GateAnswer{Gate: GatePayslips, Positive: true})
	var invalidErr *InvalidTransitionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
}

func TestAdvanceRejectsEventsInTerminalStages(t *testing.T) {
	for _, stage := range []Stage{StageGateFailed, StageNoFit, StageFutureFit, StageTourScheduled} {
		t.Run(string(stage), func(t *testing.T) {
			state := LeadState{Stage: stage}
			next, _, err := Advance(state, Contact{})
			var invalidErr *InvalidTransitionError
			if !errors.As(err, &invalidErr) {
				t.Fatalf("err = %v, want *InvalidTransitionError", err)
			}
			if next.Stage != stage {
				t.Errorf("terminal stage mutated: %s -> %s", stage, next.Stage)
			}
		})
	}
}

func TestAdvanceMatchRouting(t *testing.T) {
	cases := []struct {
		routing MatchRouting
		want    Stage
	}{
		{RoutingMatched, StageQualified},
		{RoutingNoFit, StageNoFit},
		{RoutingFutureFit, StageFutureFit},
	}
	for _, tc := range cases {
		t.Run(string(tc.routing), func(t *testing.T) {
			state := completeProfile(t, passAllGates(t))
			next, _, err := Advance(state, MatchResolved{Routing: tc.routing})
			if err != nil {
				t.Fatalf("MatchResolved(%s): %v", tc.routing, err)
			}
			if next.Stage != tc.want {
				t.Errorf("stage = %s, want %s", next.Stage, tc.want)
			}
		})
	}
}

func TestAdvanceBookingFailedReturnsToQualified(t *testing.T) {
	state := completeProfile(t, passAllGates(t))
	state, _, err := Advance(state, UnitSelected{Slot: moveIn})
	if err != nil {
		t.Fatalf("UnitSelected: %v", err)
	}
	state, _, err = Advance(state, BookingFailed{})
	if err != nil {
		t.Fatalf("BookingFailed: %v", err)
	}
	if state.Stage != StageQualified {
		t.Errorf("stage = %s, want %s", state.Stage, StageQualified)
	}
}

func TestAdvanceMoveDateGateRequiresDate(t *testing.T) {
	state := LeadState{Stage: StageGateMoveDate}
	_, _, err := Advance(state, GateAnswer{Gate: GateMoveDate, Positive: true})
	var invalidErr *InvalidTransitionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
}

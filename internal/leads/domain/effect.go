package domain

import (
	"time"

	"github.com/google/uuid"
)

// Effect is a side effect prescribed by an accepted transition. The service
// layer executes effects; the machine only declares them.
type Effect interface {
	effectName() string
}

// AskGate asks the given gate question.
type AskGate struct {
	Gate Gate
}

func (AskGate) effectName() string { return "ask_gate" }

// AskProfile asks for the given preference field.
type AskProfile struct {
	Field ProfileField
}

func (AskProfile) effectName() string { return "ask_profile" }

// NotifyGateFailed tells the lead they do not pass the entry requirements.
type NotifyGateFailed struct{}

func (NotifyGateFailed) effectName() string { return "notify_gate_failed" }

// RunMatching triggers a matching run against the lead's completed profile.
type RunMatching struct{}

func (RunMatching) effectName() string { return "run_matching" }

// NotifyNoFit tells the lead nothing in the catalog fits their budget.
type NotifyNoFit struct{}

func (NotifyNoFit) effectName() string { return "notify_no_fit" }

// NotifyFutureFit tells the lead units exist but become available later
// than their desired move-in date.
type NotifyFutureFit struct{}

func (NotifyFutureFit) effectName() string { return "notify_future_fit" }

// BookTour requests a tour booking for the selected unit and slot.
type BookTour struct {
	UnitID uuid.UUID
	Slot   time.Time
}

func (BookTour) effectName() string { return "book_tour" }

// NotifyTourBooked confirms the booked tour to the lead.
type NotifyTourBooked struct{}

func (NotifyTourBooked) effectName() string { return "notify_tour_booked" }

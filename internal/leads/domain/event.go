package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a structured funnel event for one lead. Inbound natural-language
// replies are classified into these shapes before they reach the core.
// The set is sealed: only types in this package implement it.
type Event interface {
	// Name identifies the event type in logs and errors.
	Name() string
	sealed()
}

// Contact is the first inbound message from a new lead.
type Contact struct{}

func (Contact) Name() string { return "contact" }
func (Contact) sealed()      {}

// GateAnswer answers the currently active gate question. A negative answer
// disqualifies unconditionally. For the move-date gate, MoveInDate carries
// the parsed desired date.
type GateAnswer struct {
	Gate       Gate
	Positive   bool
	MoveInDate *time.Time
}

func (GateAnswer) Name() string { return "gate_answer" }
func (GateAnswer) sealed()      {}

// ProfileAnswer supplies one preference field. Exactly one of the value
// fields must be set, matching the field's type.
type ProfileAnswer struct {
	Field ProfileField
	Int   *int
	Bool  *bool
	Text  *string
}

func (ProfileAnswer) Name() string { return "profile_answer" }
func (ProfileAnswer) sealed()      {}

// ProfileSkip marks one preference field as explicitly skipped.
type ProfileSkip struct {
	Field ProfileField
}

func (ProfileSkip) Name() string { return "profile_skip" }
func (ProfileSkip) sealed()      {}

// MatchRouting is the routing outcome of a matching run.
type MatchRouting string

const (
	RoutingMatched   MatchRouting = "matched"
	RoutingNoFit     MatchRouting = "no_fit"
	RoutingFutureFit MatchRouting = "future_fit"
)

// MatchResolved applies the matcher's routing outcome. It is raised
// internally by the service after running the matcher, never by the
// inbound channel.
type MatchResolved struct {
	Routing MatchRouting
}

func (MatchResolved) Name() string { return "match_resolved" }
func (MatchResolved) sealed()      {}

// UnitSelected is the lead choosing a presented unit and tour slot.
type UnitSelected struct {
	UnitID uuid.UUID
	Slot   time.Time
}

func (UnitSelected) Name() string { return "unit_selected" }
func (UnitSelected) sealed()      {}

// BookingConfirmed records that the external calendar confirmed the tour.
type BookingConfirmed struct {
	AppointmentID uuid.UUID
}

func (BookingConfirmed) Name() string { return "booking_confirmed" }
func (BookingConfirmed) sealed()      {}

// BookingFailed records that the booking attempt failed; the lead returns
// to qualified and may pick another slot.
type BookingFailed struct{}

func (BookingFailed) Name() string { return "booking_failed" }
func (BookingFailed) sealed()      {}

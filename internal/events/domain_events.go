package events

import (
	"time"

	"github.com/google/uuid"
)

// LeadStageChanged fires on every accepted funnel transition.
type LeadStageChanged struct {
	BaseEvent
	LeadID uuid.UUID
	Phone  string
	From   string
	To     string
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// AppointmentScheduled fires once a tour booking is confirmed by the
// external calendar. FollowupScheduler consumes it to create reminders.
type AppointmentScheduled struct {
	BaseEvent
	AppointmentID uuid.UUID
	LeadID        uuid.UUID
	ScheduledTime time.Time
	Duration      time.Duration
}

func (e AppointmentScheduled) EventName() string { return "appointments.scheduled" }

// AppointmentCanceled fires when a tour is canceled, locally or by the
// external calendar. Pending reminders for it must not survive.
type AppointmentCanceled struct {
	BaseEvent
	AppointmentID uuid.UUID
	LeadID        uuid.UUID
}

func (e AppointmentCanceled) EventName() string { return "appointments.canceled" }

// AppointmentCompleted fires when the external calendar confirms the tour
// took place.
type AppointmentCompleted struct {
	BaseEvent
	AppointmentID uuid.UUID
	LeadID        uuid.UUID
	EndTime       time.Time
}

func (e AppointmentCompleted) EventName() string { return "appointments.completed" }

// AppointmentNoShow fires when the external calendar reports the lead did
// not show up.
type AppointmentNoShow struct {
	BaseEvent
	AppointmentID uuid.UUID
	LeadID        uuid.UUID
}

func (e AppointmentNoShow) EventName() string { return "appointments.no_show" }

// Package adapters wires concrete module services to the narrow
// interfaces other modules consume. All cross-module coupling lives here
// and in cmd, never inside the modules themselves.
package adapters

import (
	"context"

	appointmentsservice "leasingbot_backend/internal/appointments/service"
	"leasingbot_backend/internal/calendar"
	catalogservice "leasingbot_backend/internal/catalog/service"
	"leasingbot_backend/internal/leads/ports"
	"leasingbot_backend/internal/matching"

	"github.com/google/uuid"
)

// UnitCatalog adapts the catalog service to the funnel's read port.
type UnitCatalog struct {
	Catalog *catalogservice.Service
}

func (a UnitCatalog) AvailableUnitsSnapshot(ctx context.Context) ([]matching.Unit, error) {
	return a.Catalog.AvailableUnitsSnapshot(ctx)
}

func (a UnitCatalog) UnitSnapshot(ctx context.Context, unitID uuid.UUID) (matching.Unit, error) {
	return a.Catalog.UnitSnapshot(ctx, unitID)
}

// TourBooker adapts the appointments service to the funnel's booking
// port.
type TourBooker struct {
	Appointments *appointmentsservice.Service
}

func (a TourBooker) Propose(ctx context.Context, params ports.BookTourParams) (ports.TourBooking, error) {
	appt, err := a.Appointments.Propose(ctx, appointmentsservice.ProposeParams{
		LeadID:    params.LeadID,
		LeadPhone: params.LeadPhone,
		LeadName:  params.LeadName,
		UnitID:    params.UnitID,
		Slot:      params.Slot,
	})
	if err != nil {
		return ports.TourBooking{}, err
	}
	return ports.TourBooking{
		AppointmentID: appt.ID,
		ScheduledTime: appt.ScheduledTime,
	}, nil
}

// CalendarAdapter presents the REST calendar client as the appointments
// module's calendar collaborator.
type CalendarAdapter struct {
	Client *calendar.Client
}

func (a CalendarAdapter) CreateEvent(ctx context.Context, event appointmentsservice.CalendarEvent) (string, error) {
	return a.Client.CreateEvent(ctx, calendar.Event{
		Title:         event.Title,
		AttendeeName:  event.AttendeeName,
		AttendeePhone: event.AttendeePhone,
		StartTime:     event.StartTime,
		Duration:      event.Duration,
	})
}

func (a CalendarAdapter) CancelEvent(ctx context.Context, externalEventID string) error {
	return a.Client.CancelEvent(ctx, externalEventID)
}

var _ ports.UnitCatalog = UnitCatalog{}
var _ ports.TourBooker = TourBooker{}
var _ appointmentsservice.Calendar = CalendarAdapter{}

// Package transport defines the HTTP shapes for the appointments module.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/appointments/repository"
)

// AppointmentResponse is a tour appointment as exposed over HTTP.
type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	LeadID          uuid.UUID  `json:"leadId"`
	UnitID          *uuid.UUID `json:"unitId,omitempty"`
	ExternalEventID *string    `json:"externalEventId,omitempty"`
	ScheduledTime   time.Time  `json:"scheduledTime"`
	DurationMinutes int        `json:"durationMinutes"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CalendarCallbackRequest is the payload the external calendar posts when
// an event changes state on its side.
type CalendarCallbackRequest struct {
	ExternalEventID string     `json:"externalEventId" validate:"required"`
	Status          string     `json:"status" validate:"required,oneof=completed no_show canceled"`
	EndTime         *time.Time `json:"endTime,omitempty"`
}

// ToAppointmentResponse maps the persistence model to the wire shape.
func ToAppointmentResponse(a repository.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		LeadID:          a.LeadID,
		UnitID:          a.UnitID,
		ExternalEventID: a.ExternalEventID,
		ScheduledTime:   a.ScheduledTime,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

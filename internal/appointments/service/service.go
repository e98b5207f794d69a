// Package service owns the tour appointment lifecycle: proposing against
// the external calendar, cancellation, and applying calendar callbacks.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/appointments/repository"
	"leasingbot_backend/internal/events"
	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/logger"
)

// CalendarEvent is what the service needs to create on the external
// calendar.
type CalendarEvent struct {
	Title         string
	AttendeeName  string
	AttendeePhone string
	StartTime     time.Time
	Duration      time.Duration
}

// Calendar is the external calendar as the appointments module sees it.
type Calendar interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (externalEventID string, err error)
	CancelEvent(ctx context.Context, externalEventID string) error
}

const defaultDurationMinutes = 30

// Store is the persistence surface the service needs, implemented by
// repository.Repository.
type Store interface {
	CreatePending(ctx context.Context, params repository.CreatePendingParams) (repository.Appointment, error)
	Promote(ctx context.Context, id uuid.UUID, externalEventID string) (repository.Appointment, error)
	DeletePending(ctx context.Context, id uuid.UUID) error
	CancelActiveForLead(ctx context.Context, leadID uuid.UUID) (*repository.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Appointment, error)
	GetByExternalEventID(ctx context.Context, externalEventID string) (repository.Appointment, error)
	GetActiveByLead(ctx context.Context, leadID uuid.UUID) (repository.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, from []repository.Status, to repository.Status) (repository.Appointment, error)
}

type Service struct {
	repo     Store
	calendar Calendar
	bus      events.Bus
	log      *logger.Logger
	timeout  time.Duration
}

func New(repo Store, calendar Calendar, bus events.Bus, log *logger.Logger, calendarTimeout time.Duration) *Service {
	if calendarTimeout <= 0 {
		calendarTimeout = 10 * time.Second
	}
	return &Service{
		repo:     repo,
		calendar: calendar,
		bus:      bus,
		log:      log,
		timeout:  calendarTimeout,
	}
}

// ProposeParams carries a booking request for one lead.
type ProposeParams struct {
	LeadID    uuid.UUID
	LeadPhone string
	LeadName  string
	UnitID    uuid.UUID
	Slot      time.Time
}

// Propose books a tour. Any prior active appointment for the lead is
// canceled first, then a pending row reserves the slot locally before the
// calendar round trip. Calendar failure rolls the row back and surfaces as
// an unavailable error so the funnel can offer another slot.
func (s *Service) Propose(ctx context.Context, params ProposeParams) (repository.Appointment, error) {
	if err := s.cancelExisting(ctx, params.LeadID); err != nil {
		return repository.Appointment{}, err
	}

	appt, err := s.repo.CreatePending(ctx, repository.CreatePendingParams{
		LeadID:          params.LeadID,
		UnitID:          params.UnitID,
		ScheduledTime:   params.Slot,
		DurationMinutes: defaultDurationMinutes,
	})
	if err != nil {
		return repository.Appointment{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	externalID, err := s.calendar.CreateEvent(callCtx, CalendarEvent{
		Title:         "Apartment tour: " + params.LeadName,
		AttendeeName:  params.LeadName,
		AttendeePhone: params.LeadPhone,
		StartTime:     params.Slot,
		Duration:      time.Duration(appt.DurationMinutes) * time.Minute,
	})
	if err != nil {
		if delErr := s.repo.DeletePending(ctx, appt.ID); delErr != nil {
			s.log.DatabaseError("appointments.delete_pending", delErr)
		}
		return repository.Appointment{}, apperr.Wrap(apperr.KindUnavailable, "calendar booking failed", err)
	}

	scheduled, err := s.repo.Promote(ctx, appt.ID, externalID)
	if err != nil {
		return repository.Appointment{}, err
	}

	if err := s.bus.PublishSync(ctx, events.AppointmentScheduled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: scheduled.ID,
		LeadID:        scheduled.LeadID,
		ScheduledTime: scheduled.ScheduledTime,
		Duration:      time.Duration(scheduled.DurationMinutes) * time.Minute,
	}); err != nil {
		s.log.Warn("appointment scheduled handlers failed", "appointment_id", scheduled.ID.String(), "error", err)
	}
	return scheduled, nil
}

// cancelExisting clears a prior active appointment so the unique index
// does not reject the new proposal. The external event cancel is best
// effort; a stale calendar entry is preferable to a stuck lead.
func (s *Service) cancelExisting(ctx context.Context, leadID uuid.UUID) error {
	prior, err := s.repo.CancelActiveForLead(ctx, leadID)
	if err != nil || prior == nil {
		return err
	}

	if prior.ExternalEventID != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.calendar.CancelEvent(callCtx, *prior.ExternalEventID); err != nil {
			s.log.Warn("calendar cancel failed", "appointment_id", prior.ID.String(), "error", err)
		}
	}

	return s.bus.PublishSync(ctx, events.AppointmentCanceled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: prior.ID,
		LeadID:        prior.LeadID,
	})
}

// Cancel cancels an appointment. Canceling an already-canceled
// appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch appt.Status {
	case repository.StatusCanceled:
		return nil
	case repository.StatusCompleted, repository.StatusNoShow:
		return apperr.Conflict("appointment already concluded")
	}

	canceled, err := s.repo.Transition(ctx, id, []repository.Status{repository.StatusPending, repository.StatusScheduled}, repository.StatusCanceled)
	if err != nil {
		return err
	}

	if canceled.ExternalEventID != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.calendar.CancelEvent(callCtx, *canceled.ExternalEventID); err != nil {
			s.log.Warn("calendar cancel failed", "appointment_id", canceled.ID.String(), "error", err)
		}
	}

	return s.bus.PublishSync(ctx, events.AppointmentCanceled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: canceled.ID,
		LeadID:        canceled.LeadID,
	})
}

// HandleCompleted applies a calendar callback reporting the tour took
// place.
func (s *Service) HandleCompleted(ctx context.Context, externalEventID string, endTime *time.Time) error {
	appt, err := s.repo.GetByExternalEventID(ctx, externalEventID)
	if err != nil {
		return err
	}
	if appt.Status == repository.StatusCompleted {
		return nil
	}

	completed, err := s.repo.Transition(ctx, appt.ID, []repository.Status{repository.StatusScheduled}, repository.StatusCompleted)
	if err != nil {
		return err
	}

	end := completed.ScheduledTime.Add(time.Duration(completed.DurationMinutes) * time.Minute)
	if endTime != nil {
		end = *endTime
	}
	return s.bus.PublishSync(ctx, events.AppointmentCompleted{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: completed.ID,
		LeadID:        completed.LeadID,
		EndTime:       end,
	})
}

// HandleNoShow applies a calendar callback reporting the lead did not
// show up.
func (s *Service) HandleNoShow(ctx context.Context, externalEventID string) error {
	appt, err := s.repo.GetByExternalEventID(ctx, externalEventID)
	if err != nil {
		return err
	}
	if appt.Status == repository.StatusNoShow {
		return nil
	}

	noShow, err := s.repo.Transition(ctx, appt.ID, []repository.Status{repository.StatusScheduled}, repository.StatusNoShow)
	if err != nil {
		return err
	}
	return s.bus.PublishSync(ctx, events.AppointmentNoShow{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: noShow.ID,
		LeadID:        noShow.LeadID,
	})
}

// HandleExternalCancel applies a calendar-side cancellation. Idempotent.
func (s *Service) HandleExternalCancel(ctx context.Context, externalEventID string) error {
	appt, err := s.repo.GetByExternalEventID(ctx, externalEventID)
	if err != nil {
		return err
	}
	if appt.Status == repository.StatusCanceled {
		return nil
	}

	canceled, err := s.repo.Transition(ctx, appt.ID, []repository.Status{repository.StatusPending, repository.StatusScheduled}, repository.StatusCanceled)
	if err != nil {
		return err
	}
	return s.bus.PublishSync(ctx, events.AppointmentCanceled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: canceled.ID,
		LeadID:        canceled.LeadID,
	})
}

// Get returns one appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ActiveForLead returns the lead's current pending or scheduled
// appointment.
func (s *Service) ActiveForLead(ctx context.Context, leadID uuid.UUID) (repository.Appointment, error) {
	return s.repo.GetActiveByLead(ctx, leadID)
}

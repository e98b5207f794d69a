// Package service schedules and cancels followup tasks. Reminder times
// are computed in the configured local timezone; delivery belongs to the
// dispatcher, not here.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/platform/logger"
)

const (
	eveningMinute = 0
	// Post-tour check-in goes out a fixed delay after the tour ends.
	afterTourDelay = 2 * time.Hour
	// No-show followup goes out shortly after the calendar reports it,
	// not instantly, so a late arrival marked in error can be corrected.
	noShowDelay = 30 * time.Minute
)

// Store is the persistence surface the service needs, implemented by
// repository.Repository.
type Store interface {
	InsertAll(ctx context.Context, tasks []repository.CreateParams) (int, error)
	CancelPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error)
	CancelPendingNudges(ctx context.Context, leadID uuid.UUID) (int, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]repository.Followup, error)
}

type Service struct {
	repo        Store
	log         *logger.Logger
	loc         *time.Location
	eveningHour int
	morningHour int
	now         func() time.Time
}

func New(repo Store, log *logger.Logger, loc *time.Location, eveningHour, morningHour int) *Service {
	return &Service{
		repo:        repo,
		log:         log,
		loc:         loc,
		eveningHour: eveningHour,
		morningHour: morningHour,
		now:         time.Now,
	}
}

// ScheduleForAppointment creates the reminder set for a confirmed tour:
// evening before, morning of, and three hours before. Reminders whose
// send time already passed are skipped rather than fired late. Calling
// this twice for the same appointment changes nothing.
func (s *Service) ScheduleForAppointment(ctx context.Context, leadID, appointmentID uuid.UUID, scheduledTime time.Time) (int, error) {
	now := s.now()
	local := scheduledTime.In(s.loc)
	tasks := make([]repository.CreateParams, 0, 3)

	eveningBefore := time.Date(local.Year(), local.Month(), local.Day(), s.eveningHour, eveningMinute, 0, 0, s.loc).AddDate(0, 0, -1)
	if eveningBefore.After(now) {
		tasks = append(tasks, repository.CreateParams{
			LeadID:        leadID,
			AppointmentID: &appointmentID,
			MessageType:   repository.TypeEveningBefore,
			Content:       renderEveningBefore(scheduledTime, s.loc),
			SendAt:        eveningBefore,
		})
	}

	morningOf := time.Date(local.Year(), local.Month(), local.Day(), s.morningHour, 0, 0, 0, s.loc)
	if morningOf.After(now) && morningOf.Before(scheduledTime) {
		tasks = append(tasks, repository.CreateParams{
			LeadID:        leadID,
			AppointmentID: &appointmentID,
			MessageType:   repository.TypeMorningOf,
			Content:       renderMorningOf(scheduledTime, s.loc),
			SendAt:        morningOf,
		})
	}

	threeHoursBefore := scheduledTime.Add(-3 * time.Hour)
	if threeHoursBefore.After(now) {
		tasks = append(tasks, repository.CreateParams{
			LeadID:        leadID,
			AppointmentID: &appointmentID,
			MessageType:   repository.TypeThreeHours,
			Content:       renderThreeHoursBefore(scheduledTime, s.loc),
			SendAt:        threeHoursBefore,
		})
	}

	created, err := s.repo.InsertAll(ctx, tasks)
	if err != nil {
		return 0, err
	}
	s.log.Info("appointment reminders scheduled",
		"appointment_id", appointmentID.String(),
		"created", created,
	)
	return created, nil
}

// CancelForAppointment cancels the appointment's pending tasks. A second
// call finds nothing and succeeds.
func (s *Service) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	canceled, err := s.repo.CancelPendingForAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if canceled > 0 {
		s.log.Info("pending followups canceled",
			"appointment_id", appointmentID.String(),
			"canceled", canceled,
		)
	}
	return nil
}

// ScheduleAfterTour queues the post-tour check-in.
func (s *Service) ScheduleAfterTour(ctx context.Context, leadID, appointmentID uuid.UUID, tourEnd time.Time) error {
	_, err := s.repo.InsertAll(ctx, []repository.CreateParams{{
		LeadID:        leadID,
		AppointmentID: &appointmentID,
		MessageType:   repository.TypeAfterTour,
		Content:       renderAfterTour(),
		SendAt:        tourEnd.Add(afterTourDelay),
	}})
	return err
}

// ScheduleNoShow queues the missed-tour followup.
func (s *Service) ScheduleNoShow(ctx context.Context, leadID, appointmentID uuid.UUID) error {
	_, err := s.repo.InsertAll(ctx, []repository.CreateParams{{
		LeadID:        leadID,
		AppointmentID: &appointmentID,
		MessageType:   repository.TypeNoShow,
		Content:       renderNoShow(),
		SendAt:        s.now().Add(noShowDelay),
	}})
	return err
}

// ScheduleNudge queues an abandoned-lead nudge for immediate dispatch.
// Reports whether a new task was created; false means one is already
// queued for the lead.
func (s *Service) ScheduleNudge(ctx context.Context, leadID uuid.UUID, content string) (bool, error) {
	created, err := s.repo.InsertAll(ctx, []repository.CreateParams{{
		LeadID:      leadID,
		MessageType: repository.TypeAbandonedLead,
		Content:     content,
		SendAt:      s.now(),
	}})
	if err != nil {
		return false, err
	}
	return created > 0, nil
}

// CancelNudges drops the lead's pending abandoned-lead nudges. Called
// when the lead re-engages; a queued nudge for a lead who already wrote
// back would read as tone deaf.
func (s *Service) CancelNudges(ctx context.Context, leadID uuid.UUID) error {
	canceled, err := s.repo.CancelPendingNudges(ctx, leadID)
	if err != nil {
		return err
	}
	if canceled > 0 {
		s.log.Info("stale nudges canceled", "lead_id", leadID.String(), "canceled", canceled)
	}
	return nil
}

// ListForLead exposes the lead's task history.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID) ([]repository.Followup, error) {
	return s.repo.ListForLead(ctx, leadID)
}

// Handle routes lead and appointment lifecycle events to scheduling
// actions.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadStageChanged:
		return s.CancelNudges(ctx, e.LeadID)
	case events.AppointmentScheduled:
		_, err := s.ScheduleForAppointment(ctx, e.LeadID, e.AppointmentID, e.ScheduledTime)
		return err
	case events.AppointmentCanceled:
		return s.CancelForAppointment(ctx, e.AppointmentID)
	case events.AppointmentCompleted:
		if err := s.CancelForAppointment(ctx, e.AppointmentID); err != nil {
			return err
		}
		return s.ScheduleAfterTour(ctx, e.LeadID, e.AppointmentID, e.EndTime)
	case events.AppointmentNoShow:
		if err := s.CancelForAppointment(ctx, e.AppointmentID); err != nil {
			return err
		}
		return s.ScheduleNoShow(ctx, e.LeadID, e.AppointmentID)
	default:
		return nil
	}
}
